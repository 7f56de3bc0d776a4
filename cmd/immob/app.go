package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/and161185/immob/internal/config"
	"github.com/and161185/immob/internal/crypto"
	"github.com/and161185/immob/internal/limiter"
	"github.com/and161185/immob/internal/migrate"
	"github.com/and161185/immob/internal/repository"
	"github.com/and161185/immob/internal/service"
	"github.com/and161185/immob/internal/storage"
	"github.com/and161185/immob/internal/storage/postgres"
	redisstore "github.com/and161185/immob/internal/storage/redis"
	"github.com/and161185/immob/internal/storage/sqlite"
)

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "immob")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "immob")
}

func defaultDBPath() string { return filepath.Join(cfgDir(), "immob.db") }

// cliDefaults persists state in a local sqlite file so that sessions and
// limiter budgets survive between invocations.
func cliDefaults() config.Config {
	cfg := config.Default()
	cfg.Storage = config.Storage{Driver: config.DriverSQLite, DSN: defaultDBPath()}
	return cfg
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if lvl.Level() == zap.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = lvl
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, s config.Storage) (storage.Store, func(), error) {
	switch s.Driver {
	case config.DriverMemory:
		return storage.NewMemory(), func() {}, nil
	case config.DriverSQLite:
		dsn := s.DSN
		if dsn == "" {
			dsn = defaultDBPath()
		}
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
				return nil, nil, err
			}
		}
		st, err := sqlite.Open(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	case config.DriverPostgres:
		if err := migrate.Up(ctx, s.DSN); err != nil {
			return nil, nil, fmt.Errorf("migrate up: %w", err)
		}
		st, err := postgres.New(ctx, s.DSN)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case config.DriverRedis:
		st, err := redisstore.Dial(ctx, s.DSN)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", s.Driver)
}

// app is the dependency graph owned by one invocation.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	store    storage.Store
	limits   *limiter.Set
	cipher   *crypto.Cipher
	auth     *service.AuthServiceImpl
	messages *service.MessageServiceImpl
	search   *service.SearchServiceImpl
}

func newApp(ctx context.Context, cfg config.Config, store storage.Store, log *zap.Logger) (*app, error) {
	limits, err := limiter.NewSet(ctx, store, cfg.RateLimits, limiter.WithLogger(log))
	if err != nil {
		return nil, err
	}
	cipher := crypto.NewCipher(cfg.EncryptionKey, log)
	if cfg.EncryptionKey == config.DefaultEncryptionKey {
		log.Warn("using the built-in encryption key")
	}
	opts := []service.Option{service.WithLogger(log)}
	return &app{
		cfg:    cfg,
		log:    log,
		store:  store,
		limits: limits,
		cipher: cipher,
		auth: service.NewAuthService(ctx, repository.NewSessionRepo(store), limits.Login, cipher,
			service.SimulatedBackend{Latency: cfg.Latency},
			service.SessionPolicy{Duration: cfg.SessionDuration, RefreshThreshold: cfg.SessionRefreshThreshold},
			opts...),
		messages: service.NewMessageService(limits.Messages, opts...),
		search:   service.NewSearchService(limits.Searches, opts...),
	}, nil
}
