package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/immob/internal/limiter"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()

	assert.Equal(t, 24*time.Hour, cfg.SessionDuration)
	assert.Equal(t, time.Hour, cfg.SessionRefreshThreshold)
	assert.Equal(t, limiter.DefaultLimits(), cfg.RateLimits)
	assert.Equal(t, DefaultEncryptionKey, cfg.EncryptionKey)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Config){
		"zero session":   func(c *Config) { c.SessionDuration = 0 },
		"empty key":      func(c *Config) { c.EncryptionKey = "" },
		"negative delay": func(c *Config) { c.Latency = -time.Second },
		"bad driver":     func(c *Config) { c.Storage.Driver = "mongo" },
		"redis no dsn":   func(c *Config) { c.Storage.Driver = DriverRedis },
		"zero login max": func(c *Config) { c.RateLimits.Login.Max = 0 },
	}
	for name, mut := range cases {
		cfg := Default()
		mut(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "immob.json")
	body := `{
		"session": {"duration": "2h", "refreshThreshold": 600000},
		"rateLimits": {"login": {"max": 3, "windowMs": "10m"}},
		"encryptionKey": "from-file",
		"storage": {"driver": "sqlite", "dsn": "/tmp/x.db"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg := Default()
	require.NoError(t, LoadFile(&cfg, path))

	assert.Equal(t, 2*time.Hour, cfg.SessionDuration)
	assert.Equal(t, 10*time.Minute, cfg.SessionRefreshThreshold)
	assert.Equal(t, limiter.Policy{Max: 3, Window: 10 * time.Minute}, cfg.RateLimits.Login)
	assert.Equal(t, limiter.DefaultLimits().Messages, cfg.RateLimits.Messages)
	assert.Equal(t, "from-file", cfg.EncryptionKey)
	assert.Equal(t, Storage{Driver: DriverSQLite, DSN: "/tmp/x.db"}, cfg.Storage)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfg := Default()
	require.Error(t, LoadFile(&cfg, filepath.Join(dir, "missing.json")))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"session":{"duration":true}}`), 0o600))
	require.Error(t, LoadFile(&cfg, bad))
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	cfg := Default()
	err := ApplyEnv(&cfg, envMap(map[string]string{
		"IMMOB_ENCRYPTION_KEY":   "env-key",
		"IMMOB_SESSION_DURATION": "30m",
		"IMMOB_LOGIN_MAX":        "7",
		"IMMOB_API_WINDOW":       "2m",
		"IMMOB_STORAGE_DRIVER":   "redis",
		"IMMOB_STORAGE_DSN":      "redis://localhost:6379/0",
	}))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.EncryptionKey)
	assert.Equal(t, 30*time.Minute, cfg.SessionDuration)
	assert.Equal(t, 7, cfg.RateLimits.Login.Max)
	assert.Equal(t, 2*time.Minute, cfg.RateLimits.API.Window)
	assert.Equal(t, DriverRedis, cfg.Storage.Driver)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv_ReportsBadValues(t *testing.T) {
	t.Parallel()
	cfg := Default()
	err := ApplyEnv(&cfg, envMap(map[string]string{
		"IMMOB_LATENCY":      "soon",
		"IMMOB_MESSAGES_MAX": "ten",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMMOB_LATENCY")
	assert.Contains(t, err.Error(), "IMMOB_MESSAGES_MAX")
	assert.Equal(t, time.Second, cfg.Latency)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Positive(t, cfg.SessionDuration)
}
