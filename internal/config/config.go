// Package config loads runtime settings.
//
// Sources and precedence (later wins):
//
//  1. Built-in defaults (see Default).
//  2. Optional JSON file (see LoadFile).
//  3. IMMOB_* environment variables (see ApplyEnv).
//
// Command flags are applied by the caller on top of the result.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/and161185/immob/internal/limiter"
)

// EnvPrefix prefixes every recognized environment variable.
const EnvPrefix = "IMMOB_"

// DefaultEncryptionKey is used when no key is configured.
const DefaultEncryptionKey = "immob-default-key-change-in-production"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Storage selects the key-value backend.
type Storage struct {
	Driver string
	DSN    string
}

// Config holds runtime settings.
type Config struct {
	SessionDuration         time.Duration
	SessionRefreshThreshold time.Duration // advisory only
	RateLimits              limiter.Limits
	EncryptionKey           string
	LogLevel                string
	Latency                 time.Duration // simulated backend round trip
	Storage                 Storage
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SessionDuration:         24 * time.Hour,
		SessionRefreshThreshold: time.Hour,
		RateLimits:              limiter.DefaultLimits(),
		EncryptionKey:           DefaultEncryptionKey,
		LogLevel:                "info",
		Latency:                 time.Second,
		Storage:                 Storage{Driver: DriverMemory},
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var list []error
	if c.SessionDuration <= 0 {
		list = append(list, errors.New("session duration must be positive"))
	}
	if c.SessionRefreshThreshold < 0 {
		list = append(list, errors.New("session refresh threshold must not be negative"))
	}
	if c.EncryptionKey == "" {
		list = append(list, errors.New("encryption key must not be empty"))
	}
	if c.Latency < 0 {
		list = append(list, errors.New("latency must not be negative"))
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres, DriverRedis:
		if c.Storage.DSN == "" {
			list = append(list, fmt.Errorf("storage driver %s needs a dsn", c.Storage.Driver))
		}
	default:
		list = append(list, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	list = append(list, c.RateLimits.Validate())
	return errors.Join(list...)
}

// Load builds a Config from defaults, the optional JSON file at path (skipped
// when path is empty) and the environment.
func Load(path string) (Config, error) { return LoadFrom(Default(), path) }

// LoadFrom is Load with caller-supplied defaults.
func LoadFrom(base Config, path string) (Config, error) {
	cfg := base
	if path != "" {
		if err := LoadFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Duration unmarshals from "90s"-style strings or integer milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("duration must be a string or milliseconds: %s", b)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

type jsonPolicy struct {
	Max      *int      `json:"max"`
	WindowMs *Duration `json:"windowMs"`
}

// jsonConfig is a DTO used exclusively for JSON unmarshalling.
type jsonConfig struct {
	Session struct {
		Duration         *Duration `json:"duration"`
		RefreshThreshold *Duration `json:"refreshThreshold"`
	} `json:"session"`
	RateLimits struct {
		Messages jsonPolicy `json:"messages"`
		Searches jsonPolicy `json:"searches"`
		API      jsonPolicy `json:"api"`
		Login    jsonPolicy `json:"login"`
	} `json:"rateLimits"`
	EncryptionKey *string   `json:"encryptionKey"`
	LogLevel      *string   `json:"logLevel"`
	Latency       *Duration `json:"latency"`
	Storage       struct {
		Driver *string `json:"driver"`
		DSN    *string `json:"dsn"`
	} `json:"storage"`
}

// LoadFile overlays cfg with the fields present in the JSON file at path.
func LoadFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc jsonConfig
	if err := json.Unmarshal(b, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setDur(&cfg.SessionDuration, jc.Session.Duration)
	setDur(&cfg.SessionRefreshThreshold, jc.Session.RefreshThreshold)
	setDur(&cfg.Latency, jc.Latency)
	setPolicy(&cfg.RateLimits.Messages, jc.RateLimits.Messages)
	setPolicy(&cfg.RateLimits.Searches, jc.RateLimits.Searches)
	setPolicy(&cfg.RateLimits.API, jc.RateLimits.API)
	setPolicy(&cfg.RateLimits.Login, jc.RateLimits.Login)
	setStr(&cfg.EncryptionKey, jc.EncryptionKey)
	setStr(&cfg.LogLevel, jc.LogLevel)
	setStr(&cfg.Storage.Driver, jc.Storage.Driver)
	setStr(&cfg.Storage.DSN, jc.Storage.DSN)
	return nil
}

func setDur(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setPolicy(dst *limiter.Policy, p jsonPolicy) {
	if p.Max != nil {
		dst.Max = *p.Max
	}
	setDur(&dst.Window, p.WindowMs)
}

// ApplyEnv overlays cfg with IMMOB_* variables read through lookup.
// Durations accept time.ParseDuration syntax.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var list []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				list = append(list, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				list = append(list, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("ENCRYPTION_KEY", &cfg.EncryptionKey)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("STORAGE_DSN", &cfg.Storage.DSN)
	dur("SESSION_DURATION", &cfg.SessionDuration)
	dur("SESSION_REFRESH_THRESHOLD", &cfg.SessionRefreshThreshold)
	dur("LATENCY", &cfg.Latency)
	for name, p := range map[string]*limiter.Policy{
		"MESSAGES": &cfg.RateLimits.Messages,
		"SEARCHES": &cfg.RateLimits.Searches,
		"API":      &cfg.RateLimits.API,
		"LOGIN":    &cfg.RateLimits.Login,
	} {
		num(name+"_MAX", &p.Max)
		dur(name+"_WINDOW", &p.Window)
	}
	return errors.Join(list...)
}
