// Package config reads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvProduction is the OUTREACH_ENV value for deployed servers.
const EnvProduction = "production"

// Config holds every server setting.
type Config struct {
	Env    string
	Addr   string
	DBPath string

	DocstoreDriver string
	DocstoreDSN    string
	MongoDatabase  string

	AdminEmail    string
	AdminPassword string
	CSRFKey       string

	ResendKey     string
	ResendFrom    string
	OperatorEmail string

	RetryInterval    time.Duration
	RetryMaxAttempts int

	PersistContactedReset bool
	MigrateLegacy         bool

	SlowQuery time.Duration
	LogLevel  slog.Level
	RateLimit int // requests per minute per IP, 0 uses the server default
}

// IsProduction reports whether the server runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads a .env file when present, then the process environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
// POST: Returns an error naming the first malformed variable
func FromEnv(getenv func(string) string) (Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		Env:            env("OUTREACH_ENV", "development"),
		Addr:           env("OUTREACH_ADDR", ":8080"),
		DBPath:         env("OUTREACH_DB_PATH", "outreach.db"),
		DocstoreDriver: env("OUTREACH_DOCSTORE", "sqlite"),
		DocstoreDSN:    env("OUTREACH_DOCSTORE_DSN", ""),
		MongoDatabase:  env("OUTREACH_MONGO_DATABASE", "outreach"),
		AdminEmail:     env("OUTREACH_ADMIN_EMAIL", "admin@outreach.local"),
		AdminPassword:  env("OUTREACH_ADMIN_PASSWORD", ""),
		CSRFKey:        env("OUTREACH_CSRF_KEY", ""),
		ResendKey:      env("OUTREACH_RESEND_KEY", ""),
		ResendFrom:     env("OUTREACH_RESEND_FROM", "Outreach <noreply@outreach.local>"),
		OperatorEmail:  env("OUTREACH_OPERATOR_EMAIL", ""),
	}

	var err error
	if cfg.RetryInterval, err = parseDuration(env("OUTREACH_RETRY_INTERVAL", "30s")); err != nil {
		return Config{}, fmt.Errorf("OUTREACH_RETRY_INTERVAL: %w", err)
	}
	if cfg.RetryMaxAttempts, err = strconv.Atoi(env("OUTREACH_RETRY_MAX_ATTEMPTS", "8")); err != nil || cfg.RetryMaxAttempts < 1 {
		return Config{}, fmt.Errorf("OUTREACH_RETRY_MAX_ATTEMPTS: must be a positive integer")
	}
	if cfg.PersistContactedReset, err = strconv.ParseBool(env("OUTREACH_PERSIST_CONTACTED_RESET", "false")); err != nil {
		return Config{}, fmt.Errorf("OUTREACH_PERSIST_CONTACTED_RESET: %w", err)
	}
	if cfg.MigrateLegacy, err = strconv.ParseBool(env("OUTREACH_MIGRATE_LEGACY", "false")); err != nil {
		return Config{}, fmt.Errorf("OUTREACH_MIGRATE_LEGACY: %w", err)
	}
	slowMs, err := strconv.Atoi(env("OUTREACH_SLOW_QUERY_MS", "50"))
	if err != nil || slowMs < 0 {
		return Config{}, fmt.Errorf("OUTREACH_SLOW_QUERY_MS: must be a non-negative integer")
	}
	cfg.SlowQuery = time.Duration(slowMs) * time.Millisecond
	if err := cfg.LogLevel.UnmarshalText([]byte(env("OUTREACH_LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("OUTREACH_LOG_LEVEL: %w", err)
	}
	if cfg.RateLimit, err = strconv.Atoi(env("OUTREACH_RATE_LIMIT", "120")); err != nil || cfg.RateLimit < 0 {
		return Config{}, fmt.Errorf("OUTREACH_RATE_LIMIT: must be a non-negative integer")
	}

	switch cfg.DocstoreDriver {
	case "sqlite", "memory":
	case "postgres", "mongo":
		if cfg.DocstoreDSN == "" {
			return Config{}, fmt.Errorf("OUTREACH_DOCSTORE_DSN is required for %s", cfg.DocstoreDriver)
		}
	default:
		return Config{}, fmt.Errorf("OUTREACH_DOCSTORE: unknown driver %q", cfg.DocstoreDriver)
	}

	if cfg.IsProduction() {
		if cfg.AdminPassword == "" {
			return Config{}, errors.New("OUTREACH_ADMIN_PASSWORD is required in production")
		}
		if len(cfg.CSRFKey) < 32 {
			return Config{}, errors.New("OUTREACH_CSRF_KEY must be at least 32 bytes in production")
		}
	}
	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}
