package config

import (
	"log/slog"
	"testing"
	"time"
)

func lookup(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(lookup(nil))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.DocstoreDriver != "sqlite" {
		t.Errorf("DocstoreDriver = %q, want sqlite", cfg.DocstoreDriver)
	}
	if cfg.RetryInterval != 30*time.Second {
		t.Errorf("RetryInterval = %v, want 30s", cfg.RetryInterval)
	}
	if cfg.PersistContactedReset {
		t.Error("PersistContactedReset should default to false")
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
	if cfg.IsProduction() {
		t.Error("default env should not be production")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"OUTREACH_DOCSTORE":                "postgres",
		"OUTREACH_DOCSTORE_DSN":            "postgres://localhost/outreach",
		"OUTREACH_RETRY_INTERVAL":          "5s",
		"OUTREACH_PERSIST_CONTACTED_RESET": "true",
		"OUTREACH_LOG_LEVEL":               "debug",
		"OUTREACH_SLOW_QUERY_MS":           "200",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.DocstoreDriver != "postgres" || cfg.RetryInterval != 5*time.Second {
		t.Errorf("got %+v", cfg)
	}
	if !cfg.PersistContactedReset {
		t.Error("PersistContactedReset = false, want true")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want DEBUG", cfg.LogLevel)
	}
	if cfg.SlowQuery != 200*time.Millisecond {
		t.Errorf("SlowQuery = %v, want 200ms", cfg.SlowQuery)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"unknown driver", map[string]string{"OUTREACH_DOCSTORE": "couch"}},
		{"mongo without dsn", map[string]string{"OUTREACH_DOCSTORE": "mongo"}},
		{"bad interval", map[string]string{"OUTREACH_RETRY_INTERVAL": "soon"}},
		{"zero attempts", map[string]string{"OUTREACH_RETRY_MAX_ATTEMPTS": "0"}},
		{"bad bool", map[string]string{"OUTREACH_MIGRATE_LEGACY": "maybe"}},
		{"bad level", map[string]string{"OUTREACH_LOG_LEVEL": "loud"}},
		{"production without password", map[string]string{"OUTREACH_ENV": "production", "OUTREACH_CSRF_KEY": "0123456789abcdef0123456789abcdef"}},
		{"production short csrf key", map[string]string{"OUTREACH_ENV": "production", "OUTREACH_ADMIN_PASSWORD": "long enough password", "OUTREACH_CSRF_KEY": "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromEnv(lookup(tt.vars)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
