package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Backfill.MaxAttempts != 5 {
		t.Fatalf("MaxAttempts = %d; want 5", cfg.Backfill.MaxAttempts)
	}
	if cfg.Backfill.RetryBaseDelay != 2*time.Second {
		t.Fatalf("RetryBaseDelay = %v; want 2s", cfg.Backfill.RetryBaseDelay)
	}
	if cfg.Storage.BatchSize != 500 {
		t.Fatalf("BatchSize = %d; want 500", cfg.Storage.BatchSize)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("log level = %q; want info", cfg.Logging.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MAX_ATTEMPTS", "3")
	t.Setenv("RETRY_BASE_DELAY", "500ms")
	t.Setenv("DATABASE_DSN", "postgres://example/insights")
	t.Setenv("UPSERT_BATCH_SIZE", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Backfill.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d; want 3", cfg.Backfill.MaxAttempts)
	}
	if cfg.Backfill.RetryBaseDelay != 500*time.Millisecond {
		t.Fatalf("RetryBaseDelay = %v; want 500ms", cfg.Backfill.RetryBaseDelay)
	}
	if cfg.Storage.DSN != "postgres://example/insights" {
		t.Fatalf("DSN = %q", cfg.Storage.DSN)
	}
	// Unparseable values keep the default.
	if cfg.Storage.BatchSize != 500 {
		t.Fatalf("BatchSize = %d; want default 500", cfg.Storage.BatchSize)
	}
}
