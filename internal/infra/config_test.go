package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:9000" {
		t.Fatalf("unexpected base url: %q", cfg.APIBaseURL)
	}
	if cfg.PollInterval != 1500*time.Millisecond {
		t.Fatalf("unexpected poll interval: %v", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 20 {
		t.Fatalf("unexpected max attempts: %d", cfg.PollMaxAttempts)
	}
}

func TestLoadConfigClampsPollInterval(t *testing.T) {
	t.Setenv("POLL_INTERVAL_MS", "100")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("interval below window should clamp to 1s, got %v", cfg.PollInterval)
	}

	t.Setenv("POLL_INTERVAL_MS", "10000")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("interval above window should clamp to 2s, got %v", cfg.PollInterval)
	}
}

func TestLoadConfigRejectsNonPositiveAttempts(t *testing.T) {
	t.Setenv("POLL_MAX_ATTEMPTS", "0")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for zero max attempts")
	}
}
