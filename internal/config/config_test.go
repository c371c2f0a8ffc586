package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Addr)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("log defaults = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.IdemTTL != 24*time.Hour {
		t.Errorf("idem_ttl = %v, want 24h", cfg.IdemTTL)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown_timeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ORGLEDGER_ADDR", ":9999")
	t.Setenv("ORGLEDGER_LOG_LEVEL", "debug")
	t.Setenv("ORGLEDGER_DEV_SEED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("addr = %q, want :9999", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want debug", cfg.LogLevel)
	}
	if !cfg.DevSeed {
		t.Error("dev_seed should be true")
	}
}
