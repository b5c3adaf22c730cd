package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := Default()
	if cfg.DataDir != want.DataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, want.DataDir)
	}
	if cfg.Sync.QueueCap != want.Sync.QueueCap {
		t.Errorf("QueueCap = %d, want %d", cfg.Sync.QueueCap, want.Sync.QueueCap)
	}
	if cfg.Sync.BackoffBase.Std() != 30*time.Second {
		t.Errorf("BackoffBase = %v, want 30s", cfg.Sync.BackoffBase.Std())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stockpoint.yaml")
	content := `
data_dir: /var/lib/stockpoint
log_level: debug
remote:
  base_url: https://api.stockpoint.example
  timeout: 5s
sync:
  backoff_base: 10s
  backoff_cap: 30m
  stability_window: 2s
  queue_cap: 50
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != "/var/lib/stockpoint" {
		t.Errorf("DataDir = %q, want /var/lib/stockpoint", cfg.DataDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Remote.BaseURL != "https://api.stockpoint.example" {
		t.Errorf("BaseURL = %q, want the override", cfg.Remote.BaseURL)
	}
	if cfg.Remote.Timeout.Std() != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Remote.Timeout.Std())
	}
	if cfg.Sync.BackoffBase.Std() != 10*time.Second {
		t.Errorf("BackoffBase = %v, want 10s", cfg.Sync.BackoffBase.Std())
	}
	if cfg.Sync.QueueCap != 50 {
		t.Errorf("QueueCap = %d, want 50", cfg.Sync.QueueCap)
	}
	// Untouched fields keep their defaults.
	if cfg.Sync.OpTimeout.Std() != 15*time.Second {
		t.Errorf("OpTimeout = %v, want the 15s default", cfg.Sync.OpTimeout.Std())
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad duration", "remote:\n  timeout: soon\n"},
		{"empty data dir", "data_dir: \"\"\n"},
		{"zero queue cap", "sync:\n  queue_cap: 0\n"},
		{"cap below base", "sync:\n  backoff_base: 1m\n  backoff_cap: 10s\n"},
		{"not yaml", "{{{{\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}
}
