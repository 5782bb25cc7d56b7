package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Stats.Window != 200 {
		t.Errorf("expected Window=200, got %d", cfg.Stats.Window)
	}
	if cfg.GetStatsInterval() != 500*time.Millisecond {
		t.Errorf("expected 500ms interval, got %v", cfg.GetStatsInterval())
	}
	if cfg.Engine.Driver != "sqlite" {
		t.Errorf("expected Driver=sqlite, got %s", cfg.Engine.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("WTMT_DB", "")
	t.Setenv("WTMT_DRIVER", "")
	t.Setenv("WTMT_WORKERS", "")
	t.Setenv("WTMT_DEBUG", "")

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Engine.Compression = "zstd"
	cfg.Workload.BatchSize = 1
	cfg.Logging.Categories = map[string]bool{"engine": false}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Engine.Compression != "zstd" {
		t.Errorf("expected Compression=zstd, got %s", loaded.Engine.Compression)
	}
	if loaded.Workload.BatchSize != 1 {
		t.Errorf("expected BatchSize=1, got %d", loaded.Workload.BatchSize)
	}
	if on, ok := loaded.Logging.Categories["engine"]; !ok || on {
		t.Errorf("expected engine category disabled, got %v", loaded.Logging.Categories)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("WTMT_DB", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.Path != DefaultConfig().Engine.Path {
		t.Errorf("expected default path, got %s", cfg.Engine.Path)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("workload:\n  workers: 9\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WTMT_WORKERS", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workload.Workers != 9 {
		t.Errorf("expected Workers=9, got %d", cfg.Workload.Workers)
	}
	if cfg.Workload.BatchSize != 100 {
		t.Errorf("expected default BatchSize=100, got %d", cfg.Workload.BatchSize)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("engine: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("WTMT_DB", "/tmp/other.db")
	t.Setenv("WTMT_DRIVER", "sqlite3")
	t.Setenv("WTMT_WORKERS", "12")
	t.Setenv("WTMT_DEBUG", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.Path != "/tmp/other.db" {
		t.Errorf("expected env db path, got %s", cfg.Engine.Path)
	}
	if cfg.Engine.Driver != "sqlite3" {
		t.Errorf("expected env driver, got %s", cfg.Engine.Driver)
	}
	if cfg.Workload.Workers != 12 {
		t.Errorf("expected 12 workers, got %d", cfg.Workload.Workers)
	}
	if !cfg.Logging.DebugMode || cfg.Logging.Level != "debug" {
		t.Errorf("expected debug logging, got %+v", cfg.Logging)
	}
	if cfg.DatabasePath() != "/tmp/other.db" {
		t.Errorf("absolute path should not be joined, got %s", cfg.DatabasePath())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad driver", func(c *Config) { c.Engine.Driver = "wiredtiger" }},
		{"empty path", func(c *Config) { c.Engine.Path = "" }},
		{"bad compression", func(c *Config) { c.Engine.Compression = "brotli" }},
		{"zero value size", func(c *Config) { c.Engine.ValueSize = 0 }},
		{"zero workers", func(c *Config) { c.Workload.Workers = 0 }},
		{"zero queue", func(c *Config) { c.Workload.QueueDepth = 0 }},
		{"zero batch", func(c *Config) { c.Workload.BatchSize = 0 }},
		{"bad interval", func(c *Config) { c.Stats.Interval = "soon" }},
		{"zero window", func(c *Config) { c.Stats.Window = 0 }},
		{"bad metric", func(c *Config) { c.Stats.Metric = "latency" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestDatabasePathRelative(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/var/lib/wtmt"
	cfg.Engine.Path = "bench.db"
	if got := cfg.DatabasePath(); got != filepath.Join("/var/lib/wtmt", "bench.db") {
		t.Errorf("unexpected path %s", got)
	}
	cfg.Engine.Path = ":memory:"
	if got := cfg.DatabasePath(); got != ":memory:" {
		t.Errorf("unexpected path %s", got)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	t.Setenv("WTMT_WORKERS", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changed <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	cfg := DefaultConfig()
	cfg.Workload.Workers = 7
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		if got.Workload.Workers != 7 {
			t.Errorf("expected reloaded Workers=7, got %d", got.Workload.Workers)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned %v", err)
	}
}
