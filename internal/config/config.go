// Package config loads and validates wtmt configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"wtmt/internal/codec"
	"wtmt/internal/logging"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for the config file.
const DefaultPath = ".wtmt/config.yaml"

// ValidDrivers lists the engine drivers wtmt knows how to open.
var ValidDrivers = []string{"sqlite", "sqlite3"}

// ValidMetrics lists the statistics the chart can plot.
var ValidMetrics = []string{"ops", "entries", "bytes", "errors"}

// Config holds all wtmt configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// DataDir holds logs and, by default, the database.
	DataDir string `yaml:"data_dir"`

	Engine   EngineConfig   `yaml:"engine"`
	Workload WorkloadConfig `yaml:"workload"`
	Stats    StatsConfig    `yaml:"stats"`
	UI       UIConfig       `yaml:"ui"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// EngineConfig configures the storage engine.
type EngineConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo bindings to the C library).
	Driver string `yaml:"driver"`
	// Path is the database file. Relative paths resolve against DataDir.
	Path string `yaml:"path"`
	// Compression is one of none, snappy, lz4, zstd.
	Compression string `yaml:"compression"`
	// ValueSize is the raw payload size per row in bytes.
	ValueSize int `yaml:"value_size"`
	// BusyTimeout bounds how long a write waits on a locked database.
	BusyTimeout string `yaml:"busy_timeout"`
}

// WorkloadConfig configures operation execution.
type WorkloadConfig struct {
	Workers    int `yaml:"workers"`
	QueueDepth int `yaml:"queue_depth"`
	// BatchSize is the number of items per engine call and per progress message.
	BatchSize int `yaml:"batch_size"`
}

// StatsConfig configures the statistics pane.
type StatsConfig struct {
	Interval string `yaml:"interval"`
	Window   int    `yaml:"window"`
	Metric   string `yaml:"metric"`
}

// UIConfig configures the dashboard.
type UIConfig struct {
	Theme        string `yaml:"theme"` // auto, light, dark
	HistorySize  int    `yaml:"history_size"`
	ShowFinished bool   `yaml:"show_finished"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "wtmt",
		Version: "0.2.0",
		DataDir: ".wtmt",
		Engine: EngineConfig{
			Driver:      "sqlite",
			Path:        "wtmt.db",
			Compression: "snappy",
			ValueSize:   128,
			BusyTimeout: "5s",
		},
		Workload: WorkloadConfig{
			Workers:    4,
			QueueDepth: 64,
			BatchSize:  100,
		},
		Stats: StatsConfig{
			Interval: "500ms",
			Window:   200,
			Metric:   "ops",
		},
		UI: UIConfig{
			Theme:        "auto",
			HistorySize:  50,
			ShowFinished: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path. A missing file yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("WTMT_DB"); path != "" {
		c.Engine.Path = path
	}
	if driver := os.Getenv("WTMT_DRIVER"); driver != "" {
		c.Engine.Driver = driver
	}
	if w := os.Getenv("WTMT_WORKERS"); w != "" {
		if n, err := strconv.Atoi(w); err == nil {
			c.Workload.Workers = n
		}
	}
	if v := os.Getenv("WTMT_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// Validate checks the configuration for values the program cannot run with.
func (c *Config) Validate() error {
	if !contains(ValidDrivers, c.Engine.Driver) {
		return fmt.Errorf("invalid engine driver: %q (valid: %v)", c.Engine.Driver, ValidDrivers)
	}
	if c.Engine.Path == "" {
		return fmt.Errorf("engine path is empty")
	}
	if _, err := codec.ParseType(c.Engine.Compression); err != nil {
		return fmt.Errorf("invalid engine compression: %w", err)
	}
	if c.Engine.ValueSize <= 0 {
		return fmt.Errorf("engine value_size must be positive, got %d", c.Engine.ValueSize)
	}
	if c.Workload.Workers <= 0 {
		return fmt.Errorf("workload workers must be positive, got %d", c.Workload.Workers)
	}
	if c.Workload.QueueDepth <= 0 {
		return fmt.Errorf("workload queue_depth must be positive, got %d", c.Workload.QueueDepth)
	}
	if c.Workload.BatchSize <= 0 {
		return fmt.Errorf("workload batch_size must be positive, got %d", c.Workload.BatchSize)
	}
	if d, err := time.ParseDuration(c.Stats.Interval); err != nil || d <= 0 {
		return fmt.Errorf("invalid stats interval: %q", c.Stats.Interval)
	}
	if c.Stats.Window <= 0 {
		return fmt.Errorf("stats window must be positive, got %d", c.Stats.Window)
	}
	if !contains(ValidMetrics, c.Stats.Metric) {
		return fmt.Errorf("invalid stats metric: %q (valid: %v)", c.Stats.Metric, ValidMetrics)
	}
	return nil
}

// DatabasePath resolves Engine.Path against DataDir.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Engine.Path) || c.Engine.Path == ":memory:" {
		return c.Engine.Path
	}
	return filepath.Join(c.DataDir, c.Engine.Path)
}

// GetStatsInterval returns the sampling interval (default 500ms).
func (c *Config) GetStatsInterval() time.Duration {
	if d, err := time.ParseDuration(c.Stats.Interval); err == nil && d > 0 {
		return d
	}
	return 500 * time.Millisecond
}

// GetBusyTimeout returns the engine busy timeout (default 5s).
func (c *Config) GetBusyTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Engine.BusyTimeout); err == nil && d > 0 {
		return d
	}
	return 5 * time.Second
}

// Settings converts the logging section for the logging package.
func (l LoggingConfig) Settings() logging.Settings {
	return logging.Settings{
		DebugMode:  l.DebugMode,
		Level:      l.Level,
		JSONFormat: l.JSONFormat,
		Categories: l.Categories,
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
