// Package config loads runtime configuration for the StockPoint offline core.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "30s", "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RemoteConfig describes the hosted document store endpoints.
type RemoteConfig struct {
	BaseURL   string   `yaml:"base_url"`
	FeedURL   string   `yaml:"feed_url"`
	HealthURL string   `yaml:"health_url"`
	Timeout   Duration `yaml:"timeout"`
}

// SyncConfig tunes the connectivity monitor and the drain loop.
type SyncConfig struct {
	ProbeInterval   Duration `yaml:"probe_interval"`
	StabilityWindow Duration `yaml:"stability_window"`
	OpTimeout       Duration `yaml:"op_timeout"`
	BackoffBase     Duration `yaml:"backoff_base"`
	BackoffCap      Duration `yaml:"backoff_cap"`
	RetryTick       Duration `yaml:"retry_tick"`
	QueueCap        int      `yaml:"queue_cap"`
}

// Config is the root configuration document.
type Config struct {
	DataDir  string       `yaml:"data_dir"`
	LogLevel string       `yaml:"log_level"`
	Remote   RemoteConfig `yaml:"remote"`
	Sync     SyncConfig   `yaml:"sync"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:  "./data",
		LogLevel: "info",
		Remote: RemoteConfig{
			BaseURL:   "http://localhost:8090",
			FeedURL:   "ws://localhost:8090/v1/feed",
			HealthURL: "http://localhost:8090/healthz",
			Timeout:   Duration(10 * time.Second),
		},
		Sync: SyncConfig{
			ProbeInterval:   Duration(5 * time.Second),
			StabilityWindow: Duration(3 * time.Second),
			OpTimeout:       Duration(15 * time.Second),
			BackoffBase:     Duration(30 * time.Second),
			BackoffCap:      Duration(time.Hour),
			RetryTick:       Duration(time.Minute),
			QueueCap:        1000,
		},
	}
}

// Load reads a YAML configuration file over the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Sync.QueueCap <= 0 {
		return fmt.Errorf("sync.queue_cap must be positive")
	}
	if c.Sync.BackoffBase.Std() <= 0 || c.Sync.BackoffCap.Std() < c.Sync.BackoffBase.Std() {
		return fmt.Errorf("sync backoff range is invalid")
	}
	return nil
}
