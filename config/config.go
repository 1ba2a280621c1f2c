// Package config provides configuration loading and management for taskpipe.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete taskpipe configuration.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	NATS      NATSConfig      `yaml:"nats"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ModelConfig configures the completion service.
type ModelConfig struct {
	// Provider selects the wire format ("gemini" or "openai").
	Provider string `yaml:"provider"`
	// Name is the model to generate with (e.g. "gemini-2.5-flash").
	Name string `yaml:"name"`
	// Endpoint overrides the provider's default API endpoint.
	Endpoint string `yaml:"endpoint"`
	// APIKey authenticates against the service. Falls back to the
	// GEMINI_API_KEY environment variable when empty.
	APIKey string `yaml:"api_key"`
	// ClassifyTimeout bounds a single classification call (default 30s).
	ClassifyTimeout string `yaml:"classify_timeout"`
	// ExecuteTimeout bounds a single execution call (default 60s).
	ExecuteTimeout string `yaml:"execute_timeout"`
}

// NATSConfig configures the task store connection.
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server).
	URL string `yaml:"url"`
	// Embedded indicates whether to run an embedded NATS server.
	Embedded bool `yaml:"embedded"`
	// StoreDir is the JetStream storage directory for the embedded
	// server. Empty means a temporary directory.
	StoreDir string `yaml:"store_dir"`
}

// SchedulerConfig configures the polling loop.
type SchedulerConfig struct {
	// PollInterval is the cycle interval (default 3s).
	PollInterval string `yaml:"poll_interval"`
	// TaskDelay is the pause between tasks within a cycle (default 1s).
	TaskDelay string `yaml:"task_delay"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled).
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:        "gemini",
			Name:            "gemini-2.5-flash",
			Endpoint:        "",
			APIKey:          "",
			ClassifyTimeout: "30s",
			ExecuteTimeout:  "60s",
		},
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
		},
		Scheduler: SchedulerConfig{
			PollInterval: "3s",
			TaskDelay:    "1s",
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
	}
}

// Validate checks that the configuration is valid. A missing completion
// service credential is fatal here, before the first cycle ever runs.
func (c *Config) Validate() error {
	if c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required")
	}
	if c.Model.Provider != "gemini" && c.Model.Provider != "openai" {
		return fmt.Errorf("unknown model.provider: %s", c.Model.Provider)
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Model.Provider == "gemini" && c.ResolveAPIKey() == "" {
		return fmt.Errorf("model.api_key is required (or set GEMINI_API_KEY)")
	}
	if _, err := time.ParseDuration(c.Model.ClassifyTimeout); err != nil {
		return fmt.Errorf("invalid model.classify_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Model.ExecuteTimeout); err != nil {
		return fmt.Errorf("invalid model.execute_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Scheduler.PollInterval); err != nil {
		return fmt.Errorf("invalid scheduler.poll_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Scheduler.TaskDelay); err != nil {
		return fmt.Errorf("invalid scheduler.task_delay: %w", err)
	}
	return nil
}

// ResolveAPIKey returns the configured API key, falling back to the
// GEMINI_API_KEY environment variable.
func (c *Config) ResolveAPIKey() string {
	if c.Model.APIKey != "" {
		return c.Model.APIKey
	}
	return os.Getenv("GEMINI_API_KEY")
}

// ClassifyTimeout returns the parsed classification timeout.
func (c *Config) ClassifyTimeout() time.Duration {
	return parseDuration(c.Model.ClassifyTimeout, 30*time.Second)
}

// ExecuteTimeout returns the parsed execution timeout.
func (c *Config) ExecuteTimeout() time.Duration {
	return parseDuration(c.Model.ExecuteTimeout, 60*time.Second)
}

// PollInterval returns the parsed cycle interval.
func (c *Config) PollInterval() time.Duration {
	return parseDuration(c.Scheduler.PollInterval, 3*time.Second)
}

// TaskDelay returns the parsed inter-task pause.
func (c *Config) TaskDelay() time.Duration {
	return parseDuration(c.Scheduler.TaskDelay, time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// LoadFromFile loads configuration from a YAML file, overlaying defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Model.Provider != "" {
		c.Model.Provider = other.Model.Provider
	}
	if other.Model.Name != "" {
		c.Model.Name = other.Model.Name
	}
	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.APIKey != "" {
		c.Model.APIKey = other.Model.APIKey
	}
	if other.Model.ClassifyTimeout != "" {
		c.Model.ClassifyTimeout = other.Model.ClassifyTimeout
	}
	if other.Model.ExecuteTimeout != "" {
		c.Model.ExecuteTimeout = other.Model.ExecuteTimeout
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}
	if other.NATS.StoreDir != "" {
		c.NATS.StoreDir = other.NATS.StoreDir
	}

	if other.Scheduler.PollInterval != "" {
		c.Scheduler.PollInterval = other.Scheduler.PollInterval
	}
	if other.Scheduler.TaskDelay != "" {
		c.Scheduler.TaskDelay = other.Scheduler.TaskDelay
	}

	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}
