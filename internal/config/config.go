package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the agentdiff runtime configuration
type Config struct {
	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Change tracking
	Tracker TrackerConfig `json:"tracker" mapstructure:"tracker"`

	// Live preview synchronization
	Sync SyncConfig `json:"sync" mapstructure:"sync"`

	// Task scheduling
	Scheduler SchedulerConfig `json:"scheduler" mapstructure:"scheduler"`

	// Metrics and tracing
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Audit log file for rollback and session events
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// TrackerConfig holds change tracker settings
type TrackerConfig struct {
	// Glob patterns (doublestar syntax) for paths that are never tracked
	IgnorePatterns []string `json:"ignore_patterns" mapstructure:"ignore_patterns"`
}

// SyncConfig holds diff preview sync settings
type SyncConfig struct {
	DebounceMs       int `json:"debounce_ms" mapstructure:"debounce_ms"`               // external edit debounce
	ResolveTimeoutMs int `json:"resolve_timeout_ms" mapstructure:"resolve_timeout_ms"` // live document resolution
}

// SchedulerConfig holds scheduler settings
type SchedulerConfig struct {
	BackgroundConcurrency int `json:"background_concurrency" mapstructure:"background_concurrency"`
}

// MetricsConfig holds prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// Debounce returns the external edit debounce window
func (c SyncConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// ResolveTimeout returns the live document resolution timeout
func (c SyncConfig) ResolveTimeout() time.Duration {
	return time.Duration(c.ResolveTimeoutMs) * time.Millisecond
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			Redaction: true,
		},
		Tracker: TrackerConfig{
			IgnorePatterns: []string{
				"**/.agentdiff/checkpoints/**",
				"**/.git/**",
			},
		},
		Sync: SyncConfig{
			DebounceMs:       100,
			ResolveTimeoutMs: 5000,
		},
		Scheduler: SchedulerConfig{
			BackgroundConcurrency: 4,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "agentdiff",
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	v := NewValidator()

	if err := v.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}

	for _, pattern := range c.Tracker.IgnorePatterns {
		if err := v.ValidateIgnorePattern(pattern); err != nil {
			return err
		}
	}

	if c.Sync.DebounceMs < 0 {
		return fmt.Errorf("sync.debounce_ms cannot be negative")
	}
	if c.Sync.ResolveTimeoutMs <= 0 {
		return fmt.Errorf("sync.resolve_timeout_ms must be positive")
	}

	if c.Scheduler.BackgroundConcurrency < 1 {
		return fmt.Errorf("scheduler.background_concurrency must be at least 1")
	}

	if c.Metrics.Enabled {
		if err := v.ValidateAddr(c.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics.addr: %w", err)
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.ServiceName == "" {
			return fmt.Errorf("tracing.service_name is required when tracing is enabled")
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
		}
	}

	return nil
}
