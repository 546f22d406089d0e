package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Contains(t, cfg.Tracker.IgnorePatterns, "**/.agentdiff/checkpoints/**")
	assert.Equal(t, 100*time.Millisecond, cfg.Sync.Debounce())
	assert.Equal(t, 5*time.Second, cfg.Sync.ResolveTimeout())
	assert.Equal(t, 4, cfg.Scheduler.BackgroundConcurrency)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"bad ignore pattern", func(c *Config) { c.Tracker.IgnorePatterns = []string{"[a"} }, "invalid ignore pattern"},
		{"empty ignore pattern", func(c *Config) { c.Tracker.IgnorePatterns = []string{""} }, "cannot be empty"},
		{"negative debounce", func(c *Config) { c.Sync.DebounceMs = -1 }, "debounce_ms"},
		{"zero resolve timeout", func(c *Config) { c.Sync.ResolveTimeoutMs = 0 }, "resolve_timeout_ms"},
		{"zero concurrency", func(c *Config) { c.Scheduler.BackgroundConcurrency = 0 }, "background_concurrency"},
		{"bad metrics addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "nope" }, "metrics.addr"},
		{"bad sample ratio", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.SampleRatio = 2 }, "sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	s := DefaultConfig().String()
	assert.Contains(t, s, `"background_concurrency": 4`)
}
