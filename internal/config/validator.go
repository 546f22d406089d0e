package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogLevel validates a log level name
func (v *Validator) ValidateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "", "trace", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("invalid log level %q (must be: trace, debug, info, warn, error)", level)
	}
}

// ValidateIgnorePattern validates a doublestar glob pattern
func (v *Validator) ValidateIgnorePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("ignore pattern cannot be empty")
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid ignore pattern %q", pattern)
	}
	return nil
}

// ValidateAddr validates a host:port listen address
func (v *Validator) ValidateAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}

	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be a number")
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	return nil
}
