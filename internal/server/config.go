package server

import (
	"fmt"
	"time"
)

// Config holds HTTP listener configuration
type Config struct {
	Address           string        `toml:"address"`
	Port              int           `toml:"port"`
	EventHeader       string        `toml:"event_header"`
	MaxBodyBytes      int64         `toml:"max_body_bytes"`
	ReadHeaderTimeout time.Duration `toml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `toml:"shutdown_timeout"`
}

// DefaultConfig returns the default HTTP configuration
func DefaultConfig() Config {
	return Config{
		Address:           "0.0.0.0",
		Port:              8000,
		EventHeader:       "X-GitHub-Event",
		MaxBodyBytes:      5 << 20,
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}

// Addr returns the listen address
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}

// Validate checks the HTTP configuration
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.Port)
	}
	if c.EventHeader == "" {
		return fmt.Errorf("http.event_header must not be empty")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("http.shutdown_timeout must be positive")
	}
	return nil
}
