package executor

import (
	"fmt"
	"time"
)

// Config controls how pipelines are executed
type Config struct {
	// Shell used for command steps, invoked as "<shell> -c <command>"
	Shell string `toml:"shell"`

	// Per-step and per-job limits; zero means unbounded
	StepTimeout time.Duration `toml:"step_timeout"`
	JobTimeout  time.Duration `toml:"job_timeout"`

	// Run at most one job at a time per target path
	SerializeByPath bool `toml:"serialize_by_path"`
}

// DefaultConfig returns the default executor configuration
func DefaultConfig() Config {
	return Config{
		Shell:           "/bin/sh",
		StepTimeout:     0,
		JobTimeout:      0,
		SerializeByPath: true,
	}
}

// Validate checks the executor configuration
func (c Config) Validate() error {
	if c.Shell == "" {
		return fmt.Errorf("executor.shell must not be empty")
	}
	if c.StepTimeout < 0 {
		return fmt.Errorf("executor.step_timeout must not be negative")
	}
	if c.JobTimeout < 0 {
		return fmt.Errorf("executor.job_timeout must not be negative")
	}
	return nil
}
