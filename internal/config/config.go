package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/livinlefevreloca/hookdeploy/internal/db"
	"github.com/livinlefevreloca/hookdeploy/internal/executor"
	"github.com/livinlefevreloca/hookdeploy/internal/router"
	"github.com/livinlefevreloca/hookdeploy/internal/server"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "HOOKDEPLOY_"

// Config represents the application configuration
type Config struct {
	HTTP         server.Config      `toml:"http"`
	Logging      LoggingConfig      `toml:"logging"`
	Repositories RepositoriesConfig `toml:"repositories"`
	Router       router.Config      `toml:"router"`
	Executor     executor.Config    `toml:"executor"`
	Store        db.Config          `toml:"store"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// RepositoriesConfig locates the repository map
type RepositoriesConfig struct {
	Path string `toml:"path"`

	// Cache the parsed map and reload it only when the file changes
	Watch bool `toml:"watch"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: server.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Repositories: RepositoriesConfig{
			Path:  "repositories.yaml",
			Watch: false,
		},
		Router:   router.DefaultConfig(),
		Executor: executor.DefaultConfig(),
		Store: db.Config{
			Driver:          db.DriverMemory,
			DSN:             "",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
	}
}

// LoadFromFile loads configuration from a TOML file
func LoadFromFile(path string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	// Parse TOML file
	meta, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	return config, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// LoadConfig loads configuration with the following precedence:
// 1. Default values
// 2. Config file (if specified)
// 3. Environment variables (HOOKDEPLOY_*)
// 4. Command-line flags (handled by caller)
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Load from file if one was given
	if configPath != "" {
		fileConfig, err := LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv overrides settings from environment variables read through lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		return lookup(EnvPrefix + name)
	}

	strs := map[string]*string{
		"ADDRESS":        &c.HTTP.Address,
		"EVENT_HEADER":   &c.HTTP.EventHeader,
		"LOG_LEVEL":      &c.Logging.Level,
		"LOG_FORMAT":     &c.Logging.Format,
		"REPOSITORIES":   &c.Repositories.Path,
		"PUSH_EVENT":     &c.Router.PushEvent,
		"TRACKED_BRANCH": &c.Router.TrackedBranch,
		"SHELL":          &c.Executor.Shell,
		"STORE_DRIVER":   &c.Store.Driver,
		"STORE_DSN":      &c.Store.DSN,
	}
	for name, field := range strs {
		if v, ok := get(name); ok {
			*field = v
		}
	}

	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sPORT: %w", EnvPrefix, err)
		}
		c.HTTP.Port = port
	}

	if v, ok := get("WATCH_REPOSITORIES"); ok {
		watch, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sWATCH_REPOSITORIES: %w", EnvPrefix, err)
		}
		c.Repositories.Watch = watch
	}

	durations := map[string]*time.Duration{
		"STEP_TIMEOUT": &c.Executor.StepTimeout,
		"JOB_TIMEOUT":  &c.Executor.JobTimeout,
	}
	for name, field := range durations {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*field = d
		}
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// HTTP validation
	if err := c.HTTP.Validate(); err != nil {
		return err
	}

	// Logging validation
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	// Repository map validation
	if c.Repositories.Path == "" {
		return fmt.Errorf("repositories path must be specified")
	}

	if err := c.Router.Validate(); err != nil {
		return err
	}
	if err := c.Executor.Validate(); err != nil {
		return err
	}

	// Store validation
	switch c.Store.Driver {
	case db.DriverMemory:
	case db.DriverSQLite, db.DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store DSN must be specified for driver %s", c.Store.Driver)
		}
	case "":
		return fmt.Errorf("store driver must be specified")
	default:
		return fmt.Errorf("unsupported store driver: %s (must be memory, sqlite3, or postgres)", c.Store.Driver)
	}

	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}
}

// NewLogger builds the process logger described by the logging section
func (c LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}
