package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// HTTP defaults
	if cfg.HTTP.Port != 8000 {
		t.Errorf("expected HTTP port 8000, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.EventHeader != "X-GitHub-Event" {
		t.Errorf("expected event header X-GitHub-Event, got %s", cfg.HTTP.EventHeader)
	}

	// Router defaults
	if cfg.Router.PushEvent != "push" {
		t.Errorf("expected push event push, got %s", cfg.Router.PushEvent)
	}
	if cfg.Router.TrackedBranch != "main" {
		t.Errorf("expected tracked branch main, got %s", cfg.Router.TrackedBranch)
	}

	// Executor defaults
	if !cfg.Executor.SerializeByPath {
		t.Error("expected serialize_by_path enabled by default")
	}
	if cfg.Executor.StepTimeout != 0 || cfg.Executor.JobTimeout != 0 {
		t.Error("expected no timeouts by default")
	}

	// Store defaults
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected store driver memory, got %s", cfg.Store.Driver)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[http]
port = 9000
event_header = "X-Gitea-Event"

[logging]
level = "debug"
format = "text"

[repositories]
path = "/etc/hookdeploy/repos.jsonc"
watch = true

[router]
tracked_branch = "production"

[executor]
shell = "/bin/bash"
step_timeout = "2m"
job_timeout = "10m"
serialize_by_path = false

[store]
driver = "sqlite3"
dsn = "/var/lib/hookdeploy/jobs.db"
max_open_conns = 50
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Check overridden values
	if cfg.HTTP.Port != 9000 {
		t.Errorf("expected HTTP port 9000, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.EventHeader != "X-Gitea-Event" {
		t.Errorf("expected event header X-Gitea-Event, got %s", cfg.HTTP.EventHeader)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("expected debug/text logging, got %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Repositories.Path != "/etc/hookdeploy/repos.jsonc" || !cfg.Repositories.Watch {
		t.Errorf("unexpected repositories config: %+v", cfg.Repositories)
	}
	if cfg.Router.TrackedBranch != "production" {
		t.Errorf("expected tracked branch production, got %s", cfg.Router.TrackedBranch)
	}
	if cfg.Executor.StepTimeout != 2*time.Minute {
		t.Errorf("expected step_timeout 2m, got %v", cfg.Executor.StepTimeout)
	}
	if cfg.Executor.JobTimeout != 10*time.Minute {
		t.Errorf("expected job_timeout 10m, got %v", cfg.Executor.JobTimeout)
	}
	if cfg.Executor.SerializeByPath {
		t.Error("expected serialize_by_path disabled")
	}
	if cfg.Store.Driver != "sqlite3" {
		t.Errorf("expected driver sqlite3, got %s", cfg.Store.Driver)
	}
	if cfg.Store.MaxOpenConns != 50 {
		t.Errorf("expected max_open_conns 50, got %d", cfg.Store.MaxOpenConns)
	}

	// Check default values still present
	if cfg.Router.PushEvent != "push" {
		t.Errorf("expected push_event default push, got %s", cfg.Router.PushEvent)
	}
	if cfg.Store.MaxIdleConns != 2 {
		t.Errorf("expected max_idle_conns default 2, got %d", cfg.Store.MaxIdleConns)
	}
	if cfg.HTTP.Address != "0.0.0.0" {
		t.Errorf("expected address default 0.0.0.0, got %s", cfg.HTTP.Address)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/config.toml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_UnknownKey(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[http]\nprot = 9000\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil || !strings.Contains(err.Error(), "http.prot") {
		t.Errorf("expected unknown key error naming http.prot, got %v", err)
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected no error for empty config path, got %v", err)
	}

	// Should return defaults
	if cfg.Router.TrackedBranch != "main" {
		t.Errorf("expected default tracked branch, got %s", cfg.Router.TrackedBranch)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[http]\nport = 9000\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("HOOKDEPLOY_PORT", "9100")

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.HTTP.Port != 9100 {
		t.Errorf("expected env port 9100, got %d", cfg.HTTP.Port)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"HOOKDEPLOY_LOG_LEVEL":          "warn",
		"HOOKDEPLOY_REPOSITORIES":       "/srv/repos.yaml",
		"HOOKDEPLOY_WATCH_REPOSITORIES": "true",
		"HOOKDEPLOY_TRACKED_BRANCH":     "release",
		"HOOKDEPLOY_STORE_DRIVER":       "postgres",
		"HOOKDEPLOY_STORE_DSN":          "postgres://localhost/hookdeploy",
		"HOOKDEPLOY_JOB_TIMEOUT":        "90s",
		"UNRELATED":                     "ignored",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("expected level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Repositories.Path != "/srv/repos.yaml" || !cfg.Repositories.Watch {
		t.Errorf("unexpected repositories config: %+v", cfg.Repositories)
	}
	if cfg.Router.TrackedBranch != "release" {
		t.Errorf("expected tracked branch release, got %s", cfg.Router.TrackedBranch)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.DSN != "postgres://localhost/hookdeploy" {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Executor.JobTimeout != 90*time.Second {
		t.Errorf("expected job timeout 90s, got %v", cfg.Executor.JobTimeout)
	}

	// Untouched values keep their defaults
	if cfg.HTTP.Port != 8000 {
		t.Errorf("expected default port, got %d", cfg.HTTP.Port)
	}
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"HOOKDEPLOY_PORT":               "eighty",
		"HOOKDEPLOY_WATCH_REPOSITORIES": "sometimes",
		"HOOKDEPLOY_STEP_TIMEOUT":       "soon",
	}

	for key, value := range tests {
		cfg := DefaultConfig()
		err := cfg.ApplyEnv(func(k string) (string, bool) {
			if k == key {
				return value, true
			}
			return "", false
		})
		if err == nil {
			t.Errorf("expected error for %s=%s", key, value)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("HOOKDEPLOY_TEST_DOTENV=from-file\nHOOKDEPLOY_TEST_PRESET=from-file\n"), 0644); err != nil {
		t.Fatalf("failed to write .env file: %v", err)
	}

	t.Setenv("HOOKDEPLOY_TEST_PRESET", "from-env")
	t.Setenv("HOOKDEPLOY_TEST_DOTENV", "")
	os.Unsetenv("HOOKDEPLOY_TEST_DOTENV")

	if err := LoadDotEnv(envPath, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}

	if got := os.Getenv("HOOKDEPLOY_TEST_DOTENV"); got != "from-file" {
		t.Errorf("expected from-file, got %q", got)
	}
	if got := os.Getenv("HOOKDEPLOY_TEST_PRESET"); got != "from-env" {
		t.Errorf("existing variables must win, got %q", got)
	}
}

func TestValidate_Success(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"invalid driver", func(c *Config) { c.Store.Driver = "mysql" }},
		{"empty driver", func(c *Config) { c.Store.Driver = "" }},
		{"sqlite without dsn", func(c *Config) { c.Store.Driver = "sqlite3"; c.Store.DSN = "" }},
		{"invalid port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"empty repositories path", func(c *Config) { c.Repositories.Path = "" }},
		{"empty tracked branch", func(c *Config) { c.Router.TrackedBranch = "" }},
		{"empty shell", func(c *Config) { c.Executor.Shell = "" }},
		{"negative step timeout", func(c *Config) { c.Executor.StepTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown", "job_id", "abc")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, `"job_id":"abc"`) {
		t.Errorf("expected JSON output with job_id, got %s", out)
	}

	if _, err := (LoggingConfig{Level: "loud", Format: "json"}).NewLogger(&buf); err == nil {
		t.Error("expected error for invalid level")
	}
}
