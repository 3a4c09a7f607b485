package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/livinlefevreloca/hookdeploy/internal/config"
	"github.com/livinlefevreloca/hookdeploy/internal/db"
	"github.com/livinlefevreloca/hookdeploy/internal/dispatcher"
	"github.com/livinlefevreloca/hookdeploy/internal/executor"
	"github.com/livinlefevreloca/hookdeploy/internal/jobs"
	"github.com/livinlefevreloca/hookdeploy/internal/repomap"
	"github.com/livinlefevreloca/hookdeploy/internal/router"
	"github.com/livinlefevreloca/hookdeploy/internal/server"
	"github.com/spf13/pflag"
)

// options holds command-line flags
type options struct {
	configFile   string
	envFile      string
	repositories string
	port         int
	logLevel     string
}

func parseFlags(args []string, stderr io.Writer) (*options, *pflag.FlagSet, error) {
	flags := pflag.NewFlagSet("hookdeploy", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	opts := &options{}
	flags.StringVarP(&opts.configFile, "config", "c", "", "Path to configuration file (TOML)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file loaded before environment overrides")
	flags.StringVarP(&opts.repositories, "repositories", "r", "", "Path to the repository map (YAML or JSONC)")
	flags.IntVarP(&opts.port, "port", "p", 0, "HTTP listen port")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: hookdeploy [flags]\n\nRuns deployment pipelines for repository push webhooks.\n\nFlags:\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, flags, err
	}
	return opts, flags, nil
}

// loadConfig resolves defaults, file, .env, environment and flags in order
func loadConfig(opts *options, flags *pflag.FlagSet) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return nil, err
	}

	if flags.Changed("repositories") {
		cfg.Repositories.Path = opts.repositories
	}
	if flags.Changed("port") {
		cfg.HTTP.Port = opts.port
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStore returns the configured job store and a func releasing it
func openStore(cfg db.Config, logger *slog.Logger) (jobs.Store, func(), error) {
	if cfg.Driver == db.DriverMemory {
		return jobs.NewMemoryStore(), func() {}, nil
	}

	database, err := db.OpenWithConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store, err := db.NewJobStore(database, jobs.SystemClock{})
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	logger.Info("job store ready", "driver", cfg.Driver)
	return store, func() { database.Close() }, nil
}

func openSource(cfg config.RepositoriesConfig, logger *slog.Logger) (repomap.Source, func()) {
	if !cfg.Watch {
		return repomap.NewFileSource(cfg.Path), func() {}
	}

	source := repomap.NewWatchedSource(cfg.Path, logger)
	return source, func() { source.Close() }
}

func main() {
	opts, flags, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	// Bootstrap logger until the configured one exists
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := loadConfig(opts, flags)
	if err != nil {
		slog.Error("failed to load configuration", "config_file", opts.configFile, "error", err)
		os.Exit(1)
	}

	logger, err := cfg.Logging.NewLogger(os.Stdout)
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("starting hookdeploy",
		"address", cfg.HTTP.Addr(),
		"repositories", cfg.Repositories.Path,
		"watch_repositories", cfg.Repositories.Watch,
		"store_driver", cfg.Store.Driver,
		"tracked_branch", cfg.Router.TrackedBranch,
		"serialize_by_path", cfg.Executor.SerializeByPath)

	if _, err := repomap.ParseFile(cfg.Repositories.Path); err != nil {
		// The map is re-read per event, so a broken file at startup is not fatal
		logger.Warn("repository map not loadable yet", "error", err)
	}

	store, closeStore, err := openStore(cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open job store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	source, closeSource := openSource(cfg.Repositories, logger)
	defer closeSource()

	exec := executor.New(cfg.Executor,
		executor.NewGitSyncer(logger),
		executor.NewShellRunner(cfg.Executor.Shell),
		logger)

	jobDispatcher := dispatcher.New(store, exec, dispatcher.Options{
		JobTimeout:      cfg.Executor.JobTimeout,
		SerializeByPath: cfg.Executor.SerializeByPath,
	}, logger)

	eventRouter := router.New(cfg.Router, store, source, jobDispatcher, logger)
	srv := server.New(cfg.HTTP, eventRouter, store, logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	logger.Info("hookdeploy is running")

	// Wait for interrupt signal or listener failure
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		logger.Info("shutting down gracefully", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server failed", "error", err)
			exitCode = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http server shutdown incomplete", "error", err)
	}
	if err := jobDispatcher.Shutdown(ctx); err != nil {
		logger.Warn("running jobs were cancelled", "error", err)
	}

	logger.Info("hookdeploy stopped")
	if exitCode != 0 {
		closeSource()
		closeStore()
		os.Exit(exitCode)
	}
}
