// Package executor runs an action pipeline against a working directory.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/livinlefevreloca/hookdeploy/internal/repomap"
)

// maxOutputTail bounds how much step output is kept on failure
const maxOutputTail = 4096

// Syncer brings a working copy up to date with its remote branch
type Syncer interface {
	Clone(ctx context.Context, url, branch, dir string) error
	Pull(ctx context.Context, dir, branch string) error
}

// Shell runs one command in a directory and returns its combined output
type Shell interface {
	Run(ctx context.Context, dir, command string) ([]byte, error)
}

// Request describes one pipeline run
type Request struct {
	TargetPath string
	CloneURL   string
	Branch     string
	Pipeline   []repomap.Step
}

// StepError reports the step that aborted a pipeline
type StepError struct {
	Index   int
	Command string
	Output  []byte
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Command, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Executor runs pipelines step by step, stopping at the first failure
type Executor struct {
	config Config
	syncer Syncer
	shell  Shell
	logger *slog.Logger
}

// New creates an executor
func New(config Config, syncer Syncer, shell Shell, logger *slog.Logger) *Executor {
	return &Executor{
		config: config,
		syncer: syncer,
		shell:  shell,
		logger: logger,
	}
}

// Execute runs every step of req.Pipeline in order. It returns nil when all
// steps succeed and a *StepError for the first one that does not.
func (e *Executor) Execute(ctx context.Context, req Request) error {
	for i, step := range req.Pipeline {
		if err := ctx.Err(); err != nil {
			return &StepError{Index: i, Command: step.String(), Err: err}
		}

		start := time.Now()
		output, err := e.runStep(ctx, req, step)
		duration := time.Since(start)

		if err != nil {
			tail := outputTail(output)
			e.logger.Warn("pipeline step failed",
				"step", i,
				"command", step.String(),
				"path", req.TargetPath,
				"duration", duration,
				"output", string(tail),
				"error", err)
			return &StepError{Index: i, Command: step.String(), Output: tail, Err: err}
		}

		e.logger.Debug("pipeline step completed",
			"step", i,
			"command", step.String(),
			"path", req.TargetPath,
			"duration", duration)
	}

	return nil
}

func (e *Executor) runStep(ctx context.Context, req Request, step repomap.Step) ([]byte, error) {
	if e.config.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.StepTimeout)
		defer cancel()
	}

	switch s := step.(type) {
	case repomap.SyncStep:
		return nil, e.sync(ctx, req)
	case repomap.ShellStep:
		return e.shell.Run(ctx, req.TargetPath, s.Command)
	default:
		return nil, fmt.Errorf("unsupported step type %T", step)
	}
}

// sync pulls an existing working copy or clones a fresh one
func (e *Executor) sync(ctx context.Context, req Request) error {
	info, err := os.Stat(req.TargetPath)
	switch {
	case err == nil && info.IsDir():
		e.logger.Info("pulling repository", "path", req.TargetPath, "branch", req.Branch)
		return e.syncer.Pull(ctx, req.TargetPath, req.Branch)
	case err == nil:
		return fmt.Errorf("target path %s exists and is not a directory", req.TargetPath)
	case errors.Is(err, os.ErrNotExist):
		e.logger.Info("cloning repository",
			"url", req.CloneURL,
			"path", req.TargetPath,
			"branch", req.Branch)
		return e.syncer.Clone(ctx, req.CloneURL, req.Branch, req.TargetPath)
	default:
		return fmt.Errorf("checking target path: %w", err)
	}
}

func outputTail(output []byte) []byte {
	if len(output) <= maxOutputTail {
		return output
	}
	return output[len(output)-maxOutputTail:]
}
