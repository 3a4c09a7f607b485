// Package dispatcher runs matched pipelines asynchronously and drives job
// records through their lifecycle.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/livinlefevreloca/hookdeploy/internal/executor"
	"github.com/livinlefevreloca/hookdeploy/internal/jobs"
	"github.com/livinlefevreloca/hookdeploy/internal/matcher"
)

// Standard errors
var (
	ErrShuttingDown = errors.New("dispatcher: shutting down")
)

// Runner executes one pipeline
type Runner interface {
	Execute(ctx context.Context, req executor.Request) error
}

// Options controls job execution
type Options struct {
	// JobTimeout bounds a whole pipeline; zero means unbounded
	JobTimeout time.Duration

	// SerializeByPath allows one running job per target path
	SerializeByPath bool
}

// Task is the handle of one dispatched job
type Task struct {
	JobID string

	done chan struct{}
	err  error
}

// Done is closed once the job reached a terminal status
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err waits for the job and returns its pipeline error, if any
func (t *Task) Err() error {
	<-t.done
	return t.err
}

// Dispatcher starts one goroutine per job
type Dispatcher struct {
	store  jobs.Store
	runner Runner
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	locks  *keyedMutex
}

// New creates a dispatcher
func New(store jobs.Store, runner Runner, opts Options, logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		store:  store,
		runner: runner,
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		locks:  newKeyedMutex(),
	}
}

// Dispatch schedules the pipeline of res for the queued job jobID and
// returns without waiting for it
func (d *Dispatcher) Dispatch(res *matcher.Resolution, jobID string) *Task {
	task := &Task{JobID: jobID, done: make(chan struct{})}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.transition(jobID, jobs.StatusIgnored, jobs.WithReason("service is shutting down"))
		task.err = ErrShuttingDown
		close(task.done)
		return task
	}
	d.wg.Add(1)
	d.mu.Unlock()

	d.logger.Info("job dispatched",
		"job_id", jobID,
		"repository", res.Repository,
		"path", res.Path,
		"branch", res.Branch,
		"steps", len(res.Pipeline))

	go d.run(task, res)
	return task
}

func (d *Dispatcher) run(task *Task, res *matcher.Resolution) {
	defer d.wg.Done()
	defer close(task.done)

	if d.opts.SerializeByPath {
		// Spellings of one directory share a lock
		unlock, err := d.locks.Lock(d.ctx, filepath.Clean(res.Path))
		if err != nil {
			d.transition(task.JobID, jobs.StatusIgnored, jobs.WithReason("service shut down before the job started"))
			task.err = err
			return
		}
		defer unlock()
	}

	if err := d.ctx.Err(); err != nil {
		d.transition(task.JobID, jobs.StatusIgnored, jobs.WithReason("service shut down before the job started"))
		task.err = err
		return
	}

	if !d.transition(task.JobID, jobs.StatusRunning) {
		task.err = fmt.Errorf("job %s could not be started", task.JobID)
		return
	}

	start := time.Now()
	err := d.execute(task.JobID, res)
	task.err = err

	if err != nil {
		command := ""
		cause := err
		var stepErr *executor.StepError
		if errors.As(err, &stepErr) {
			command = stepErr.Command
			cause = stepErr.Err
		}

		d.logger.Warn("job failed",
			"job_id", task.JobID,
			"repository", res.Repository,
			"command", command,
			"duration", time.Since(start),
			"error", err)
		d.transition(task.JobID, jobs.StatusFailed, jobs.WithError(command, cause))
		return
	}

	d.logger.Info("job completed",
		"job_id", task.JobID,
		"repository", res.Repository,
		"duration", time.Since(start))
	d.transition(task.JobID, jobs.StatusCompleted)
}

// execute runs the pipeline, turning a panic into an error
func (d *Dispatcher) execute(jobID string, res *matcher.Resolution) (err error) {
	ctx := d.ctx
	if d.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.JobTimeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("job panicked", "job_id", jobID, "panic", p)
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	return d.runner.Execute(ctx, executor.Request{
		TargetPath: res.Path,
		CloneURL:   res.CloneURL,
		Branch:     res.Branch,
		Pipeline:   res.Pipeline,
	})
}

// transition applies a status change and logs rejected ones, which only
// happen on a lifecycle bug
func (d *Dispatcher) transition(jobID string, to jobs.Status, opts ...jobs.TransitionOption) bool {
	if _, err := d.store.Transition(jobID, to, opts...); err != nil {
		d.logger.Error("job transition failed",
			"job_id", jobID,
			"to", to.String(),
			"error", err)
		return false
	}
	return true
}

// Shutdown stops accepting jobs and waits for running ones. If ctx ends
// first, running commands are cancelled and Shutdown still waits for their
// goroutines to record the outcome.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.logger.Warn("shutdown deadline reached, cancelling running jobs")
		d.cancel()
		<-finished
		return ctx.Err()
	}
}
