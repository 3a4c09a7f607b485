// Package router turns inbound repository events into job records and
// dispatches the ones that match the repository map.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/livinlefevreloca/hookdeploy/internal/dispatcher"
	"github.com/livinlefevreloca/hookdeploy/internal/jobs"
	"github.com/livinlefevreloca/hookdeploy/internal/matcher"
	"github.com/livinlefevreloca/hookdeploy/internal/repomap"
)

// Standard errors
var (
	ErrMalformedEvent = errors.New("router: malformed event")
)

// Config selects which events are actionable
type Config struct {
	PushEvent     string `toml:"push_event"`
	TrackedBranch string `toml:"tracked_branch"`
}

// DefaultConfig returns the default router configuration
func DefaultConfig() Config {
	return Config{
		PushEvent:     "push",
		TrackedBranch: "main",
	}
}

// Validate checks the router configuration
func (c Config) Validate() error {
	if c.PushEvent == "" {
		return fmt.Errorf("router.push_event must not be empty")
	}
	if c.TrackedBranch == "" {
		return fmt.Errorf("router.tracked_branch must not be empty")
	}
	return nil
}

// Dispatcher schedules a resolved pipeline
type Dispatcher interface {
	Dispatch(res *matcher.Resolution, jobID string) *dispatcher.Task
}

// pushEvent holds the payload fields the router reads
type pushEvent struct {
	Ref        string `json:"ref"`
	Repository struct {
		Name     string `json:"name"`
		CloneURL string `json:"clone_url"`
	} `json:"repository"`
}

// Router decides what happens to each inbound event
type Router struct {
	config     Config
	store      jobs.Store
	source     repomap.Source
	dispatcher Dispatcher
	logger     *slog.Logger
}

// New creates a router
func New(config Config, store jobs.Store, source repomap.Source, d Dispatcher, logger *slog.Logger) *Router {
	return &Router{
		config:     config,
		store:      store,
		source:     source,
		dispatcher: d,
		logger:     logger,
	}
}

// BranchFromRef returns the last "/" separated segment of a git ref
func BranchFromRef(ref string) string {
	return ref[strings.LastIndex(ref, "/")+1:]
}

// Handle records the event and dispatches it if actionable. Exactly one
// record is created per call. The returned record is the snapshot taken
// right after the decision: queued when dispatched, ignored otherwise.
// An error is only returned for ErrMalformedEvent or store failures. The
// job does not depend on ctx once matched.
func (r *Router) Handle(_ context.Context, eventType string, payload json.RawMessage) (jobs.Record, error) {
	var event pushEvent
	decodeErr := json.Unmarshal(payload, &event)

	rec, err := r.store.Create(eventType, event.Repository.Name)
	if err != nil {
		return jobs.Record{}, fmt.Errorf("creating job record: %w", err)
	}

	logger := r.logger.With("job_id", rec.ID, "event_type", eventType)

	if eventType != r.config.PushEvent {
		return r.ignore(logger, rec, fmt.Sprintf("event type %q is not handled", eventType))
	}

	if decodeErr != nil {
		ignored, err := r.ignore(logger, rec, fmt.Sprintf("payload could not be decoded: %v", decodeErr))
		if err != nil {
			return ignored, err
		}
		return ignored, fmt.Errorf("%w: %v", ErrMalformedEvent, decodeErr)
	}

	branch := BranchFromRef(event.Ref)
	if branch != r.config.TrackedBranch {
		return r.ignore(logger, rec, fmt.Sprintf("branch %q is not tracked", branch))
	}

	var missing []string
	if event.Repository.Name == "" {
		missing = append(missing, "repository.name")
	}
	if event.Repository.CloneURL == "" {
		missing = append(missing, "repository.clone_url")
	}
	if len(missing) > 0 {
		reason := "payload is missing " + strings.Join(missing, " and ")
		ignored, err := r.ignore(logger, rec, reason)
		if err != nil {
			return ignored, err
		}
		return ignored, fmt.Errorf("%w: %s", ErrMalformedEvent, reason)
	}

	m, err := r.source.Load()
	if err != nil {
		logger.Error("failed to load repository map", "error", err)
		return r.ignore(logger, rec, fmt.Sprintf("repository map unavailable: %v", err))
	}

	res, err := matcher.Resolve(event.Repository.Name, branch, event.Repository.CloneURL, m)
	if err != nil {
		return r.ignore(logger, rec, err.Error())
	}

	r.dispatcher.Dispatch(res, rec.ID)
	return rec, nil
}

func (r *Router) ignore(logger *slog.Logger, rec jobs.Record, reason string) (jobs.Record, error) {
	ignored, err := r.store.Transition(rec.ID, jobs.StatusIgnored, jobs.WithReason(reason))
	if err != nil {
		logger.Error("failed to mark job ignored", "error", err)
		return rec, fmt.Errorf("marking job ignored: %w", err)
	}

	logger.Info("event ignored", "repository", rec.Repository, "reason", reason)
	return ignored, nil
}
