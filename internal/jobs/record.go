package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is the lifecycle record of one received event
type Record struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	EventType  string    `json:"event_type"`
	Repository string    `json:"repository"`
	CreatedAt  time.Time `json:"created_at"`

	// Set on transition to running
	StartedAt *time.Time `json:"started_at,omitempty"`

	// Exactly one of these is set once the record leaves running
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	// Failure details, only on failed
	FailedCommand string `json:"failed_command,omitempty"`
	Error         string `json:"error,omitempty"`

	// Why the event was not acted upon, only on ignored
	Reason string `json:"reason,omitempty"`
}

// Clone returns a deep copy so callers never share timestamps with the store
func (r Record) Clone() Record {
	out := r
	out.StartedAt = copyTime(r.StartedAt)
	out.CompletedAt = copyTime(r.CompletedAt)
	out.FailedAt = copyTime(r.FailedAt)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// NewID generates a job identifier
func NewID() string {
	return uuid.New().String()
}

// NewRecord builds a queued record stamped with now
func NewRecord(eventType, repository string, now time.Time) Record {
	return Record{
		ID:         NewID(),
		Status:     StatusQueued,
		EventType:  eventType,
		Repository: repository,
		CreatedAt:  now,
	}
}

// TransitionOption attaches extra fields to a status transition
type TransitionOption func(*transitionFields)

type transitionFields struct {
	command string
	err     error
	reason  string
}

// WithError records the failing command and its cause on a transition to failed
func WithError(command string, err error) TransitionOption {
	return func(f *transitionFields) {
		f.command = command
		f.err = err
	}
}

// WithReason records why a record was ignored
func WithReason(reason string) TransitionOption {
	return func(f *transitionFields) {
		f.reason = reason
	}
}

// ApplyTransition moves rec to the given status in place, stamping the
// timestamp that belongs to the new status. Store implementations share it
// so the lifecycle rules live in one place.
func ApplyTransition(rec *Record, to Status, now time.Time, opts ...TransitionOption) error {
	if !rec.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s (job %s)", ErrInvalidTransition, rec.Status, to, rec.ID)
	}

	var fields transitionFields
	for _, opt := range opts {
		opt(&fields)
	}

	switch to {
	case StatusRunning:
		rec.StartedAt = &now
	case StatusCompleted:
		rec.CompletedAt = &now
	case StatusFailed:
		rec.FailedAt = &now
		rec.FailedCommand = fields.command
		if fields.err != nil {
			rec.Error = fields.err.Error()
		} else {
			rec.Error = "unknown error"
		}
	case StatusIgnored:
		rec.Reason = fields.reason
	}

	rec.Status = to
	return nil
}
