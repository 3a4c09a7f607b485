package jobs

import (
	"errors"
	"time"
)

// Standard errors
var (
	ErrNotFound          = errors.New("jobs: job not found")
	ErrInvalidTransition = errors.New("jobs: invalid status transition")
)

// Store owns every job record for the lifetime of the process.
// Implementations must make transitions of a single job linearizable with
// respect to concurrent reads.
type Store interface {
	// Create inserts a queued record and returns a snapshot of it
	Create(eventType, repository string) (Record, error)

	// Transition moves a record to a new status and returns the updated snapshot
	Transition(id string, to Status, opts ...TransitionOption) (Record, error)

	// Get returns a snapshot of one record, or ErrNotFound
	Get(id string) (Record, error)

	// List returns snapshots of all records in creation order
	List() ([]Record, error)
}

// Clock supplies timestamps to a store
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
