package jobs

import "fmt"

// Status represents the lifecycle state of a job record
type Status int

const (
	// Initial state
	StatusQueued Status = iota // Created, waiting for its pipeline to start

	// Execution state
	StatusRunning // Pipeline executing

	// Terminal states
	StatusCompleted // Every step succeeded
	StatusFailed    // A step failed, remaining steps skipped
	StatusIgnored   // Event was not actionable, nothing executed
)

// String returns a human-readable representation of the job status
func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// ParseStatus converts a status name back into a Status
func ParseStatus(name string) (Status, error) {
	switch name {
	case "queued":
		return StatusQueued, nil
	case "running":
		return StatusRunning, nil
	case "completed":
		return StatusCompleted, nil
	case "failed":
		return StatusFailed, nil
	case "ignored":
		return StatusIgnored, nil
	default:
		return 0, fmt.Errorf("unknown job status: %q", name)
	}
}

// IsTerminal reports whether no further transition is allowed out of s
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusIgnored
}

// CanTransitionTo reports whether next is a legal successor of s.
//
//	queued  -> running | ignored
//	running -> completed | failed
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusRunning || next == StatusIgnored
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// MarshalText encodes the status by name so JSON consumers see "running", not 1
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
