package testutil

import (
	"sync"
	"time"
)

// MockClock provides controllable time for testing. It satisfies
// jobs.Clock; every call to Now can optionally advance it by a fixed step
// so consecutive timestamps are distinct and ordered.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

func NewMockClock(start time.Time) *MockClock {
	return &MockClock{
		current: start,
	}
}

// NewTickingClock returns a clock that advances by step after each Now
func NewTickingClock(start time.Time, step time.Duration) *MockClock {
	return &MockClock{
		current: start,
		step:    step,
	}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.current
	m.current = m.current.Add(m.step)
	return now
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}

// WaitFor polls condition until it holds or timeout expires
func WaitFor(t TestingT, condition func() bool, timeout time.Duration, msgAndArgs ...interface{}) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return true
		}
		if time.Now().After(deadline) {
			t.Errorf("timeout waiting for condition: %v", msgAndArgs)
			return false
		}
		<-ticker.C
	}
}

// TestingT is a minimal interface for testing
type TestingT interface {
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}
