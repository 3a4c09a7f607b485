package jobs

import "sync"

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps records in a map guarded by a RWMutex. Status queries
// take the read lock, so they never observe a half-applied transition.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
	clock   Clock
}

// NewMemoryStore creates an empty store using the wall clock
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(SystemClock{})
}

// NewMemoryStoreWithClock creates an empty store stamping times from clock
func NewMemoryStoreWithClock(clock Clock) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		order:   make([]string, 0),
		clock:   clock,
	}
}

func (s *MemoryStore) Create(eventType, repository string) (Record, error) {
	rec := NewRecord(eventType, repository, s.clock.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = &rec
	s.order = append(s.order, rec.ID)
	return rec.Clone(), nil
}

func (s *MemoryStore) Transition(id string, to Status, opts ...TransitionOption) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}

	// Work on a copy so a rejected transition leaves the record untouched
	updated := rec.Clone()
	if err := ApplyTransition(&updated, to, s.clock.Now(), opts...); err != nil {
		return rec.Clone(), err
	}
	*rec = updated
	return updated.Clone(), nil
}

func (s *MemoryStore) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) List() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out, nil
}
