package mocking

import "sync"

// Store collects compiled containers keyed by the unit name each one
// declares. Poll removes what it returns, so every compilation consumes
// its own result exactly once and stale containers never satisfy a
// later request.
//
// All methods are safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	units map[string][]byte
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{units: map[string][]byte{}}
}

// Put inserts or replaces the container for the named unit.
func (s *Store) Put(name string, container []byte) {
	s.mu.Lock()
	s.units[name] = container
	s.mu.Unlock()
}

// Poll removes and returns the container for the named unit.
func (s *Store) Poll(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	container, ok := s.units[name]
	if !ok {
		return nil, false
	}
	delete(s.units, name)
	return container, true
}

// Len returns the number of stored containers.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.units)
}
