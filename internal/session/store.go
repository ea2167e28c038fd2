package session

import (
	"sync"
	"time"
)

// Store holds the single lifecycle snapshot. One writer (the session
// adapter) mutates it; everyone else reads copies. Readers never observe
// a partially applied mutation because edits run under the write lock.
type Store struct {
	mu    sync.RWMutex
	state State
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		state: State{Status: Starting},
		now:   time.Now,
	}
}

// Snapshot returns a copy of the current state, never the live value.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Mutate applies edit to the state under the write lock, stamps
// UpdatedAt, and returns the resulting snapshot. Which fields accompany
// which status is the caller's policy; the store only guarantees
// atomicity and the timestamp.
func (s *Store) Mutate(edit func(*State)) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	edit(&s.state)
	s.state.UpdatedAt = s.now()
	return s.state.Clone()
}
