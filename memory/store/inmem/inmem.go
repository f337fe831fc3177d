// Package inmem provides a process-local memory.Storage.
package inmem

import (
	"context"
	"sync"

	"github.com/becomeliminal/bridge-go-sdk/memory"
)

// Storage keeps states in a map. Safe for concurrent use.
type Storage struct {
	mu     sync.RWMutex
	states map[memory.Key]*memory.State
	saves  int
}

// New creates an empty Storage.
func New() *Storage {
	return &Storage{states: make(map[memory.Key]*memory.State)}
}

// Load returns a copy of the state stored under key, or nil.
func (s *Storage) Load(_ context.Context, key memory.Key) (*memory.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key]
	if !ok {
		return nil, nil
	}
	return clone(st), nil
}

// Save stores a copy of state under key.
func (s *Storage) Save(_ context.Context, key memory.Key, state *memory.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = clone(state)
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *Storage) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Keys lists every stored key.
func (s *Storage) Keys() []memory.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]memory.Key, 0, len(s.states))
	for k := range s.states {
		keys = append(keys, k)
	}
	return keys
}

func clone(st *memory.State) *memory.State {
	if st == nil {
		return nil
	}
	cp := *st
	cp.Interactions = append([]memory.Interaction(nil), st.Interactions...)
	cp.Summaries = append([]memory.Summary(nil), st.Summaries...)
	return &cp
}
