package store

import (
	"context"
	"sort"
	"sync"

	"github.com/nvandessel/competence/internal/metrics"
	"github.com/nvandessel/competence/internal/models"
)

// MemoryStateStore implements StateStore for tests and ephemeral runs.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]*models.LearnerState
}

// NewMemoryStateStore creates an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]*models.LearnerState)}
}

// Load returns a copy of the state stored under key.
func (s *MemoryStateStore) Load(ctx context.Context, key string) (*models.LearnerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[key]
	if !ok {
		metrics.ObserveStore(string(BackendMemory), "load", ErrNotFound)
		return nil, ErrNotFound
	}
	metrics.ObserveStore(string(BackendMemory), "load", nil)
	return cloneState(st), nil
}

// Save stores a copy of state under key.
func (s *MemoryStateStore) Save(ctx context.Context, key string, state *models.LearnerState) error {
	if err := ValidateState(key, state); err != nil {
		metrics.ObserveStore(string(BackendMemory), "save", err)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[key] = cloneState(state)
	metrics.ObserveStore(string(BackendMemory), "save", nil)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *MemoryStateStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, key)
	metrics.ObserveStore(string(BackendMemory), "delete", nil)
	return nil
}

// Keys returns every stored key in sorted order.
func (s *MemoryStateStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.states))
	for k := range s.states {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op.
func (s *MemoryStateStore) Close() error { return nil }
