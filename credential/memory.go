package credential

import (
	"context"
	"sync"
)

// MemoryStore keeps the pair in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	pair *Pair
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the stored pair.
func (s *MemoryStore) Get(_ context.Context) (Pair, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pair == nil {
		return Pair{}, false, nil
	}
	return *s.pair, true, nil
}

// Set replaces the stored pair.
func (s *MemoryStore) Set(_ context.Context, p Pair) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.pair = &p
	s.mu.Unlock()
	return nil
}

// Clear removes the stored pair.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.pair = nil
	s.mu.Unlock()
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
