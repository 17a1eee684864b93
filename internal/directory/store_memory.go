package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sufield/junction/internal/core/errors"
	"github.com/sufield/junction/internal/core/ports"
)

// MemoryStore is the default directory store: one map behind one lock.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (s *MemoryStore) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, bound := s.entries[key]; bound {
		return errors.NewDomainError(errors.ErrAlreadyBound, fmt.Errorf("key %q", key))
	}
	s.entries[key] = value
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, key string) (ports.LookupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.entries[key]; ok {
		return ports.Found(v), nil
	}
	return ports.NotFound, nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, bound := s.entries[key]; !bound {
		return errors.NewDomainError(errors.ErrNotBound, fmt.Errorf("key %q", key))
	}
	delete(s.entries, key)
	return nil
}

// Len returns the number of bound keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error { return nil }
