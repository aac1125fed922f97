package aliasdb

import (
	"context"
	"sync"

	"github.com/routevox/routevox/internal/brain"
)

// Compile-time interface check.
var _ brain.AliasStore = (*MemoryStore)(nil)

// MemoryStore is a [brain.AliasStore] with no persistence. Used in tests and
// when no alias database is configured. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	aliases map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{aliases: make(map[string]string)}
}

// Get implements [brain.AliasStore].
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stopID, ok := s.aliases[key]
	return stopID, ok
}

// Set implements [brain.AliasStore].
func (s *MemoryStore) Set(_ context.Context, key, stopID string) error {
	s.mu.Lock()
	s.aliases[key] = stopID
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored aliases.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.aliases)
}
