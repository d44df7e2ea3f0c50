package memory

import (
	"context"
	"fmt"
	"sync"
)

// InMemorySequenceStore implements invoice.SequenceRepository with a
// mutex-protected counter per (tenant, year) key
type InMemorySequenceStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewInMemorySequenceStore creates a new in-memory invoice sequence store
func NewInMemorySequenceStore() *InMemorySequenceStore {
	return &InMemorySequenceStore{
		counters: make(map[string]int64),
	}
}

// Next atomically increments and returns the invoice sequence for the
// tenant and year; two concurrent callers never observe the same value
func (s *InMemorySequenceStore) Next(ctx context.Context, tenantID string, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%s:%d", tenantID, year)
	s.counters[key]++
	return s.counters[key], nil
}

// Clear clears the sequence store
func (s *InMemorySequenceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[string]int64)
}
