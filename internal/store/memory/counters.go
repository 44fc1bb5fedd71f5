// Package memory provides process-local stores. Nothing here survives a restart.
package memory

import (
	"context"
	"sync"
	"time"
)

// CounterStore implements domain.CounterStore with a mutex-guarded map.
// TTLs are not tracked; the quota tracker prunes expired windows itself.
type CounterStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewCounterStore creates an empty counter store.
func NewCounterStore() *CounterStore {
	return &CounterStore{
		counters: make(map[string]int64),
	}
}

// Incr adds one to key and returns the new value.
func (s *CounterStore) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[key]++
	return s.counters[key], nil
}

// Get returns the value of key, or 0.
func (s *CounterStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counters[key], nil
}

// Prune deletes every key for which keep returns false.
func (s *CounterStore) Prune(_ context.Context, keep func(key string) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.counters {
		if !keep(key) {
			delete(s.counters, key)
		}
	}
	return nil
}

// Reset deletes all counters.
func (s *CounterStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters = make(map[string]int64)
	return nil
}
