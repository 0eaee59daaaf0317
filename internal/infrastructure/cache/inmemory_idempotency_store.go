package cache

import (
	"context"
	"sync"
	"time"
)

const defaultCleanupPeriod = 5 * time.Minute

// entry represents a stored message ID with expiration
type entry struct {
	expiresAt time.Time
}

// InMemoryIdempotencyStore implements IdempotencyStore using an in-memory map.
// State is not shared between instances.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	period    time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates a new in-memory idempotency store.
// Expired entries are swept every cleanupPeriod (default 5m).
func NewInMemoryIdempotencyStore(cleanupPeriod time.Duration) *InMemoryIdempotencyStore {
	if cleanupPeriod <= 0 {
		cleanupPeriod = defaultCleanupPeriod
	}
	store := &InMemoryIdempotencyStore{
		entries:  make(map[string]entry),
		period:   cleanupPeriod,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// MarkProcessed marks a message as processed with a TTL
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, exists := s.entries[id]; exists && now.Before(e.expiresAt) {
		return false, nil
	}

	s.entries[id] = entry{expiresAt: now.Add(ttl)}
	return true, nil
}

// IsProcessed checks if a message has already been processed
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[id]
	if !exists {
		return false, nil
	}
	return time.Now().Before(e.expiresAt), nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (s *InMemoryIdempotencyStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired entries from the store
func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

// Size returns the number of entries in the store
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure InMemoryIdempotencyStore implements IdempotencyStore
var _ IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
