package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Store is an in-process key/value store. Expired entries are dropped lazily on
// read and in bulk by Sweep.
type Store struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{items: make(map[string]entry), now: time.Now}
}

// WithClock replaces the time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get returns the value for key. Expired entries are dropped and reported as
// missing.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.expired(e) {
		s.mu.Lock()
		if cur, still := s.items[key]; still && s.expired(cur) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores value under key. A non-positive ttl never expires.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.items[key] = e
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Sweep removes all expired entries and reports how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.items {
		if s.expired(e) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}
