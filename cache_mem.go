package nw

import (
	"context"
	"log"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

////////////////
//
// (memory store)
//

// memory store entry
type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// memory store
type memStore struct {
	entries *lru.Cache[string, memEntry]

	now func() time.Time

	verbose bool
}

// NewMemStore returns a new memory store which keeps at most `size` entries.
//
// Least recently used entries are evicted when it is full.
func NewMemStore(size int) Store {
	return newMemStore(size)
}

// return a new memory store
func newMemStore(size int) *memStore {
	if size <= 0 {
		size = defaultMemStoreSize
	}

	entries, err := lru.New[string, memEntry](size)
	if err != nil {
		// (only fails with a non-positive size)
		log.Printf("failed to create lru cache with size %d: %s", size, err)
		entries, _ = lru.New[string, memEntry](defaultMemStoreSize)
	}

	return &memStore{
		entries: entries,
		now:     time.Now,
	}
}

// Get gets the value of `key` if it exists and is not expired.
func (s *memStore) Get(_ context.Context, key string) (value []byte, exists bool) {
	v(s.verbose, "memStore - getting value with key: %s", key)

	entry, exists := s.entries.Get(key)
	if !exists {
		return nil, false
	}
	if !s.now().Before(entry.expiresAt) {
		v(s.verbose, "memStore - value with key: %s is expired", key)

		s.entries.Remove(key)
		return nil, false
	}

	return entry.value, true
}

// Set sets the value of `key` which expires after `ttl`.
func (s *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	v(s.verbose, "memStore - setting value with key: %s (ttl: %s)", key, ttl)

	s.entries.Add(key, memEntry{
		value:     value,
		expiresAt: s.now().Add(ttl),
	})
}

// DeleteExpired deletes expired entries.
func (s *memStore) DeleteExpired() {
	v(s.verbose, "memStore - deleting expired entries")

	now := s.now()
	for _, key := range s.entries.Keys() {
		if entry, exists := s.entries.Peek(key); exists && !now.Before(entry.expiresAt) {
			s.entries.Remove(key)
		}
	}
}

// SetVerbose sets the verbosity of store.
func (s *memStore) SetVerbose(v bool) {
	s.verbose = v
}
