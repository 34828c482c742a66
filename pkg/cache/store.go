//go:generate mockgen -source=store.go -destination=mock/store.go -package=mock_cache

package cache

import (
	"sync"
)

// Store maps an upstream URL to at most one Entry.
type Store interface {
	// Get returns the entry stored for url, fresh or stale.
	Get(url string) (*Entry, bool)

	// Set creates or overwrites the entry for url.
	Set(url string, entry *Entry)

	// Len returns the number of URLs held.
	Len() int
}

// MemoryStore is a concurrency-safe in-memory Store.
//
// There is no capacity bound and no eviction: entries live until the same
// URL is fetched again and the new entry replaces them.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Get retrieves the entry for url without judging freshness.
func (s *MemoryStore) Get(url string) (*Entry, bool) {
	s.mu.RLock()
	entry, ok := s.entries[url]
	s.mu.RUnlock()
	return entry, ok
}

// Set stores entry under url. Last writer wins.
func (s *MemoryStore) Set(url string, entry *Entry) {
	if entry == nil {
		return
	}

	s.mu.Lock()
	s.entries[url] = entry
	size := len(s.entries)
	s.mu.Unlock()

	CacheEntries.Set(float64(size))
}

// Len returns the number of stored URLs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
