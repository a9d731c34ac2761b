// Package image_cache_driver holds transformed images in process memory.
package image_cache_driver

import (
	"hash/fnv"
	"sync"
	"time"

	"imgproxy/domain"
)

// DefaultShardCount is the number of independently locked buckets.
const DefaultShardCount = 32

// MemoryStore is a TTL key-value store for transformed images. Keys are spread
// over shards so that lookups for different keys rarely contend.
type MemoryStore struct {
	shards []*shard
	now    func() time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*domain.ImageProxyCacheEntry
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a store with the given number of shards.
// Non-positive values fall back to DefaultShardCount.
func NewMemoryStore(shardCount int, opts ...Option) *MemoryStore {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	s := &MemoryStore{
		shards: make([]*shard, shardCount),
		now:    time.Now,
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*domain.ImageProxyCacheEntry)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Get returns the live entry stored under key. Expired entries are removed
// and reported as missing.
func (s *MemoryStore) Get(key string) (*domain.ImageProxyCacheEntry, bool) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	entry, ok := sh.entries[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if entry.IsExpired(s.now()) {
		sh.mu.Lock()
		// Only drop it if nobody replaced it in the meantime.
		if current, still := sh.entries[key]; still && current == entry {
			delete(sh.entries, key)
		}
		sh.mu.Unlock()
		return nil, false
	}

	return entry, true
}

// Set stores entry under entry.Key, replacing any previous entry.
func (s *MemoryStore) Set(entry *domain.ImageProxyCacheEntry) {
	sh := s.shardFor(entry.Key)
	sh.mu.Lock()
	sh.entries[entry.Key] = entry
	sh.mu.Unlock()
}

// Sweep removes every expired entry and returns how many were removed.
// Shards are locked one at a time.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, entry := range sh.entries {
			if entry.IsExpired(now) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Now returns the store's current time.
func (s *MemoryStore) Now() time.Time {
	return s.now()
}
