// Package cache provides the process-wide key/value store backing the data
// adapters, with per-entry TTL expiry and LRU eviction at a capacity bound.
// The store has no knowledge of data semantics; keys are derived from
// (operation, normalized parameters) by Key.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store caches adapter results with LRU eviction and per-entry TTL.
type Store struct {
	entries  map[string]*Entry
	mutex    sync.Mutex
	capacity int
	// LRU doubly-linked list with dummy head and tail
	head *Entry
	tail *Entry
	// Statistics tracking (atomic for cheap reads)
	hits      int64
	misses    int64
	staleHits int64
	sets      int64
	evictions int64

	now func() time.Time // injectable clock for tests
}

// Entry represents a cached value.
type Entry struct {
	Key        string
	Value      interface{}
	CreatedAt  time.Time
	TTL        time.Duration
	LastAccess time.Time
	// LRU doubly-linked list pointers
	prev *Entry
	next *Entry
}

// expiredAt reports whether the entry is past its TTL at the given instant.
func (e *Entry) expiredAt(now time.Time) bool {
	return now.After(e.CreatedAt.Add(e.TTL))
}

// NewStore creates a cache store bounded to capacity entries.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}

	store := &Store{
		entries:  make(map[string]*Entry),
		capacity: capacity,
		now:      time.Now,
	}

	store.head = &Entry{}
	store.tail = &Entry{}
	store.head.next = store.tail
	store.tail.prev = store.head

	return store
}

// Get retrieves a live (non-expired) value from the store. Expired entries
// are left in place so GetStale can still serve them for the fallback and
// stale-while-revalidate strategies; they leave via Set or LRU eviction.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		atomic.AddInt64(&s.misses, 1)
		return nil, false
	}

	if entry.expiredAt(s.now()) {
		atomic.AddInt64(&s.misses, 1)
		return nil, false
	}

	s.moveToFront(entry)
	entry.LastAccess = s.now()
	atomic.AddInt64(&s.hits, 1)

	return entry.Value, true
}

// GetStale retrieves a value regardless of TTL. Callers use this for
// network-first fallback and stale-while-revalidate; the second return
// reports presence, the third whether the entry is past its TTL.
func (s *Store) GetStale(key string) (interface{}, bool, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		atomic.AddInt64(&s.misses, 1)
		return nil, false, false
	}

	stale := entry.expiredAt(s.now())

	s.moveToFront(entry)
	entry.LastAccess = s.now()

	if stale {
		atomic.AddInt64(&s.staleHits, 1)
	} else {
		atomic.AddInt64(&s.hits, 1)
	}

	return entry.Value, true, stale
}

// Set stores a value with the given TTL, overwriting any existing entry.
// There is no partial update.
func (s *Store) Set(key string, value interface{}, ttl time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()

	if existing, exists := s.entries[key]; exists {
		existing.Value = value
		existing.CreatedAt = now
		existing.TTL = ttl
		existing.LastAccess = now
		s.moveToFront(existing)
		atomic.AddInt64(&s.sets, 1)
		return
	}

	s.evictIfNeeded()

	entry := &Entry{
		Key:        key,
		Value:      value,
		CreatedAt:  now,
		TTL:        ttl,
		LastAccess: now,
	}

	s.entries[key] = entry
	s.addToFront(entry)
	atomic.AddInt64(&s.sets, 1)
}

// Invalidate removes a single entry. Returns true if it was present.
func (s *Store) Invalidate(key string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		return false
	}

	s.removeFromList(entry)
	delete(s.entries, key)

	return true
}

// InvalidatePrefix removes all entries whose key starts with prefix and
// returns how many were removed. Used by the file source when its backing
// file changes and by create/update/delete to drop list views.
func (s *Store) InvalidatePrefix(prefix string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			s.removeFromList(entry)
			delete(s.entries, key)
			removed++
		}
	}

	return removed
}

// Clear removes all entries and resets statistics.
func (s *Store) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries = make(map[string]*Entry)
	s.head.next = s.tail
	s.tail.prev = s.head

	atomic.StoreInt64(&s.hits, 0)
	atomic.StoreInt64(&s.misses, 0)
	atomic.StoreInt64(&s.staleHits, 0)
	atomic.StoreInt64(&s.sets, 0)
	atomic.StoreInt64(&s.evictions, 0)
}

// Len returns the current entry count.
func (s *Store) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.entries)
}

// evictIfNeeded evicts least-recently-accessed entries until a new entry
// fits within capacity. Eviction order is independent of TTL.
func (s *Store) evictIfNeeded() {
	for len(s.entries) >= s.capacity && s.tail.prev != s.head {
		lru := s.tail.prev
		s.removeFromList(lru)
		delete(s.entries, lru.Key)
		atomic.AddInt64(&s.evictions, 1)
	}
}

// LRU doubly-linked list operations

func (s *Store) addToFront(entry *Entry) {
	entry.prev = s.head
	entry.next = s.head.next
	s.head.next.prev = entry
	s.head.next = entry
}

func (s *Store) removeFromList(entry *Entry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (s *Store) moveToFront(entry *Entry) {
	s.removeFromList(entry)
	s.addToFront(entry)
}

// Stats returns hit, miss, stale-hit and eviction counters.
func (s *Store) Stats() (hits, misses, staleHits, evictions int64) {
	return atomic.LoadInt64(&s.hits),
		atomic.LoadInt64(&s.misses),
		atomic.LoadInt64(&s.staleHits),
		atomic.LoadInt64(&s.evictions)
}

// HitRate returns the live-hit rate in [0, 1].
func (s *Store) HitRate() float64 {
	hits := atomic.LoadInt64(&s.hits)
	misses := atomic.LoadInt64(&s.misses)
	total := hits + misses
	if total == 0 {
		return 0.0
	}

	return float64(hits) / float64(total)
}
