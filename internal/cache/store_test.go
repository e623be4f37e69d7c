package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives entry expiry without sleeping.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time          { return c.current }
func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestStore(capacity int) (*Store, *fakeClock) {
	clock := &fakeClock{current: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	store := NewStore(capacity)
	store.now = clock.now
	return store, clock
}

func TestStore_RoundTrip(t *testing.T) {
	t.Run("set then get returns value", func(t *testing.T) {
		store, _ := newTestStore(10)
		store.Set("stocks:list|page=1", []string{"AAPL"}, time.Minute)

		value, found := store.Get("stocks:list|page=1")
		require.True(t, found)
		assert.Equal(t, []string{"AAPL"}, value)
	})

	t.Run("expired entry misses but stays stale-readable", func(t *testing.T) {
		store, clock := newTestStore(10)
		store.Set("key", "v", time.Minute)

		clock.advance(2 * time.Minute)

		_, found := store.Get("key")
		assert.False(t, found, "expired entry must not be served by Get")

		value, present, stale := store.GetStale("key")
		require.True(t, present)
		assert.True(t, stale)
		assert.Equal(t, "v", value)
	})

	t.Run("get miss on absent key", func(t *testing.T) {
		store, _ := newTestStore(10)
		_, found := store.Get("nope")
		assert.False(t, found)

		_, present, _ := store.GetStale("nope")
		assert.False(t, present)
	})

	t.Run("set overwrites and refreshes TTL", func(t *testing.T) {
		store, clock := newTestStore(10)
		store.Set("key", "v1", time.Minute)

		clock.advance(50 * time.Second)
		store.Set("key", "v2", time.Minute)

		clock.advance(30 * time.Second) // 80s after first set, 30s after second
		value, found := store.Get("key")
		require.True(t, found)
		assert.Equal(t, "v2", value)
	})
}

func TestStore_LRUEviction(t *testing.T) {
	t.Run("least recently accessed entry leaves first", func(t *testing.T) {
		store, _ := newTestStore(3)
		store.Set("a", 1, time.Hour)
		store.Set("b", 2, time.Hour)
		store.Set("c", 3, time.Hour)

		// Touch "a" so "b" becomes the LRU entry.
		_, found := store.Get("a")
		require.True(t, found)

		store.Set("d", 4, time.Hour)

		_, found = store.Get("b")
		assert.False(t, found, "b should be evicted as LRU")

		for _, key := range []string{"a", "c", "d"} {
			_, found := store.Get(key)
			assert.True(t, found, "key %s should survive", key)
		}
	})

	t.Run("eviction is independent of TTL", func(t *testing.T) {
		store, clock := newTestStore(2)
		store.Set("short", 1, time.Second)
		store.Set("long", 2, time.Hour)

		clock.advance(2 * time.Second) // "short" now expired but still resident

		store.Set("new", 3, time.Hour)

		// "short" was least recently accessed, so it is the one evicted,
		// not merely because it expired.
		assert.Equal(t, 2, store.Len())
		_, present, _ := store.GetStale("short")
		assert.False(t, present)
	})

	t.Run("capacity bound holds", func(t *testing.T) {
		store, _ := newTestStore(5)
		for i := 0; i < 20; i++ {
			store.Set(fmt.Sprintf("key%d", i), i, time.Hour)
		}
		assert.LessOrEqual(t, store.Len(), 5)
	})
}

func TestStore_Invalidate(t *testing.T) {
	t.Run("single key", func(t *testing.T) {
		store, _ := newTestStore(10)
		store.Set("k", "v", time.Hour)

		assert.True(t, store.Invalidate("k"))
		assert.False(t, store.Invalidate("k"))

		_, found := store.Get("k")
		assert.False(t, found)
	})

	t.Run("prefix removes entity views", func(t *testing.T) {
		store, _ := newTestStore(10)
		store.Set("stocks:list|page=1", "a", time.Hour)
		store.Set("stocks:list|page=2", "b", time.Hour)
		store.Set("news:list|page=1", "c", time.Hour)

		removed := store.InvalidatePrefix("stocks:")
		assert.Equal(t, 2, removed)

		_, found := store.Get("news:list|page=1")
		assert.True(t, found)
	})
}

func TestStore_Stats(t *testing.T) {
	store, clock := newTestStore(10)
	store.Set("k", "v", time.Minute)

	store.Get("k")        // hit
	store.Get("missing")  // miss
	clock.advance(2 * time.Minute)
	store.GetStale("k") // stale hit

	hits, misses, staleHits, _ := store.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, int64(1), staleHits)
	assert.InDelta(t, 0.5, store.HitRate(), 0.001)
}

func TestKey_Deterministic(t *testing.T) {
	t.Run("parameter order does not matter", func(t *testing.T) {
		a := Key("list", map[string]interface{}{"page": 1, "limit": 20, "search": "jan"})
		b := Key("list", map[string]interface{}{"search": "jan", "limit": 20, "page": 1})
		assert.Equal(t, a, b)
	})

	t.Run("different parameters differ", func(t *testing.T) {
		a := Key("list", map[string]interface{}{"page": 1})
		b := Key("list", map[string]interface{}{"page": 2})
		assert.NotEqual(t, a, b)
	})

	t.Run("slice order is preserved", func(t *testing.T) {
		a := Key("list", map[string]interface{}{"sort": []string{"name:asc", "price:desc"}})
		b := Key("list", map[string]interface{}{"sort": []string{"price:desc", "name:asc"}})
		assert.NotEqual(t, a, b, "sort spec order is semantic")
	})

	t.Run("nested maps are sorted", func(t *testing.T) {
		a := Key("search", map[string]interface{}{
			"filters": map[string]interface{}{"status": "Active", "region": "EU"},
		})
		b := Key("search", map[string]interface{}{
			"filters": map[string]interface{}{"region": "EU", "status": "Active"},
		})
		assert.Equal(t, a, b)
	})

	t.Run("entity key prefixes", func(t *testing.T) {
		k := EntityKey("stocks", "get", map[string]interface{}{"id": "AAPL"})
		assert.Equal(t, "stocks:get|id=AAPL", k)
	})
}
