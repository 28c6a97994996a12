package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingObserver struct {
	hits, misses, evicted int
}

func (o *countingObserver) CacheHit()          { o.hits++ }
func (o *countingObserver) CacheMiss()         { o.misses++ }
func (o *countingObserver) CacheEvicted(n int) { o.evicted += n }

func newTestCache(maxEntries int, clk *testClock) *Cache {
	return New(Config{MaxEntries: maxEntries, TTL: time.Hour, Now: clk.Now}, nil)
}

func put(c *Cache, hash string) {
	c.Set(hash, domain.ViewSpec{ID: hash}, provider.Request{Prompt: hash}, domain.GeneratedView{ID: hash, ImageURL: "https://img.example/" + hash})
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{}, nil)
	assert.Equal(t, DefaultMaxEntries, c.maxEntries)
	assert.Equal(t, DefaultTTL, c.ttl)
	assert.Zero(t, c.Len())
}

func TestCache_GetSet(t *testing.T) {
	clk := newTestClock()
	c := newTestCache(10, clk)
	obs := &countingObserver{}
	c.SetObserver(obs)

	_, ok := c.Get("a")
	assert.False(t, ok)

	put(c, "a")
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "https://img.example/a", got.ImageURL)

	_, _ = c.Get("a")
	entries := c.MostUsed(1)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].AccessCount)

	s := c.Stats()
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 2.0/3.0, s.HitRate, 1e-9)
	assert.Equal(t, 2, obs.hits)
	assert.Equal(t, 1, obs.misses)
}

func TestCache_TTL(t *testing.T) {
	clk := newTestClock()
	c := newTestCache(10, clk)
	put(c, "a")

	clk.Advance(time.Hour)
	assert.True(t, c.Has("a"), "an entry exactly at its TTL is still live")

	clk.Advance(time.Second)
	assert.False(t, c.Has("a"))
	assert.Equal(t, 1, c.Len(), "Has does not purge")

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "an expired Get purges the entry")
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestCache_Eviction(t *testing.T) {
	t.Run("least recently accessed goes first", func(t *testing.T) {
		clk := newTestClock()
		c := newTestCache(2, clk)
		obs := &countingObserver{}
		c.SetObserver(obs)

		put(c, "a")
		clk.Advance(time.Minute)
		put(c, "b")
		clk.Advance(time.Minute)
		_, _ = c.Get("a")
		clk.Advance(time.Minute)
		put(c, "c")

		assert.Equal(t, 2, c.Len())
		assert.True(t, c.Has("a"))
		assert.False(t, c.Has("b"))
		assert.True(t, c.Has("c"))
		assert.Equal(t, 1, obs.evicted)
	})

	t.Run("overwriting an existing key does not evict", func(t *testing.T) {
		clk := newTestClock()
		c := newTestCache(2, clk)
		put(c, "a")
		put(c, "b")
		put(c, "a")

		assert.Equal(t, 2, c.Len())
		assert.True(t, c.Has("b"))
	})

	t.Run("size never exceeds the maximum", func(t *testing.T) {
		clk := newTestClock()
		c := newTestCache(3, clk)
		for _, h := range []string{"a", "b", "c", "d", "e", "f"} {
			put(c, h)
			clk.Advance(time.Second)
			assert.LessOrEqual(t, c.Len(), 3)
		}
		assert.ElementsMatch(t, []string{"d", "e", "f"}, hashes(c.Recent(0)))
	})
}

func TestCache_Cleanup(t *testing.T) {
	clk := newTestClock()
	c := newTestCache(10, clk)
	obs := &countingObserver{}
	c.SetObserver(obs)

	put(c, "old1")
	put(c, "old2")
	clk.Advance(50 * time.Minute)
	put(c, "fresh")
	clk.Advance(20 * time.Minute)

	assert.Equal(t, 2, c.Cleanup())
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Has("fresh"))
	assert.Equal(t, 2, obs.evicted)
	assert.Zero(t, c.Cleanup())
}

func TestCache_ClearAndResetStats(t *testing.T) {
	clk := newTestClock()
	c := newTestCache(10, clk)
	put(c, "a")
	_, _ = c.Get("a")
	_, _ = c.Get("b")

	c.ResetStats()
	s := c.Stats()
	assert.Zero(t, s.Hits)
	assert.Zero(t, s.Misses)
	assert.Equal(t, 1, s.Entries)

	_, _ = c.Get("a")
	c.Clear()
	s = c.Stats()
	assert.Zero(t, s.Entries)
	assert.Zero(t, s.Hits)
	assert.Zero(t, s.HitRate)
	assert.Nil(t, s.Oldest)
}

func TestCache_Stats(t *testing.T) {
	clk := newTestClock()
	c := newTestCache(10, clk)
	start := clk.Now()

	put(c, "a")
	clk.Advance(time.Minute)
	put(c, "b")

	s := c.Stats()
	assert.Equal(t, 2, s.Entries)
	assert.Positive(t, s.ApproxSizeBytes)
	require.NotNil(t, s.Oldest)
	require.NotNil(t, s.Newest)
	assert.True(t, s.Oldest.Equal(start))
	assert.True(t, s.Newest.Equal(start.Add(time.Minute)))
}

func TestCache_Listings(t *testing.T) {
	clk := newTestClock()
	c := newTestCache(10, clk)
	for _, h := range []string{"a", "b", "c"} {
		put(c, h)
		clk.Advance(time.Minute)
	}
	for range 3 {
		_, _ = c.Get("b")
	}
	_, _ = c.Get("c")

	assert.Equal(t, []string{"b", "c", "a"}, hashes(c.MostUsed(0)))
	assert.Equal(t, []string{"b", "c"}, hashes(c.MostUsed(2)))
	assert.Equal(t, []string{"c", "b", "a"}, hashes(c.Recent(0)))
	assert.Equal(t, []string{"c"}, hashes(c.Recent(1)))
}

func TestCache_ExportImport(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		clk := newTestClock()
		src := newTestCache(10, clk)
		put(src, "a")
		put(src, "b")

		data, err := src.Export()
		require.NoError(t, err)

		dst := newTestCache(10, clk)
		put(dst, "stale")
		require.NoError(t, dst.Import(data))

		assert.Equal(t, 2, dst.Len())
		assert.False(t, dst.Has("stale"))
		got, ok := dst.Get("b")
		require.True(t, ok)
		assert.Equal(t, "https://img.example/b", got.ImageURL)
	})

	t.Run("expired entries are skipped", func(t *testing.T) {
		clk := newTestClock()
		src := newTestCache(10, clk)
		put(src, "old")
		clk.Advance(50 * time.Minute)
		put(src, "new")
		data, err := src.Export()
		require.NoError(t, err)

		clk.Advance(20 * time.Minute)
		dst := newTestCache(10, clk)
		require.NoError(t, dst.Import(data))
		assert.Equal(t, []string{"new"}, hashes(dst.Recent(0)))
	})

	t.Run("import respects max entries", func(t *testing.T) {
		clk := newTestClock()
		src := newTestCache(10, clk)
		for _, h := range []string{"a", "b", "c", "d"} {
			put(src, h)
		}
		data, err := src.Export()
		require.NoError(t, err)

		dst := newTestCache(2, clk)
		require.NoError(t, dst.Import(data))
		assert.Equal(t, 2, dst.Len())
	})

	t.Run("malformed blob empties the cache", func(t *testing.T) {
		clk := newTestClock()
		c := newTestCache(10, clk)
		put(c, "a")

		err := c.Import([]byte("not json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to import render cache")
		assert.Zero(t, c.Len())
	})

	t.Run("unknown version is rejected", func(t *testing.T) {
		clk := newTestClock()
		c := newTestCache(10, clk)
		put(c, "a")

		err := c.Import([]byte(`{"version":99,"entries":[]}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported version 99")
		assert.Zero(t, c.Len())
	})
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(Config{MaxEntries: 16, TTL: time.Hour}, nil)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 100 {
				h := string(rune('a' + (i+j)%26))
				put(c, h)
				_, _ = c.Get(h)
				_ = c.Stats()
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 16)
}

func hashes(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Hash
	}
	return out
}
