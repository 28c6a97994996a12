package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/domain"
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/provider"
)

const (
	DefaultMaxEntries = 100
	DefaultTTL        = 7 * 24 * time.Hour

	exportVersion = 1
)

// Entry is one memoized render
type Entry struct {
	Hash           string               `json:"hash"`
	Spec           domain.ViewSpec      `json:"spec"`
	Request        provider.Request     `json:"request"`
	Result         domain.GeneratedView `json:"result"`
	CreatedAt      time.Time            `json:"created_at"`
	AccessCount    int                  `json:"access_count"`
	LastAccessedAt time.Time            `json:"last_accessed_at"`
}

// Stats summarizes the cache since the last reset
type Stats struct {
	Entries         int        `json:"entries"`
	ApproxSizeBytes int        `json:"approx_size_bytes"`
	Hits            int64      `json:"hits"`
	Misses          int64      `json:"misses"`
	HitRate         float64    `json:"hit_rate"`
	Oldest          *time.Time `json:"oldest,omitempty"`
	Newest          *time.Time `json:"newest,omitempty"`
}

// Config holds cache limits
type Config struct {
	MaxEntries int
	TTL        time.Duration
	Now        func() time.Time
}

// Observer is notified about lookups; used for metrics
type Observer interface {
	CacheHit()
	CacheMiss()
	CacheEvicted(n int)
}

type noopObserver struct{}

func (noopObserver) CacheHit()        {}
func (noopObserver) CacheMiss()       {}
func (noopObserver) CacheEvicted(int) {}

// Cache is an in-memory LRU+TTL render memo. It is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	hits       int64
	misses     int64
	observer   Observer
	logger     *slog.Logger
}

// New creates a new Cache
func New(cfg Config, logger *slog.Logger) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Cache{
		entries:    make(map[string]*Entry),
		maxEntries: cfg.MaxEntries,
		ttl:        cfg.TTL,
		now:        cfg.Now,
		observer:   noopObserver{},
		logger:     logger,
	}
}

// SetObserver installs a lookup observer
func (c *Cache) SetObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o == nil {
		o = noopObserver{}
	}
	c.observer = o
}

// Get returns the cached result for hash. Expired entries are purged and
// reported as misses.
func (c *Cache) Get(hash string) (domain.GeneratedView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.entries[hash]
	if ok && c.expired(entry, now) {
		delete(c.entries, hash)
		ok = false
	}
	if !ok {
		c.misses++
		c.observer.CacheMiss()
		return domain.GeneratedView{}, false
	}

	entry.AccessCount++
	entry.LastAccessedAt = now
	c.hits++
	c.observer.CacheHit()

	return entry.Result, true
}

// Has reports whether a live entry exists without touching statistics
func (c *Cache) Has(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[hash]
	return ok && !c.expired(entry, c.now())
}

// Set stores a result. Inserting a new key at capacity first evicts the
// least recently accessed entry.
func (c *Cache) Set(hash string, spec domain.ViewSpec, req provider.Request, result domain.GeneratedView) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[hash]; !exists {
		for len(c.entries) >= c.maxEntries {
			c.evictOldest()
		}
	}

	c.entries[hash] = &Entry{
		Hash:           hash,
		Spec:           spec,
		Request:        req,
		Result:         result,
		CreatedAt:      now,
		AccessCount:    0,
		LastAccessedAt: now,
	}
}

// Cleanup removes every expired entry and returns how many were dropped
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for hash, entry := range c.entries {
		if c.expired(entry, now) {
			delete(c.entries, hash)
			removed++
		}
	}

	if removed > 0 {
		c.observer.CacheEvicted(removed)
		c.logger.Info("Render cache cleaned up",
			slog.Int("removed", removed),
			slog.Int("remaining", len(c.entries)),
		)
	}
	return removed
}

// Clear drops every entry and resets statistics
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)
	c.hits = 0
	c.misses = 0
}

// ResetStats zeroes hit and miss counters
func (c *Cache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits = 0
	c.misses = 0
}

// Len returns the number of stored entries, expired or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache statistics
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}

	for _, entry := range c.entries {
		if data, err := json.Marshal(entry); err == nil {
			s.ApproxSizeBytes += len(data)
		}
		created := entry.CreatedAt
		if s.Oldest == nil || created.Before(*s.Oldest) {
			s.Oldest = &created
		}
		if s.Newest == nil || created.After(*s.Newest) {
			s.Newest = &created
		}
	}

	return s
}

// MostUsed returns up to n entries ordered by access count, highest first
func (c *Cache) MostUsed(n int) []Entry {
	return c.sorted(n, func(a, b *Entry) bool {
		if a.AccessCount != b.AccessCount {
			return a.AccessCount > b.AccessCount
		}
		return a.Hash < b.Hash
	})
}

// Recent returns up to n entries ordered by creation time, newest first
func (c *Cache) Recent(n int) []Entry {
	return c.sorted(n, func(a, b *Entry) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Hash < b.Hash
	})
}

type exportBlob struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Entries    []Entry   `json:"entries"`
}

// Export serializes every entry into an opaque blob
func (c *Cache) Export() ([]byte, error) {
	c.mu.Lock()
	blob := exportBlob{
		Version:    exportVersion,
		ExportedAt: c.now(),
		Entries:    make([]Entry, 0, len(c.entries)),
	}
	for _, entry := range c.entries {
		blob.Entries = append(blob.Entries, *entry)
	}
	c.mu.Unlock()

	sort.Slice(blob.Entries, func(i, j int) bool {
		return blob.Entries[i].Hash < blob.Entries[j].Hash
	})

	data, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to export render cache: %w", err)
	}
	return data, nil
}

// Import replaces the cache contents with a blob produced by Export. On a
// malformed blob the cache is left empty and the error is returned. Entries
// already past their TTL are skipped.
func (c *Cache) Import(data []byte) error {
	var blob exportBlob
	err := json.Unmarshal(data, &blob)
	if err == nil && blob.Version != exportVersion {
		err = fmt.Errorf("unsupported version %d", blob.Version)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)
	if err != nil {
		return fmt.Errorf("failed to import render cache: %w", err)
	}

	now := c.now()
	for i := range blob.Entries {
		entry := blob.Entries[i]
		if entry.Hash == "" || c.expired(&entry, now) {
			continue
		}
		if len(c.entries) >= c.maxEntries {
			c.evictOldest()
		}
		c.entries[entry.Hash] = &entry
	}

	c.logger.Info("Render cache imported",
		slog.Int("entries", len(c.entries)),
		slog.Int("skipped", len(blob.Entries)-len(c.entries)),
	)
	return nil
}

func (c *Cache) expired(entry *Entry, now time.Time) bool {
	return now.Sub(entry.CreatedAt) > c.ttl
}

// evictOldest removes the entry with the oldest LastAccessedAt. Caller holds mu.
func (c *Cache) evictOldest() {
	var victim *Entry
	for _, entry := range c.entries {
		if victim == nil || entry.LastAccessedAt.Before(victim.LastAccessedAt) ||
			(entry.LastAccessedAt.Equal(victim.LastAccessedAt) && entry.Hash < victim.Hash) {
			victim = entry
		}
	}
	if victim == nil {
		return
	}
	delete(c.entries, victim.Hash)
	c.observer.CacheEvicted(1)
	c.logger.Debug("Render cache entry evicted",
		slog.String("hash", victim.Hash),
		slog.Time("last_accessed_at", victim.LastAccessedAt),
	)
}

func (c *Cache) sorted(n int, less func(a, b *Entry) bool) []Entry {
	c.mu.Lock()
	list := make([]*Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		list = append(list, entry)
	}
	sort.Slice(list, func(i, j int) bool { return less(list[i], list[j]) })

	if n > 0 && len(list) > n {
		list = list[:n]
	}
	out := make([]Entry, len(list))
	for i, entry := range list {
		out[i] = *entry
	}
	c.mu.Unlock()
	return out
}
