package resolve

import (
	"sync"
	"time"

	"github.com/gabriel/anime-watchlist/backend/internal/catalog"
)

// Cache is a small injectable TTL cache for resolved titles, keyed by the
// title's compare key. Entries are stored by value so callers can mutate the
// returned record freely.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	record    catalog.Record
	expiresAt time.Time
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *Cache) Get(key string) (*catalog.Record, bool) {
	if key == "" {
		return nil, false
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}

	record := entry.record
	return &record, true
}

func (c *Cache) Set(key string, record *catalog.Record) {
	if key == "" || record == nil {
		return
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{record: *record, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Prune drops expired entries and reports how many remain.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	return len(c.entries)
}
