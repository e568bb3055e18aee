package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache keeps stats for a limited time.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
	hits    atomic.Int64
	misses  atomic.Int64
}

type cacheEntry struct {
	stats     Stats
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// NewCache creates a cache whose entries expire after ttl.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{entries: make(map[string]cacheEntry), ttl: ttl, now: now}
}

// Set stores s under key.
func (c *Cache) Set(key string, s Stats) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{stats: s, createdAt: c.now()}
	c.mu.Unlock()
}

// Get returns a live entry. Expired entries are dropped on read.
func (c *Cache) Get(key string) (Stats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return Stats{}, false
	}
	if c.now().Sub(e.createdAt) > c.ttl {
		delete(c.entries, key)
		c.misses.Add(1)
		return Stats{}, false
	}
	c.hits.Add(1)
	return e.stats, true
}

// Cleanup removes expired entries and returns how many went.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.createdAt) > c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len is the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cache performance statistics.
func (c *Cache) Stats() CacheStats {
	return CacheStats{Entries: c.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}
