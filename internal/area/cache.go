// Package area manages the monitored-area overlay: one boundary layer at a
// time, loaded on first selection and cached for the rest of the session.
package area

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeblew999/geodash/internal/layer"
	"github.com/joeblew999/geodash/internal/metrics"
)

// Config describes one selectable area.
type Config struct {
	Key   string `json:"key"`
	File  string `json:"file"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Entry is a cached area layer.
type Entry struct {
	Layer     *layer.Layer
	CreatedAt time.Time
}

// Cache holds at most one entry per area key. Entries never expire.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	hits    atomic.Int64
	misses  atomic.Int64
}

// AreaCacheStats contains cache performance statistics.
type AreaCacheStats struct {
	Entries int      `json:"entries"`
	Keys    []string `json:"keys"`
	Hits    int64    `json:"hits"`
	Misses  int64    `json:"misses"`
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// Get looks up key and counts the hit or miss.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		metrics.AreaCacheTotal.WithLabelValues("hit").Inc()
	} else {
		c.misses.Add(1)
		metrics.AreaCacheTotal.WithLabelValues("miss").Inc()
	}
	return e, ok
}

// Put stores l under key unless an entry already exists, and returns the
// entry that ends up cached.
func (c *Cache) Put(key string, l *layer.Layer, now time.Time) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e
	}
	e := &Entry{Layer: l, CreatedAt: now}
	c.entries[key] = e
	return e
}

// Len returns the number of cached areas.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cache performance statistics.
func (c *Cache) Stats() AreaCacheStats {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return AreaCacheStats{Entries: len(keys), Keys: keys, Hits: c.hits.Load(), Misses: c.misses.Load()}
}
