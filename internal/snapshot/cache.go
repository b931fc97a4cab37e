package snapshot

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// CacheMetrics holds cache counters.
type CacheMetrics struct {
	Hits      atomic.Int64
	Misses    atomic.Int64
	Evictions atomic.Int64
}

// Cache keeps encoded snapshot objects in memory up to a byte budget and
// evicts the least recently read ones first. Snapshots are immutable, so an
// entry never goes stale.
type Cache struct {
	maxBytes int64

	mu      sync.Mutex
	entries map[string]*cacheEntry
	size    int64

	metrics CacheMetrics
	now     func() time.Time
}

type cacheEntry struct {
	data       []byte
	lastAccess time.Time
}

// NewCache creates a cache holding at most maxBytes of encoded snapshots.
func NewCache(maxBytes int64) *Cache {
	return &Cache{
		maxBytes: maxBytes,
		entries:  make(map[string]*cacheEntry),
		now:      time.Now,
	}
}

// Get returns the cached object at objectPath.
func (c *Cache) Get(objectPath string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[objectPath]
	if !ok {
		c.metrics.Misses.Add(1)
		return nil, false
	}
	e.lastAccess = c.now()
	c.metrics.Hits.Add(1)
	return e.data, true
}

// Put caches an object. Objects larger than the whole budget are ignored.
func (c *Cache) Put(objectPath string, data []byte) {
	size := int64(len(data))
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[objectPath]; ok {
		c.size -= int64(len(old.data))
	}
	c.entries[objectPath] = &cacheEntry{data: data, lastAccess: c.now()}
	c.size += size

	if c.size > c.maxBytes {
		c.evict(objectPath)
	}
}

// evict drops least recently read entries until the cache fits, never
// dropping keep.
func (c *Cache) evict(keep string) {
	type candidate struct {
		path       string
		lastAccess time.Time
	}
	candidates := make([]candidate, 0, len(c.entries))
	for p, e := range c.entries {
		if p != keep {
			candidates = append(candidates, candidate{p, e.lastAccess})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccess.Before(candidates[j].lastAccess)
	})

	for _, cand := range candidates {
		if c.size <= c.maxBytes {
			return
		}
		c.size -= int64(len(c.entries[cand.path].data))
		delete(c.entries, cand.path)
		c.metrics.Evictions.Add(1)
	}
}

// Stats returns hits, misses, evictions and the bytes currently held.
func (c *Cache) Stats() (hits, misses, evictions, size int64) {
	c.mu.Lock()
	size = c.size
	c.mu.Unlock()
	return c.metrics.Hits.Load(), c.metrics.Misses.Load(), c.metrics.Evictions.Load(), size
}
