// Package cache provides a concurrent-safe in-memory TTL cache used in front
// of the documentation-search adapter and the tenant config lookup. Entries
// are independent per key, so no coordination beyond the internal lock is
// needed; staleness up to the TTL is accepted.
package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a TTL key/value cache with LRU eviction at capacity.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*entry[V]
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
	now        func() time.Time
}

type entry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration
}

// Stats contains cache performance counters.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// New creates a Cache with the given capacity and default TTL.
func New[V any](maxEntries int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		entries:    make(map[string]*entry[V]),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Key builds the cache key for a tenant-scoped query: the tenant id plus
// SHA-256 hex of the normalized query text.
func Key(tenantID, queryText string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(queryText))))
	return fmt.Sprintf("%s/%x", tenantID, h)
}

// Get retrieves a cached value. The second return is false on miss or
// expiration.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}

	if c.now().Sub(e.createdAt) > e.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return zero, false
	}

	// Move to back (most recently used).
	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return e.value, true
}

// Set stores a value with an explicit TTL, evicting the oldest entry at
// capacity. A non-positive ttl uses the cache default.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &entry[V]{value: value, createdAt: c.now(), ttl: ttl}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &entry[V]{value: value, createdAt: c.now(), ttl: ttl}
	c.order = append(c.order, key)
}

// Delete removes a single entry by exact key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	c.removeFromOrder(key)
}

// Invalidate removes all entries whose key starts with the tenant prefix.
func (c *Cache[V]) Invalidate(tenantID string) {
	prefix := tenantID + "/"

	c.mu.Lock()
	defer c.mu.Unlock()

	var remaining []string
	for _, key := range c.order {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		} else {
			remaining = append(remaining, key)
		}
	}
	c.order = remaining
}

// Stats returns cache performance counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

// WithNow sets the clock used for expiry checks. Test hook.
func (c *Cache[V]) WithNow(now func() time.Time) *Cache[V] {
	c.now = now
	return c
}

func (c *Cache[V]) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
