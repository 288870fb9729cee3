// Package cache memoizes read-side views of the mirror store (the merged
// join and quarantine listings) between sync passes. Entries expire after a
// TTL and are flushed whenever a pass lands writes.
package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/agentstation/mirrorsync/pkg/records"
)

// Keys for the cached views.
const (
	MergedKey        = "merged"
	quarantinePrefix = "quarantine:"
)

// QuarantineKey returns the cache key for a quarantine listing. An empty
// origin means all origins.
func QuarantineKey(origin records.Origin) string {
	if origin == "" {
		return quarantinePrefix + "all"
	}
	return quarantinePrefix + string(origin)
}

// Cache wraps go-cache with load-through semantics and hit counters.
type Cache struct {
	store  *gocache.Cache
	group  singleflight.Group
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache whose entries live for ttl. Expired entries are
// purged every cleanupInterval.
func New(ttl, cleanupInterval time.Duration) *Cache {
	return &Cache{store: gocache.New(ttl, cleanupInterval)}
}

// Load returns the cached value for key or calls load to fill it.
// Concurrent misses for the same key share one load. Errors are not cached.
// The second return reports a cache hit.
func Load[T any](c *Cache, key string, load func() (T, error)) (T, bool, error) {
	if v, ok := c.store.Get(key); ok {
		if typed, ok := v.(T); ok {
			c.hits.Add(1)
			return typed, true, nil
		}
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key, func() (any, error) {
		val, err := load()
		if err != nil {
			return nil, err
		}
		c.store.Set(key, val, gocache.DefaultExpiration)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v.(T), false, nil
}

// Invalidate drops every cached view.
func (c *Cache) Invalidate() {
	c.store.Flush()
}

// Delete drops one cached view.
func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

// Stats reports cache usage.
type Stats struct {
	Items  int    `json:"items"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	return Stats{
		Items:  c.store.ItemCount(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}
