// Package cache provides the small read-mostly store of discovered
// event-type metadata. Entries carry their insert time and expire on a
// fixed TTL; slightly stale reads are acceptable.
package cache

import (
	"sync"
	"time"

	"funnel-analytics-service/internal/model"
)

type entry struct {
	value      []model.EventTypeInfo
	insertedAt time.Time
}

// MetadataCache is a TTL'd cache keyed by discovery scope. The clock is
// injected so tests control expiry.
type MetadataCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMetadataCache builds a cache with the given TTL.
func NewMetadataCache(ttl time.Duration) *MetadataCache {
	return &MetadataCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value if present and fresh.
func (c *MetadataCache) Get(key string) ([]model.EventTypeInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		return nil, false
	}
	return e.value, true
}

// GetStale returns the cached value regardless of freshness. Used as a
// last resort when a refresh against the store fails.
func (c *MetadataCache) GetStale(key string) ([]model.EventTypeInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores a value with the current insert time.
func (c *MetadataCache) Set(key string, value []model.EventTypeInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, insertedAt: c.now()}
}

// SetClock overrides the time source. Test hook.
func (c *MetadataCache) SetClock(now func() time.Time) { c.now = now }
