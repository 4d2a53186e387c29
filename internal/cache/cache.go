// Package cache provides a small in-memory TTL cache.
//
// The cache is a plain mutex-guarded map: no capacity bound, no background
// sweeper. Expired entries are evicted lazily on Get, or in bulk via Prune.
// Contents do not survive a restart; everything cached here can be refetched.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// Cache maps string keys to values with a per-entry expiry.
// The zero value is not usable; call New.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
}

func New[V any]() *Cache[V] {
	return &Cache[V]{entries: map[string]entry[V]{}}
}

// Get returns the cached value for key, if present and not expired.
// An expired entry is removed on the way out.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !time.Now().Before(e.expires) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl removes the key.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		delete(c.entries, key)
		return
	}
	c.entries[key] = entry[V]{value: value, expires: time.Now().Add(ttl)}
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Prune removes all entries that expired at or before now and
// returns how many were dropped.
func (c *Cache[V]) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}
