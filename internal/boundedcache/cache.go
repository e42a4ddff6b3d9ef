// Package boundedcache provides a fixed-capacity, TTL-aware map whose
// eviction order is insertion/update order. Reads never promote entries, so a
// hot key that is only read still ages out once enough newer keys arrive.
package boundedcache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 1000

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, entry[V]]
}

// New creates a cache holding at most capacity entries.
func New[V any](capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l, err := simplelru.NewLRU[string, entry[V]](capacity, nil)
	if err != nil {
		// Only returned for non-positive sizes, excluded above.
		panic(err)
	}
	return &Cache[V]{lru: l}
}

// Get returns the value for key if it is present and younger than ttl.
// A ttl <= 0 means every entry is stale.
func (c *Cache[V]) Get(key string, ttl time.Duration, now time.Time) (V, bool) {
	var zero V
	if ttl <= 0 {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return zero, false
	}
	if now.Sub(e.fetchedAt) >= ttl {
		return zero, false
	}
	return e.value, true
}

// Peek returns the stored value and its fetch time regardless of age.
func (c *Cache[V]) Peek(key string) (V, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Peek(key)
	return e.value, e.fetchedAt, ok
}

// Set stores value under key with fetchedAt = now, overwriting any existing
// entry and moving it to the newest position. Returns true if the oldest
// entry was evicted to make room.
func (c *Cache[V]) Set(key string, value V, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Add(key, entry[V]{value: value, fetchedAt: now})
}

// Invalidate removes key. Returns true if it was present.
func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns keys from oldest to newest.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}
