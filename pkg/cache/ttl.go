package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type ttlEntry[V any] struct {
	value   V
	expires time.Time
}

// TTL is a bounded cache whose entries expire after a fixed age. Once full,
// the oldest inserted entry is evicted first; reads do not refresh an
// entry's position or age. TTL is safe for concurrent use.
type TTL[K comparable, V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	lru      *simplelru.LRU[K, ttlEntry[V]]
	removing bool
	now      func() time.Time
	stats    Stats
}

// NewTTL creates a cache holding at most capacity entries for ttl each.
func NewTTL[K comparable, V any](capacity int, ttl time.Duration) *TTL[K, V] {
	if capacity <= 0 {
		capacity = 256
	}
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	c := &TTL[K, V]{ttl: ttl, now: time.Now}
	lru, err := simplelru.NewLRU[K, ttlEntry[V]](capacity, func(K, ttlEntry[V]) {
		if !c.removing {
			c.stats.Evictions++
		}
	})
	if err != nil {
		panic(err)
	}
	c.lru = lru
	return c
}

// TTL returns the configured entry lifetime.
func (c *TTL[K, V]) TTL() time.Duration {
	return c.ttl
}

// Get returns a live entry.
func (c *TTL[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(k)
	if ok && c.now().Before(e.expires) {
		c.stats.Hits++
		return e.value, true
	}
	if ok {
		c.drop(k)
		c.stats.Expired++
	}
	c.stats.Misses++
	var zero V
	return zero, false
}

// Put stores v under k, restarting its lifetime.
func (c *TTL[K, V]) Put(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Remove first so a refreshed key moves to the newest position.
	c.drop(k)
	c.lru.Add(k, ttlEntry[V]{value: v, expires: c.now().Add(c.ttl)})
}

// Remove deletes k.
func (c *TTL[K, V]) Remove(k K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drop(k)
}

// drop removes k without counting it as a capacity eviction.
func (c *TTL[K, V]) drop(k K) bool {
	c.removing = true
	defer func() { c.removing = false }()
	return c.lru.Remove(k)
}

// Sweep removes expired entries regardless of capacity pressure. The idle
// argument is ignored; entries always expire after the configured TTL.
func (c *TTL[K, V]) Sweep(time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, k := range c.lru.Keys() {
		e, ok := c.lru.Peek(k)
		if !ok {
			continue
		}
		if now.Before(e.expires) {
			// Keys are oldest first and every entry has the same lifetime.
			break
		}
		c.drop(k)
		removed++
	}
	c.stats.Expired += uint64(removed)
	return removed
}

// Purge empties the cache.
func (c *TTL[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removing = true
	c.lru.Purge()
	c.removing = false
}

// Len returns the number of stored entries, expired or not.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *TTL[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.lru.Len()
	return s
}
