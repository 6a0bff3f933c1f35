// Package stt is the transcription path: a bounded time-to-live cache in
// front of the remote speech-to-text call, with one bounded retry on
// provider-internal errors.
package stt

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

type cacheEntry struct {
	value   string
	expires time.Time
}

// Cache remembers recent transcription results. It holds at most max
// entries; eviction removes expired entries first, then the oldest
// insertion.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[uint64]cacheEntry
	order   []uint64
	now     func() time.Time
}

func NewCache(max int, ttl time.Duration) *Cache {
	if max <= 0 {
		max = 10
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{
		ttl:     ttl,
		max:     max,
		entries: make(map[uint64]cacheEntry),
		now:     time.Now,
	}
}

func cacheKey(data []byte, params string) uint64 {
	d := xxhash.New()
	d.Write(data)
	d.WriteString("\x00")
	d.WriteString(params)
	return d.Sum64()
}

// GetOrCompute returns the live cached value for input+params, or runs
// compute and caches its result. A failed compute is never cached, and
// the lock is not held across compute.
func (c *Cache) GetOrCompute(data []byte, params string, compute func() (string, error)) (string, error) {
	key := cacheKey(data, params)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	value, err := compute()
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.put(key, value)
	c.mu.Unlock()

	return value, nil
}

// put assumes the lock is held.
func (c *Cache) put(key uint64, value string) {
	if _, ok := c.entries[key]; ok {
		c.entries[key] = cacheEntry{value: value, expires: c.now().Add(c.ttl)}
		return
	}

	if len(c.entries) >= c.max {
		c.evict()
	}

	c.entries[key] = cacheEntry{value: value, expires: c.now().Add(c.ttl)}
	c.order = append(c.order, key)
}

// evict assumes the lock is held: expired entries go first, then the
// oldest insertion.
func (c *Cache) evict() {
	now := c.now()
	kept := c.order[:0]
	for _, k := range c.order {
		if e, ok := c.entries[k]; ok && e.expires.Before(now) {
			delete(c.entries, k)
			continue
		}
		kept = append(kept, k)
	}
	c.order = kept

	for len(c.entries) >= c.max && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
