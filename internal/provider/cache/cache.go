package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// entry stores one cached value with its expiry.
type entry[V any] struct {
	storedAt  time.Time
	expiresAt time.Time
	value     V
}

// Cache is a keyed TTL cache. Concurrent misses for the same key share a
// single computation. Failed computations are never stored.
type Cache[V any] struct {
	// MaxItems caps the number of stored keys; 0 means unbounded.
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry[V]
	group singleflight.Group
	now   func() time.Time
}

func New[V any](maxItems int) *Cache[V] {
	return &Cache[V]{
		MaxItems: maxItems,
		items:    make(map[string]entry[V]),
		now:      time.Now,
	}
}

// Get returns the live value stored under key.
func (c *Cache[V]) Get(key string) (V, bool) {
	now := c.clock()
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || !now.Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl is a no-op.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry[V])
	}
	c.items[key] = entry[V]{storedAt: now, expiresAt: now.Add(ttl), value: value}
	c.evictLocked(now)
}

// GetOrCompute returns the cached value for key, or runs compute and stores
// its result for ttl. If compute fails the error is returned and nothing is
// stored, so the next call retries.
//
// The shared computation is detached from the caller's cancellation: a
// caller that gives up only stops waiting, and the others still get the
// result. compute must bound its own work.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		// another caller may have filled the key while we queued
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})
	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		v, _ := res.Val.(V)
		return v, res.Err
	}
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Sweep drops entries that have expired or that were stored more than
// maxAge ago. It returns the number of removed entries.
func (c *Cache[V]) Sweep(maxAge time.Duration) int {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.items {
		if !now.Before(e.expiresAt) || (maxAge > 0 && now.Sub(e.storedAt) > maxAge) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// Run sweeps the cache every interval until ctx is canceled.
func (c *Cache[V]) Run(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Sweep(maxAge)
		}
	}
}

// evictLocked enforces MaxItems: expired entries go first, then the oldest.
func (c *Cache[V]) evictLocked(now time.Time) {
	if c.MaxItems <= 0 || len(c.items) <= c.MaxItems {
		return
	}
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
		}
	}
	for len(c.items) > c.MaxItems {
		var oldestKey string
		var oldest time.Time
		first := true
		for k, e := range c.items {
			if first || e.storedAt.Before(oldest) {
				oldestKey, oldest, first = k, e.storedAt, false
			}
		}
		delete(c.items, oldestKey)
	}
}

func (c *Cache[V]) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}
