// Package cache provides a thread-safe in-memory cache with TTL, LRU
// eviction and optional stale-while-revalidate refresh.
//
// Example usage:
//
//	c := cache.New(cache.Config{TTL: time.Hour, MaxEntries: 1024}, logger)
//	v, cached, err := c.GetOrCompute(ctx, "vector:cats", compute)
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Config holds cache configuration.
type Config struct {
	// TTL is the freshness window for entries.
	TTL time.Duration

	// MaxEntries bounds the cache size; the least recently used entry is
	// evicted when the bound is hit. Unbounded growth is a defect, so a
	// non-positive value falls back to DefaultMaxEntries.
	MaxEntries int

	// StaleWhileRevalidate serves expired entries immediately while a
	// single background recomputation refreshes them.
	StaleWhileRevalidate bool
}

// DefaultMaxEntries bounds the cache when no explicit limit is set.
const DefaultMaxEntries = 1024

// entry holds a cached value with its freshness bookkeeping.
type entry struct {
	value        any
	createdAt    time.Time
	lastAccessed time.Time
	revalidating bool
}

// Cache is a TTL + LRU key-value cache. All methods are safe for
// concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	cfg     Config
	group   singleflight.Group
	logger  *zap.Logger
}

// New creates a cache with the given configuration.
func New(cfg Config, logger *zap.Logger) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries: make(map[string]*entry),
		cfg:     cfg,
		logger:  logger,
	}
}

// ComputeFunc produces the value for a cache key.
type ComputeFunc func(ctx context.Context) (any, error)

// GetOrCompute returns the cached value for key, computing it when
// missing or expired. The returned bool reports whether the value came
// from the cache.
//
// Freshness policy:
//   - fresh entry: returned as-is, compute is not invoked;
//   - expired entry with StaleWhileRevalidate: the stale value is
//     returned immediately and at most one background recomputation
//     refreshes the entry for future callers;
//   - expired entry without StaleWhileRevalidate, or cache miss:
//     compute runs synchronously; concurrent callers for the same key
//     share a single in-flight computation.
//
// If compute fails, any stale value is preserved and the error is
// propagated; no partial entry is stored.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (any, bool, error) {
	now := time.Now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		e.lastAccessed = now
		age := now.Sub(e.createdAt)
		if age < c.cfg.TTL {
			value := e.value
			c.mu.Unlock()
			return value, true, nil
		}

		if c.cfg.StaleWhileRevalidate {
			stale := e.value
			if !e.revalidating {
				e.revalidating = true
				// Detach from the request context: the caller already has
				// its answer, the refresh outlives the request.
				go c.revalidate(context.WithoutCancel(ctx), key, compute)
			}
			c.mu.Unlock()
			return stale, true, nil
		}
	}
	c.mu.Unlock()

	// Miss, or expired without stale-while-revalidate. Collapse
	// concurrent computations for the same key.
	value, err, _ := c.group.Do(key, func() (any, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.set(key, v)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, false, nil
}

// revalidate recomputes an expired entry in the background. On failure
// the stale value stays in place for the next caller.
func (c *Cache) revalidate(ctx context.Context, key string, compute ComputeFunc) {
	value, err := compute(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if err != nil {
		c.logger.Warn("cache revalidation failed, serving stale value",
			zap.String("key", key),
			zap.Error(err))
		if ok {
			e.revalidating = false
		}
		return
	}

	now := time.Now()
	if ok {
		e.value = value
		e.createdAt = now
		e.revalidating = false
		return
	}
	c.entries[key] = &entry{value: value, createdAt: now, lastAccessed: now}
}

// set stores a value, evicting the least recently used entry when full.
func (c *Cache) set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.createdAt = now
		e.lastAccessed = now
		e.revalidating = false
		return
	}

	if len(c.entries) >= c.cfg.MaxEntries {
		c.evictLRU()
	}
	c.entries[key] = &entry{value: value, createdAt: now, lastAccessed: now}
}

// evictLRU removes the least recently used entry. Caller must hold the
// lock.
func (c *Cache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	first := true
	for key, e := range c.entries {
		if first || e.lastAccessed.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.lastAccessed
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Delete removes an entry. No-op if the entry doesn't exist.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
