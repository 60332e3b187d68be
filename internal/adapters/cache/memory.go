package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/openoutings/outings/pkg/metrics"
)

type entry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is a process-local Cache. Expired entries are dropped lazily
// on read and by Sweep.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

var _ Cache = (*MemoryCache)(nil)

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expires) {
		metrics.RecordCacheMiss(BackendMemory)
		return nil, ErrCacheMiss
	}
	metrics.RecordCacheHit(BackendMemory)
	return append([]byte(nil), e.value...), nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	c.entries[key] = entry{value: append([]byte(nil), value...), expires: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, keys ...string) error {
	n := 0
	c.mu.Lock()
	for _, k := range keys {
		if _, ok := c.entries[k]; ok {
			delete(c.entries, k)
			n++
		}
	}
	c.mu.Unlock()
	if n > 0 {
		metrics.RecordCacheInvalidation(BackendMemory, n)
	}
	return nil
}

func (c *MemoryCache) InvalidatePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	c.mu.Unlock()
	if n > 0 {
		metrics.RecordCacheInvalidation(BackendMemory, n)
	}
	return n, nil
}

// Sweep removes expired entries and returns how many were dropped.
func (c *MemoryCache) Sweep() int {
	now := c.now()
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

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) Close() error { return nil }
