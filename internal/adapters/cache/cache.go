// Package cache stores serialized recommendation lists with a TTL.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
	// InvalidatePrefix drops every key starting with prefix and returns
	// how many were removed.
	InvalidatePrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}

// Backend names used as metric labels.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)
