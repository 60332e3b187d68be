// Package config defines service configuration and its validation.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/openoutings/outings/internal/domain/buddy"
	"github.com/openoutings/outings/internal/domain/similarity"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the refresh job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of refresh workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps the number of pending refresh jobs tracked for coalescing.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxRecommendations caps GET /events/{id}/similar?limit and is the
	// length of the cached list.
	MaxRecommendations int `koanf:"max_recommendations"`

	// CacheTTLMS is the lifetime of a cached recommendation list.
	CacheTTLMS int `koanf:"cache_ttl_ms"`

	CacheBackend string `koanf:"cache_backend"`
	RedisURL     string `koanf:"redis_url"`

	MetricsEnabled bool `koanf:"metrics_enabled"`

	// CORSOrigins is a comma-separated list of browser origins allowed to
	// call the API. Empty disables CORS handling.
	CORSOrigins string `koanf:"cors_origins"`

	BuddyWeights buddy.Weights      `koanf:"buddy_weights"`
	EventWeights similarity.Weights `koanf:"event_weights"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		QueueSize:          10_000,
		WorkerCount:        runtime.NumCPU() * 2,
		DedupeSize:         50_000,
		MaxRecommendations: 20,
		CacheTTLMS:         300_000,
		CacheBackend:       CacheMemory,
		MetricsEnabled:     true,
		BuddyWeights:       buddy.DefaultWeights(),
		EventWeights:       similarity.DefaultWeights(),
	}
}

// CacheTTL returns CacheTTLMS as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMS) * time.Millisecond
}

// AllowedOrigins splits CORSOrigins, dropping blanks.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks every field. The returned error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.QueueSize <= 0:
		return invalid("queue_size must be positive, got %d", c.QueueSize)
	case c.WorkerCount <= 0:
		return invalid("worker_count must be positive, got %d", c.WorkerCount)
	case c.DedupeSize <= 0:
		return invalid("dedupe_size must be positive, got %d", c.DedupeSize)
	case c.MaxRecommendations <= 0:
		return invalid("max_recommendations must be positive, got %d", c.MaxRecommendations)
	case c.CacheTTLMS <= 0:
		return invalid("cache_ttl_ms must be positive, got %d", c.CacheTTLMS)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}

	switch c.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			return invalid("redis_url is required when cache_backend is redis")
		}
	default:
		return invalid("cache_backend must be memory or redis, got %q", c.CacheBackend)
	}

	if err := c.BuddyWeights.Validate(); err != nil {
		return fmt.Errorf("%w: buddy_weights: %w", ErrInvalidConfig, err)
	}
	if err := c.EventWeights.Validate(); err != nil {
		return fmt.Errorf("%w: event_weights: %w", ErrInvalidConfig, err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
