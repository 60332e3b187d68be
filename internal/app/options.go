package service

import (
	"time"

	"github.com/openoutings/outings/internal/adapters/cache"
	"github.com/openoutings/outings/internal/adapters/repository"
	"github.com/openoutings/outings/internal/domain/buddy"
	"github.com/openoutings/outings/internal/domain/similarity"
	"github.com/openoutings/outings/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the refresh queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the number of pending refresh keys.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxRecommendations caps similar-event lists.
func WithMaxRecommendations(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRecommendations = n
		}
	}
}

// WithCacheTTL sets how long similar-event lists are cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithBuddyWeights overrides the buddy scorer weights.
func WithBuddyWeights(w buddy.Weights) Option {
	return func(s *Service) {
		s.buddyWeights = w
	}
}

// WithEventWeights overrides the event similarity weights.
func WithEventWeights(w similarity.Weights) Option {
	return func(s *Service) {
		s.eventWeights = w
	}
}

// WithStore replaces the default in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithCache replaces the default in-memory cache.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for age derivation in stateless scoring.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
