// Package service wires the store, scorers, cache and refresh pipeline into
// the operations the HTTP API exposes.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/openoutings/outings/internal/adapters/cache"
	eventqueue "github.com/openoutings/outings/internal/adapters/mq/queue"
	workerpool "github.com/openoutings/outings/internal/adapters/mq/worker"
	"github.com/openoutings/outings/internal/adapters/repository"
	"github.com/openoutings/outings/internal/domain/buddy"
	"github.com/openoutings/outings/internal/domain/dedupe"
	"github.com/openoutings/outings/internal/domain/model"
	"github.com/openoutings/outings/internal/domain/similarity"
	"github.com/openoutings/outings/pkg/logger"
	"github.com/openoutings/outings/pkg/metrics"
)

const similarKeyPrefix = "similar:"

func similarKey(eventID string) string { return similarKeyPrefix + eventID }

// Service implements the API dependencies for buddy matching and event
// recommendations.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	cache   cache.Cache
	deduper dedupe.Deduper
	queue   eventqueue.Queue
	pool    *workerpool.Pool
	buddy   *buddy.Scorer
	similar *similarity.Scorer

	// Configuration
	workerCount        int
	queueSize          int
	dedupeSize         int
	maxRecommendations int
	cacheTTL           time.Duration
	buddyWeights       buddy.Weights
	eventWeights       similarity.Weights
	now                func() time.Time

	// gen counts cache invalidations. A computed list is only written if no
	// invalidation happened since its inputs were read.
	gen     atomic.Uint64
	cacheMu sync.RWMutex

	started bool
	stopped bool
	logger  logger.Logger
}

// New constructs a Service. It fails if either weight set is invalid.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		workerCount:        runtime.NumCPU() * 2,
		queueSize:          10_000,
		dedupeSize:         50_000,
		maxRecommendations: 20,
		cacheTTL:           5 * time.Minute,
		buddyWeights:       buddy.DefaultWeights(),
		eventWeights:       similarity.DefaultWeights(),
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.buddy, err = buddy.NewScorer(buddy.WithWeights(s.buddyWeights)); err != nil {
		return nil, err
	}
	if s.similar, err = similarity.NewScorer(similarity.WithWeights(s.eventWeights)); err != nil {
		return nil, err
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithClock(s.now))
	}
	if s.cache == nil {
		s.cache = cache.NewMemoryCache()
	}
	return s, nil
}

// Start builds the refresh pipeline and launches the workers. Workers outlive
// ctx and stop on Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}

	s.logger.Info(ctx, "starting outings service...")

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
		dedupe.WithOnEvict(func(key string) {
			s.logger.Warn(context.Background(), "pending refresh evicted", logger.String("event_id", key))
		}),
	)
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "outings service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("cacheTTL", s.cacheTTL),
	)
	return nil
}

// Stop drains pending refreshes and closes the cache. A stopped service
// cannot be started again. If ctx ends first the remaining jobs are abandoned
// and the context error is returned.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	// Workers take the read lock in Refresh, so drain without holding it.
	s.started = false
	s.stopped = true
	pool := s.pool
	s.mu.Unlock()

	log := s.log()
	log.Info(ctx, "stopping outings service...")

	err := pool.Shutdown(ctx)
	if cerr := s.cache.Close(); cerr != nil {
		log.Error(ctx, "close cache", logger.Error(cerr))
	}

	log.Info(ctx, "outings service stopped")
	return err
}

// UpsertProfile stores a profile.
func (s *Service) UpsertProfile(ctx context.Context, p repository.ProfileRow) error {
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// Profile returns the stored profile as the buddy scorer sees it.
func (s *Service) Profile(ctx context.Context, userID string) (model.UserForMatching, error) {
	u, err := s.store.Profile(ctx, userID)
	if err != nil {
		return model.UserForMatching{}, fmt.Errorf("get profile: %w", err)
	}
	return u, nil
}

// UpsertEvent stores an event, drops every cached similar list (any of them
// may now include or rank the event differently) and schedules a refresh of
// the event's own list. A full queue does not fail the upsert; the list is
// then computed on first read.
func (s *Service) UpsertEvent(ctx context.Context, e repository.EventRow) error {
	if err := s.store.UpsertEvent(ctx, e); err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}
	s.cacheMu.Lock()
	s.gen.Add(1)
	_, err := s.cache.InvalidatePrefix(ctx, similarKeyPrefix)
	s.cacheMu.Unlock()
	if err != nil {
		s.log().Warn(ctx, "invalidate similar lists",
			logger.String("event_id", e.ID),
			logger.Error(err),
		)
	}
	if err := s.requestRefresh(ctx, e.ID); err != nil && !errors.Is(err, ErrNotStarted) {
		s.log().Warn(ctx, "refresh not scheduled",
			logger.String("event_id", e.ID),
			logger.Error(err),
		)
	}
	return nil
}

// RefreshEvent drops the event's cached similar list and schedules a
// recomputation. Requests for an event that is already pending are coalesced.
func (s *Service) RefreshEvent(ctx context.Context, eventID string) error {
	if _, err := s.store.Event(ctx, eventID); err != nil {
		return fmt.Errorf("refresh event: %w", err)
	}
	s.cacheMu.Lock()
	s.gen.Add(1)
	err := s.cache.Invalidate(ctx, similarKey(eventID))
	s.cacheMu.Unlock()
	if err != nil {
		s.log().Warn(ctx, "invalidate similar list",
			logger.String("event_id", eventID),
			logger.Error(err),
		)
	}
	if err := s.requestRefresh(ctx, eventID); err != nil {
		return fmt.Errorf("refresh event: %w", err)
	}
	return nil
}

func (s *Service) requestRefresh(ctx context.Context, eventID string) error {
	s.mu.RLock()
	started, d, q := s.started, s.deduper, s.queue
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	if d.SeenAndRecord(ctx, eventID) {
		metrics.RecordRefreshDeduplicated()
		s.log().Debug(ctx, "refresh already pending", logger.String("event_id", eventID))
		return nil
	}
	job := model.RefreshJob{
		JobID:     uuid.NewString(),
		EventID:   eventID,
		Requested: time.Now(),
	}
	if err := q.Enqueue(ctx, job); err != nil {
		d.Unrecord(ctx, eventID)
		return err
	}
	s.log().Debug(ctx, "refresh enqueued",
		logger.String("job_id", job.JobID),
		logger.String("event_id", eventID),
	)
	return nil
}

// Refresh recomputes and caches one event's similar list. It is called by
// the worker pool.
func (s *Service) Refresh(ctx context.Context, job model.RefreshJob) error {
	s.mu.RLock()
	d := s.deduper
	s.mu.RUnlock()
	// Unrecord first so an upsert landing mid-refresh schedules another pass.
	if d != nil {
		d.Unrecord(ctx, job.EventID)
	}

	gen := s.gen.Load()
	list, err := s.rankSimilar(ctx, job.EventID)
	if err != nil {
		return err
	}
	return s.storeSimilar(ctx, job.EventID, list, gen)
}

// JoinEvent records that userID attends eventID.
func (s *Service) JoinEvent(ctx context.Context, eventID, userID string) error {
	if err := s.store.AddAttendee(ctx, eventID, userID); err != nil {
		return fmt.Errorf("join event: %w", err)
	}
	return nil
}

// LeaveEvent removes userID from eventID's attendees.
func (s *Service) LeaveEvent(ctx context.Context, eventID, userID string) error {
	if err := s.store.RemoveAttendee(ctx, eventID, userID); err != nil {
		return fmt.Errorf("leave event: %w", err)
	}
	return nil
}

// BuddyMatches ranks the other attendees of eventID for userID. The requester
// must have joined the event.
func (s *Service) BuddyMatches(ctx context.Context, eventID, userID string) ([]model.PotentialMatch, error) {
	requester, others, err := s.store.CoAttendees(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("buddy matches: %w", err)
	}
	return s.rankBuddies(requester, others), nil
}

func (s *Service) rankBuddies(requester model.UserForMatching, candidates []model.UserForMatching) []model.PotentialMatch {
	start := time.Now()
	matches := s.buddy.FindPotentialMatches(requester, candidates)
	metrics.RecordScoring(metrics.ScorerBuddy, len(candidates), time.Since(start))

	considered := 0
	for _, c := range candidates {
		if c.ID != requester.ID {
			considered++
		}
	}
	if filtered := considered - len(matches); filtered > 0 {
		metrics.RecordCandidatesFiltered("preferences", filtered)
	}
	for _, m := range matches {
		metrics.ObserveScore(metrics.ScorerBuddy, m.CompatibilityScore)
	}
	metrics.RecordBuddyMatches(len(matches))
	return matches
}

// SimilarEvents returns up to limit events most similar to eventID, best
// first. limit <= 0 or above the configured maximum selects the maximum.
// Lists are cached; a cache failure falls back to computing.
func (s *Service) SimilarEvents(ctx context.Context, eventID string, limit int) ([]model.ScoredEvent, error) {
	if limit <= 0 || limit > s.maxRecommendations {
		limit = s.maxRecommendations
	}

	list, err := s.cachedSimilar(ctx, eventID)
	if err != nil {
		gen := s.gen.Load()
		if list, err = s.rankSimilar(ctx, eventID); err != nil {
			return nil, fmt.Errorf("similar events: %w", err)
		}
		if err := s.storeSimilar(ctx, eventID, list, gen); err != nil {
			s.log().Warn(ctx, "cache similar list", logger.String("event_id", eventID), logger.Error(err))
		}
	}

	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *Service) cachedSimilar(ctx context.Context, eventID string) ([]model.ScoredEvent, error) {
	b, err := s.cache.Get(ctx, similarKey(eventID))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log().Warn(ctx, "read similar list", logger.String("event_id", eventID), logger.Error(err))
		}
		return nil, err
	}
	var list []model.ScoredEvent
	if err := json.Unmarshal(b, &list); err != nil {
		s.log().Warn(ctx, "decode cached similar list", logger.String("event_id", eventID), logger.Error(err))
		return nil, err
	}
	return list, nil
}

// storeSimilar caches list unless the cache was invalidated after gen was read.
func (s *Service) storeSimilar(ctx context.Context, eventID string, list []model.ScoredEvent, gen uint64) error {
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode similar list: %w", err)
	}
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	if s.gen.Load() != gen {
		return nil
	}
	return s.cache.Set(ctx, similarKey(eventID), b, s.cacheTTL)
}

func (s *Service) rankSimilar(ctx context.Context, eventID string) ([]model.ScoredEvent, error) {
	ref, err := s.store.Event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	all, err := s.store.Events(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	list := s.similar.Rank(ref, all, s.maxRecommendations)
	metrics.RecordScoring(metrics.ScorerSimilarity, len(all)-1, time.Since(start))
	for _, e := range list {
		metrics.ObserveScore(metrics.ScorerSimilarity, e.SimilarityScore)
	}
	return list, nil
}

// ScoreBuddies ranks caller-supplied profiles for requester without touching
// the store. Rows are validated first.
func (s *Service) ScoreBuddies(ctx context.Context, requester repository.ProfileRow, candidates []repository.ProfileRow) ([]model.PotentialMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := requester.Validate(); err != nil {
		return nil, fmt.Errorf("requester: %w", err)
	}
	now := s.now()
	users := make([]model.UserForMatching, 0, len(candidates))
	for i := range candidates {
		if err := candidates[i].Validate(); err != nil {
			return nil, fmt.Errorf("candidates[%d]: %w", i, err)
		}
		users = append(users, candidates[i].ForMatching(now))
	}
	return s.rankBuddies(requester.ForMatching(now), users), nil
}

// ScoreEvents ranks caller-supplied events against reference without
// touching the store or cache.
func (s *Service) ScoreEvents(ctx context.Context, reference repository.EventRow, candidates []repository.EventRow, limit int) ([]model.ScoredEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := reference.Validate(); err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	events := make([]model.EventForScoring, 0, len(candidates))
	for i := range candidates {
		if err := candidates[i].Validate(); err != nil {
			return nil, fmt.Errorf("candidates[%d]: %w", i, err)
		}
		events = append(events, candidates[i].ForScoring())
	}
	if limit <= 0 || limit > s.maxRecommendations {
		limit = s.maxRecommendations
	}

	start := time.Now()
	list := s.similar.Rank(reference.ForScoring(), events, limit)
	metrics.RecordScoring(metrics.ScorerSimilarity, len(events), time.Since(start))
	return list, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles, events := s.store.Count(context.Background())
	stats := map[string]interface{}{
		"started":            s.started,
		"workerCount":        s.workerCount,
		"queueSize":          s.queueSize,
		"dedupeSize":         s.dedupeSize,
		"maxRecommendations": s.maxRecommendations,
		"cacheTTLMs":         s.cacheTTL.Milliseconds(),
		"profiles":           profiles,
		"events":             events,
	}

	if s.started {
		queueLen := s.queue.Len()
		stats["queueLength"] = queueLen
		stats["queueCapacity"] = s.queue.Cap()
		stats["pendingRefreshes"] = s.deduper.Size()
		stats["refreshesProcessed"] = s.pool.Stats().Processed()
		stats["refreshesFailed"] = s.pool.Stats().Failed()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateRecordCounts(profiles, events)
	}
	return stats
}

// Counts returns the number of stored profiles and events.
func (s *Service) Counts(ctx context.Context) (profiles, events int) {
	return s.store.Count(ctx)
}

func (s *Service) log() logger.Logger {
	s.mu.RLock()
	l := s.logger
	s.mu.RUnlock()
	if l == nil {
		return logger.Named("service")
	}
	return l
}
