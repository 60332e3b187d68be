// Package worker drains refresh jobs and recomputes cached recommendations.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/openoutings/outings/internal/adapters/mq/queue"
	"github.com/openoutings/outings/internal/domain/model"
	"github.com/openoutings/outings/pkg/logger"
	"github.com/openoutings/outings/pkg/metrics"
)

const defaultWorkerMultiplier = 2

// Refresher does the work for one job.
type Refresher interface {
	Refresh(ctx context.Context, job model.RefreshJob) error
}

// Source is where workers read jobs from.
type Source interface {
	Dequeue() <-chan model.RefreshJob
}

// Stats counts job outcomes across workers.
type Stats struct {
	processed atomic.Int64
	failed    atomic.Int64
}

func (s *Stats) Processed() int64 { return s.processed.Load() }
func (s *Stats) Failed() int64    { return s.failed.Load() }

// InMemoryWorker runs jobs one at a time until its source closes.
type InMemoryWorker struct {
	source    Source
	refresher Refresher
	name      string
	stats     *Stats
	done      chan struct{}
	logger    logger.Logger
}

// NewInMemoryWorker creates a worker reading from source.
func NewInMemoryWorker(source Source, refresher Refresher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		source:    source,
		refresher: refresher,
		name:      "worker",
		stats:     &Stats{},
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named("worker").With(logger.String("worker", w.name))
	}
	return w
}

// Run processes jobs until the source is closed and drained, or ctx is done.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "refresh failed",
					logger.String("job_id", job.JobID),
					logger.String("event_id", job.EventID),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, job model.RefreshJob) error {
	start := time.Now()
	err := w.refresher.Refresh(ctx, job)
	metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)

	if err != nil {
		w.stats.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "refresh")
		return fmt.Errorf("refresh event %s: %w", job.EventID, err)
	}
	w.stats.processed.Add(1)
	w.logger.Debug(ctx, "refreshed",
		logger.String("event_id", job.EventID),
		logger.Duration("queued_for", start.Sub(job.Requested)),
	)
	return nil
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   queue.Queue
	stats   *Stats
	cancel  context.CancelFunc
	logger  logger.Logger
}

// NewPool creates workerCount workers. workerCount < 1 picks a CPU-based default.
func NewPool(workerCount int, q queue.Queue, refresher Refresher) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		stats:   &Stats{},
		logger:  logger.Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, refresher,
			WithName("worker-"+strconv.Itoa(i)),
			withStats(p.stats),
		)
	}
	return p
}

// Start launches every worker. Workers stop when ctx is done or on Shutdown.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Stats returns the pool-wide job counters.
func (p *Pool) Stats() *Stats { return p.stats }

// Shutdown closes the queue and waits for workers to drain it. If ctx ends
// first, workers are cancelled and the context error is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "close queue", logger.Error(err))
	}
	if p.cancel != nil {
		defer p.cancel()
	}

	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out",
				logger.Int("worker_id", i),
				logger.Int("queued", p.queue.Len()),
			)
			return fmt.Errorf("shutdown worker pool: %w", ctx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
