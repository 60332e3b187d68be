// Package queue buffers refresh jobs between the service and the worker pool.
package queue

import (
	"context"
	"sync"

	"github.com/openoutings/outings/internal/domain/model"
	"github.com/openoutings/outings/pkg/metrics"
)

const defaultCapacity = 10_000

// Job is the payload flowing through the queue.
type Job = model.RefreshJob

// Queue offers non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds a job without blocking. It fails with ErrQueueFull or
	// ErrQueueClosed, or the context error if ctx is already done.
	Enqueue(ctx context.Context, j Job) error

	// Dequeue returns the receive side of the queue. It is closed, after
	// draining, once Close is called.
	Dequeue() <-chan Job

	Len() int
	Cap() int

	// Close stops accepting jobs. It is safe to call more than once.
	Close() error
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates an in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrQueueClosed
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "full")
		return ErrQueueFull
	}
}

func (q *InMemoryQueue) Dequeue() <-chan Job { return q.jobs }

func (q *InMemoryQueue) Len() int { return len(q.jobs) }

func (q *InMemoryQueue) Cap() int { return q.capacity }

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}
