package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/openoutings/outings/internal/adapters/mq/queue"
	"github.com/openoutings/outings/internal/adapters/mq/worker"
	"github.com/openoutings/outings/internal/domain/model"
	"github.com/openoutings/outings/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type mockRefresher struct {
	mu    sync.Mutex
	seen  []string
	fail  map[string]error
	block chan struct{}
	calls chan string
}

func newMockRefresher() *mockRefresher {
	return &mockRefresher{fail: map[string]error{}, calls: make(chan string, 100)}
}

func (r *mockRefresher) Refresh(ctx context.Context, job model.RefreshJob) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	r.seen = append(r.seen, job.EventID)
	err := r.fail[job.EventID]
	r.mu.Unlock()
	r.calls <- job.EventID
	return err
}

func (r *mockRefresher) refreshed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.seen...)
	sort.Strings(out)
	return out
}

func newJob(eventID string) model.RefreshJob {
	return model.RefreshJob{JobID: "job-" + eventID, EventID: eventID, Requested: time.Now()}
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of three workers on a queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(50))
		r := newMockRefresher()
		pool := worker.NewPool(3, q, r)
		convey.So(pool.Size(), convey.ShouldEqual, 3)

		convey.Convey("When jobs are enqueued and the pool shuts down", func() {
			pool.Start(ctx)
			for i := 0; i < 10; i++ {
				convey.So(q.Enqueue(ctx, newJob(fmt.Sprintf("e%02d", i))), convey.ShouldBeNil)
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then every job is processed before workers exit", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(r.refreshed()), convey.ShouldEqual, 10)
				convey.So(pool.Stats().Processed(), convey.ShouldEqual, 10)
				convey.So(pool.Stats().Failed(), convey.ShouldEqual, 0)
				convey.So(errors.Is(q.Enqueue(ctx, newJob("late")), queue.ErrQueueClosed), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a refresh fails", func() {
			r.fail["bad"] = errors.New("store down")
			pool.Start(ctx)
			convey.So(q.Enqueue(ctx, newJob("bad")), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, newJob("good")), convey.ShouldBeNil)

			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)

			convey.Convey("Then the failure is counted and other jobs continue", func() {
				convey.So(r.refreshed(), convey.ShouldResemble, []string{"bad", "good"})
				convey.So(pool.Stats().Processed(), convey.ShouldEqual, 1)
				convey.So(pool.Stats().Failed(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When workers are stuck past the shutdown deadline", func() {
			r.block = make(chan struct{})
			defer close(r.block)
			pool.Start(ctx)
			convey.So(q.Enqueue(ctx, newJob("slow")), convey.ShouldBeNil)

			shutdownCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then Shutdown reports the deadline", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a single named worker", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(5))
		r := newMockRefresher()
		w := worker.NewInMemoryWorker(q, r,
			worker.WithName("solo"),
			worker.WithLogger(logger.Named("test")),
		)

		convey.Convey("When its context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			go w.Run(ctx)
			convey.So(q.Enqueue(ctx, newJob("e1")), convey.ShouldBeNil)
			<-r.calls
			cancel()

			convey.Convey("Then Run returns", func() {
				select {
				case <-w.Done():
				case <-time.After(2 * time.Second):
					t.Fatal("worker did not stop")
				}
				convey.So(r.refreshed(), convey.ShouldResemble, []string{"e1"})
			})
		})

		convey.Convey("When its queue is closed", func() {
			go w.Run(context.Background())
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then Run returns", func() {
				select {
				case <-w.Done():
				case <-time.After(2 * time.Second):
					t.Fatal("worker did not stop")
				}
			})
		})
	})
}
