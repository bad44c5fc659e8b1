package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/findna/internal/adapters/mq/queue"
	worker "github.com/okian/findna/internal/adapters/mq/worker"
	"github.com/okian/findna/internal/adapters/repository"
	model "github.com/okian/findna/internal/domain/model"
	"github.com/okian/findna/pkg/retry"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan *queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan *queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan *queue.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

type mockStore struct {
	mu       sync.Mutex
	profiles map[string]model.FinancialProfile
	contexts map[string]model.NarrativeContext
	failures map[string]int
	failWith error
	calls    int
	delay    time.Duration
}

func newMockStore() *mockStore {
	return &mockStore{
		profiles: map[string]model.FinancialProfile{},
		contexts: map[string]model.NarrativeContext{},
		failures: map[string]int{},
		failWith: errors.New("store unavailable"),
	}
}

func (ms *mockStore) fail(sessionID string) error {
	ms.calls++
	if ms.failures[sessionID] > 0 {
		ms.failures[sessionID]--
		return ms.failWith
	}
	return nil
}

func (ms *mockStore) Upsert(ctx context.Context, p model.FinancialProfile) error {
	if ms.delay > 0 {
		select {
		case <-time.After(ms.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if p.SessionID == "" {
		return repository.ErrInvalidSession
	}
	if err := ms.fail(p.SessionID); err != nil {
		return err
	}
	ms.profiles[p.SessionID] = p
	return nil
}

func (ms *mockStore) UpsertContext(ctx context.Context, sessionID string, c model.NarrativeContext) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ms.fail(sessionID); err != nil {
		return err
	}
	ms.contexts[sessionID] = c
	return nil
}

func (ms *mockStore) profile(sessionID string) (model.FinancialProfile, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	p, ok := ms.profiles[sessionID]
	return p, ok
}

func (ms *mockStore) callCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.calls
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 2}
}

func profileJob(session string) *queue.Job {
	return queue.NewProfileJob(model.NewFinancialProfile("u1", session, time.Now()))
}

func wait(job *queue.Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return job.Wait(ctx)
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running InMemoryWorker", t, func() {
		q := newMockQueue()
		store := newMockStore()
		w := worker.NewInMemoryWorker(q, store,
			worker.WithName("test-worker"),
			worker.WithRetryPolicy(fastPolicy()),
			worker.WithTimeout(100*time.Millisecond),
			worker.WithBackend("mock"),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a profile job is queued", func() {
			job := profileJob("s1")
			q.jobs <- job

			convey.Convey("Then it is written and completed without error", func() {
				convey.So(wait(job), convey.ShouldBeNil)
				p, ok := store.profile("s1")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(p.UserID, convey.ShouldEqual, "u1")
			})
		})

		convey.Convey("When a context job is queued", func() {
			job := queue.NewContextJob("s1", model.NarrativeContext{"session_id": "s1"})
			q.jobs <- job

			convey.Convey("Then the context is written", func() {
				convey.So(wait(job), convey.ShouldBeNil)
				store.mu.Lock()
				defer store.mu.Unlock()
				convey.So(store.contexts["s1"]["session_id"], convey.ShouldEqual, "s1")
			})
		})

		convey.Convey("When the store fails transiently", func() {
			store.failures["s2"] = 2
			job := profileJob("s2")
			q.jobs <- job

			convey.Convey("Then the write is retried until it succeeds", func() {
				convey.So(wait(job), convey.ShouldBeNil)
				convey.So(store.callCount(), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the store keeps failing", func() {
			store.failures["s3"] = 10
			job := profileJob("s3")
			q.jobs <- job

			convey.Convey("Then the job completes with the store error after the last attempt", func() {
				err := wait(job)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "store unavailable")
				convey.So(store.callCount(), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the session id is empty", func() {
			job := profileJob("")
			q.jobs <- job

			convey.Convey("Then it is not retried", func() {
				convey.So(errors.Is(wait(job), repository.ErrInvalidSession), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer shutdownCancel()

			convey.Convey("Then it stops gracefully and a second call is harmless", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool over the in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		store := newMockStore()

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, q, store)

			convey.Convey("Then it sizes itself from the CPU count", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When processing many jobs", func() {
			pool := worker.NewPool(3, q, store, worker.WithRetryPolicy(fastPolicy()))
			pool.Start(context.Background())

			jobs := make([]*queue.Job, 20)
			for i := range jobs {
				jobs[i] = profileJob(fmt.Sprintf("s%d", i))
				convey.So(q.Enqueue(context.Background(), jobs[i]), convey.ShouldBeNil)
			}

			convey.Convey("Then every job is written", func() {
				for i, job := range jobs {
					convey.So(wait(job), convey.ShouldBeNil)
					_, ok := store.profile(fmt.Sprintf("s%d", i))
					convey.So(ok, convey.ShouldBeTrue)
				}
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When shutting down with queued jobs", func() {
			store.delay = 5 * time.Millisecond
			pool := worker.NewPool(1, q, store, worker.WithRetryPolicy(fastPolicy()))

			jobs := make([]*queue.Job, 5)
			for i := range jobs {
				jobs[i] = profileJob(fmt.Sprintf("d%d", i))
				_ = q.Enqueue(context.Background(), jobs[i])
			}
			startCtx, cancelStart := context.WithCancel(context.Background())
			pool.Start(startCtx)
			cancelStart()

			err := pool.Shutdown(context.Background())

			convey.Convey("Then the queue is drained before returning", func() {
				convey.So(err, convey.ShouldBeNil)
				for _, job := range jobs {
					convey.So(wait(job), convey.ShouldBeNil)
				}
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the drain deadline passes", func() {
			store.delay = time.Second
			pool := worker.NewPool(1, q, store, worker.WithRetryPolicy(retry.Policy{MaxAttempts: 1}))

			jobs := make([]*queue.Job, 3)
			for i := range jobs {
				jobs[i] = profileJob(fmt.Sprintf("t%d", i))
				_ = q.Enqueue(context.Background(), jobs[i])
			}
			pool.Start(context.Background())

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then it reports the timeout and no producer is left waiting", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
				for _, job := range jobs {
					convey.So(wait(job), convey.ShouldNotBeNil)
				}
			})
		})

		convey.Convey("When shutting down a pool that never started", func() {
			pool := worker.NewPool(2, q, store)

			convey.Convey("Then it returns immediately", func() {
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}
