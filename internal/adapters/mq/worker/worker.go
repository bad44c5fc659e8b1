// Package worker drains persistence jobs from the queue and writes them to
// the store with retries.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/findna/internal/adapters/mq/queue"
	"github.com/okian/findna/internal/adapters/repository"
	"github.com/okian/findna/internal/domain/model"
	"github.com/okian/findna/pkg/logger"
	"github.com/okian/findna/pkg/metrics"
	"github.com/okian/findna/pkg/retry"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	defaultWriteTimeout     = 10 * time.Second
	defaultBackend          = "memory"
)

// ErrUnknownKind is returned for a job the worker does not know how to write.
var ErrUnknownKind = errors.New("unknown job kind")

// Persister is the write side of the store.
type Persister interface {
	Upsert(ctx context.Context, p model.FinancialProfile) error
	UpsertContext(ctx context.Context, sessionID string, c model.NarrativeContext) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan *queue.Job
}

// Worker processes persistence jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is drained.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in progress.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker writes jobs taken from a Queue to a Persister.
type InMemoryWorker struct {
	queue   Queue
	store   Persister
	name    string
	backend string
	policy  retry.Policy
	timeout time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	root   logger.Logger
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, store Persister, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		store:    store,
		name:     "worker",
		backend:  defaultBackend,
		policy:   retry.DefaultPolicy(),
		timeout:  defaultWriteTimeout,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	w.root = w.logger
	w.logger = w.logger.Named(w.name)

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job", logger.Error(err))
			}
		}
	}
}

// Shutdown signals the worker to stop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob writes one job and completes it with the outcome.
func (w *InMemoryWorker) processJob(ctx context.Context, job *queue.Job) error {
	start := time.Now()

	_, attempts, err := retry.Do(ctx, w.policy, func(ctx context.Context) (struct{}, error) {
		writeCtx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()
		err := w.write(writeCtx, job)
		if errors.Is(err, repository.ErrInvalidSession) || errors.Is(err, ErrUnknownKind) {
			return struct{}{}, retry.Permanent(err)
		}
		return struct{}{}, err
	}, retry.WithNotify(func(attempt int, err error, wait time.Duration) {
		metrics.RecordPersistRetry()
		w.logger.Warn(ctx, "write failed, retrying",
			logger.String("job_id", job.ID),
			logger.Int("attempt", attempt),
			logger.Duration("wait", wait),
			logger.Error(err),
		)
	}))

	elapsed := time.Since(start).Seconds()
	job.Complete(err)

	if err != nil {
		metrics.RecordPersist(w.backend, "error", elapsed)
		metrics.RecordErrorByComponent("worker", "persist_error")
		metrics.RecordErrorByType("persist_error", "high")
		return fmt.Errorf("persist %s job %s for session %s after %d attempt(s): %w",
			job.Kind, job.ID, job.SessionID, attempts, err)
	}

	metrics.RecordPersist(w.backend, "ok", elapsed)
	w.logger.Debug(ctx, "job persisted",
		logger.String("job_id", job.ID),
		logger.String("session_id", job.SessionID),
		logger.String("kind", string(job.Kind)),
		logger.Int("attempts", attempts),
	)
	return nil
}

func (w *InMemoryWorker) write(ctx context.Context, job *queue.Job) error {
	switch job.Kind {
	case queue.KindProfile:
		return w.store.Upsert(ctx, job.Profile)
	case queue.KindContext:
		return w.store.UpsertContext(ctx, job.SessionID, job.Context)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, job.Kind)
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	mu     sync.Mutex
	cancel context.CancelFunc

	logger logger.Logger
}

// NewPool creates a new worker pool. The options apply to every worker;
// each worker is named after its index.
func NewPool(workerCount int, q Queue, store Persister, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, store, workerOpts...)
	}
	pool.logger = pool.workers[0].root.Named("worker-pool")

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers. The workers keep running when ctx is canceled
// so that Shutdown can drain the queue; values of ctx are kept.
func (p *Pool) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	for _, worker := range p.workers {
		go worker.Run(runCtx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Shutdown closes the queue and waits for the workers to drain it. When ctx
// expires first the remaining jobs are completed with ctx's error.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	defer metrics.UpdateWorkerActiveCount(0)

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			cancel()
			for _, w := range p.workers[i:] {
				<-w.done
			}
			return fmt.Errorf("drain persistence queue: %w", ctx.Err())
		}
	}
	cancel()
	return nil
}
