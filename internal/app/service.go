// Package service runs the financial DNA pipeline: collect every source in
// parallel, aggregate, score, persist through the worker pool and derive the
// narrative context. It implements the dependencies of the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/okian/findna/internal/adapters/mq/queue"
	"github.com/okian/findna/internal/adapters/mq/worker"
	"github.com/okian/findna/internal/adapters/narrative"
	"github.com/okian/findna/internal/adapters/repository"
	"github.com/okian/findna/internal/domain/aggregate"
	"github.com/okian/findna/internal/domain/collector"
	"github.com/okian/findna/internal/domain/dedupe"
	"github.com/okian/findna/internal/domain/health"
	"github.com/okian/findna/internal/domain/model"
	"github.com/okian/findna/internal/domain/scoring"
	"github.com/okian/findna/pkg/logger"
	"github.com/okian/findna/pkg/metrics"
	"github.com/okian/findna/pkg/retry"
	"github.com/robfig/cron/v3"
)

// Default service configuration constants.
const (
	defaultQueueSize      = 1024
	defaultWorkerCount    = 2
	defaultPersistTimeout = 5 * time.Second
	defaultMaxInFlight    = 1024
	defaultBackend        = "memory"
)

// BuildRequest asks for one pipeline run. An empty SessionID gets a new one.
type BuildRequest struct {
	UserID    string `json:"user_id" validate:"required,max=128"`
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
}

// BuildResult is what a run produced. The profile is returned even when it
// could not be stored.
type BuildResult struct {
	Profile        model.FinancialProfile `json:"profile"`
	Sources        []model.SourceResult   `json:"sources"`
	PendingActions []PendingAction        `json:"pending_actions,omitempty"`
	Context        model.NarrativeContext `json:"context,omitempty"`
	Persisted      bool                   `json:"persisted"`
	PersistError   string                 `json:"persist_error,omitempty"`
	ContextError   string                 `json:"context_error,omitempty"`
	Health         model.HealthSnapshot   `json:"health"`
	Duration       time.Duration          `json:"duration"`
}

// PendingAction is an out-of-band step a source is waiting for.
type PendingAction struct {
	SourceID model.SourceID `json:"source_id"`
	model.ActionRequired
}

// Service implements the API dependencies for the profile pipeline.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	fetchers   []collector.Fetcher
	collector  *collector.Collector
	aggregator *aggregate.Aggregator
	engine     *scoring.Engine
	monitor    *health.Monitor
	narrative  narrative.Generator
	guard      dedupe.Guard
	queue      *queue.InMemoryQueue
	pool       *worker.Pool
	cron       *cron.Cron
	validate   *validator.Validate

	// Configuration
	backend        string
	queueSize      int
	workerCount    int
	persistTimeout time.Duration
	persistPolicy  retry.Policy
	maxInFlight    int
	healthSchedule string

	// State
	started bool

	logger logger.Logger
	now    func() time.Time
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		store:          repository.NewMemoryStore(),
		collector:      collector.New(),
		aggregator:     aggregate.New(),
		engine:         scoring.NewEngine(),
		monitor:        health.NewMonitor(),
		narrative:      narrative.NewTemplateGenerator(),
		validate:       validator.New(),
		backend:        defaultBackend,
		queueSize:      defaultQueueSize,
		workerCount:    defaultWorkerCount,
		persistTimeout: defaultPersistTimeout,
		persistPolicy:  retry.DefaultPolicy(),
		maxInFlight:    defaultMaxInFlight,
		logger:         logger.Nop(),
		now:            time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	s.guard = dedupe.NewInMemoryGuard(dedupe.WithMaxSize(s.maxInFlight))
	return s
}

// Start initializes and starts the persistence workers and the health report.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if len(s.fetchers) == 0 {
		return ErrNoFetchers
	}

	s.logger.Info(ctx, "starting profile service...")

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.store,
		worker.WithLogger(s.logger),
		worker.WithBackend(s.backend),
		worker.WithTimeout(s.persistTimeout),
		worker.WithRetryPolicy(s.persistPolicy),
	)
	s.pool.Start(ctx)

	if s.healthSchedule != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(s.healthSchedule, func() { s.ReportHealth(context.Background()) }); err != nil {
			_ = s.pool.Shutdown(ctx)
			return fmt.Errorf("schedule health report %q: %w", s.healthSchedule, err)
		}
		s.cron.Start()
	}

	s.started = true
	s.logger.Info(ctx, "profile service started",
		logger.Int("sources", len(s.fetchers)),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.String("store", s.backend),
	)
	return nil
}

// Stop drains pending writes and stops background work. It waits at most
// until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping profile service...")

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "profile service stopped")
	return errors.Join(errs...)
}

// Build runs the pipeline once for a session.
func (s *Service) Build(ctx context.Context, req BuildRequest) (BuildResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return BuildResult{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	s.mu.RLock()
	started, q := s.started, s.queue
	s.mu.RUnlock()
	if !started {
		return BuildResult{}, ErrNotStarted
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	release, err := s.guard.Acquire(ctx, req.SessionID)
	if err != nil {
		return BuildResult{}, err
	}
	defer release()

	start := s.now()
	log := s.logger
	log.Info(ctx, "building profile", logger.String("session_id", req.SessionID), logger.String("user_id", req.UserID))

	results := s.collector.Collect(ctx, req.SessionID, s.fetchers)
	if err := ctx.Err(); err != nil {
		metrics.RecordBuild("cancelled", s.now().Sub(start).Seconds())
		log.Warn(ctx, "build cancelled while collecting sources", logger.String("session_id", req.SessionID), logger.Error(err))
		return BuildResult{}, fmt.Errorf("%w: %w", ErrBuildCancelled, err)
	}
	s.monitor.RecordResults(results)
	snapshot := s.monitor.Snapshot()
	publishHealth(snapshot)

	profile, quality := s.aggregator.Aggregate(ctx, req.UserID, req.SessionID, results)
	profile = s.engine.Apply(profile)
	metrics.RecordDataQuality(quality)
	metrics.RecordDisciplineScore(profile.DisciplineScore)

	res := BuildResult{
		Profile:        profile,
		Sources:        results,
		PendingActions: pendingActions(results),
		Health:         snapshot,
	}

	if err := s.persist(ctx, q, queue.NewProfileJob(profile)); err != nil {
		res.PersistError = err.Error()
		log.Error(ctx, "profile not persisted", logger.String("session_id", req.SessionID), logger.Error(err))
	} else {
		res.Persisted = true
	}

	nc, err := s.narrative.Generate(ctx, profile)
	switch {
	case err != nil:
		res.ContextError = err.Error()
		log.Warn(ctx, "narrative context failed", logger.String("session_id", req.SessionID), logger.Error(err))
	default:
		res.Context = nc
		if err := s.persist(ctx, q, queue.NewContextJob(req.SessionID, nc)); err != nil {
			res.ContextError = err.Error()
			log.Error(ctx, "context not persisted", logger.String("session_id", req.SessionID), logger.Error(err))
		}
	}

	res.Duration = s.now().Sub(start)
	outcome := "ok"
	switch {
	case !res.Persisted:
		outcome = "persist_failed"
	case quality < 100:
		outcome = "partial"
	}
	metrics.RecordBuild(outcome, res.Duration.Seconds())

	log.Info(ctx, "profile built",
		logger.String("session_id", req.SessionID),
		logger.String("outcome", outcome),
		logger.Float64("data_quality", quality),
		logger.Float64("discipline_score", profile.DisciplineScore),
		logger.Duration("duration", res.Duration),
	)
	return res, nil
}

func (s *Service) persist(ctx context.Context, q *queue.InMemoryQueue, job *queue.Job) error {
	if err := q.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue %s job: %w", job.Kind, err)
	}
	return job.Wait(ctx)
}

func pendingActions(results []model.SourceResult) []PendingAction {
	var out []PendingAction
	for _, r := range results {
		if r.Status == model.StatusAuthRequired && r.Action != nil {
			out = append(out, PendingAction{SourceID: r.SourceID, ActionRequired: *r.Action})
		}
	}
	return out
}

// Get returns the stored profile for a session.
func (s *Service) Get(ctx context.Context, sessionID string) (model.FinancialProfile, error) {
	return s.store.Get(ctx, sessionID)
}

// GetContext returns the stored narrative context for a session.
func (s *Service) GetContext(ctx context.Context, sessionID string) (model.NarrativeContext, error) {
	return s.store.GetContext(ctx, sessionID)
}

// Health returns the current health snapshot.
func (s *Service) Health(_ context.Context) model.HealthSnapshot {
	return s.monitor.Snapshot()
}

func (s *Service) ranker() (repository.Ranker, error) {
	r, ok := s.store.(repository.Ranker)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRankingUnsupported, s.backend)
	}
	return r, nil
}

// Top returns the n most disciplined profiles.
func (s *Service) Top(ctx context.Context, n int) ([]repository.Entry, error) {
	r, err := s.ranker()
	if err != nil {
		return nil, err
	}
	return r.Top(ctx, n)
}

// ByDisciplineRange returns profiles whose discipline score is in [lo, hi].
func (s *Service) ByDisciplineRange(ctx context.Context, lo, hi float64) ([]repository.Entry, error) {
	r, err := s.ranker()
	if err != nil {
		return nil, err
	}
	return r.ByDisciplineRange(ctx, lo, hi)
}

// NeedsAttention returns up to n profiles below the attention threshold.
func (s *Service) NeedsAttention(ctx context.Context, n int) ([]repository.Entry, error) {
	r, err := s.ranker()
	if err != nil {
		return nil, err
	}
	return r.NeedsAttention(ctx, n)
}

// ReportHealth logs the snapshot and refreshes the health and system gauges.
func (s *Service) ReportHealth(ctx context.Context) {
	snap := s.monitor.Snapshot()
	publishHealth(snap)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	fields := []logger.Field{
		logger.String("status", string(snap.OverallStatus)),
		logger.Float64("success_ratio", snap.SuccessRatio),
		logger.Duration("uptime", snap.Uptime),
		logger.Strings("issues", snap.Issues),
	}
	if snap.OverallStatus == model.HealthHealthy {
		s.logger.Info(ctx, "health check", fields...)
		return
	}
	s.logger.Warn(ctx, "health check", fields...)
}

func publishHealth(snap model.HealthSnapshot) {
	metrics.UpdateSourceSuccessRatio(snap.SuccessRatio)
	switch snap.OverallStatus {
	case model.HealthHealthy:
		metrics.UpdateHealthStatus(metrics.HealthLevelHealthy)
	case model.HealthDegraded:
		metrics.UpdateHealthStatus(metrics.HealthLevelDegraded)
	default:
		metrics.UpdateHealthStatus(metrics.HealthLevelCritical)
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"store":       s.backend,
		"sources":     len(s.fetchers),
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"inFlight":    s.guard.Size(),
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
	}
	if r, ok := s.store.(repository.Ranker); ok {
		if n, err := r.Count(ctx); err == nil {
			stats["totalProfiles"] = n
		}
	}
	return stats
}
