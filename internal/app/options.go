package service

import (
	"time"

	"github.com/okian/findna/internal/adapters/narrative"
	"github.com/okian/findna/internal/adapters/repository"
	"github.com/okian/findna/internal/domain/aggregate"
	"github.com/okian/findna/internal/domain/collector"
	"github.com/okian/findna/internal/domain/health"
	"github.com/okian/findna/internal/domain/scoring"
	"github.com/okian/findna/pkg/logger"
	"github.com/okian/findna/pkg/retry"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend and the name it reports in metrics.
func WithStore(store repository.Store, backend string) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			if backend != "" {
				s.backend = backend
			}
		}
	}
}

// WithFetchers sets the source fetchers every build runs.
func WithFetchers(fetchers []collector.Fetcher) Option {
	return func(s *Service) {
		s.fetchers = fetchers
	}
}

// WithCollector sets the parallel collector.
func WithCollector(c *collector.Collector) Option {
	return func(s *Service) {
		if c != nil {
			s.collector = c
		}
	}
}

// WithAggregator sets the aggregator.
func WithAggregator(a *aggregate.Aggregator) Option {
	return func(s *Service) {
		if a != nil {
			s.aggregator = a
		}
	}
}

// WithScoringEngine sets the scoring engine.
func WithScoringEngine(e *scoring.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithMonitor sets the health monitor shared with the health endpoint.
func WithMonitor(m *health.Monitor) Option {
	return func(s *Service) {
		if m != nil {
			s.monitor = m
		}
	}
}

// WithNarrative sets the narrative context generator.
func WithNarrative(g narrative.Generator) Option {
	return func(s *Service) {
		if g != nil {
			s.narrative = g
		}
	}
}

// WithQueueSize sets the capacity of the persistence queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of persistence workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithPersistTimeout bounds a single store write.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// WithPersistRetryPolicy sets how failed store writes are retried.
func WithPersistRetryPolicy(p retry.Policy) Option {
	return func(s *Service) {
		s.persistPolicy = p
	}
}

// WithMaxInFlight caps concurrent builds. Zero or less is unbounded.
func WithMaxInFlight(n int) Option {
	return func(s *Service) {
		s.maxInFlight = n
	}
}

// WithHealthSchedule sets the cron spec of the periodic health report.
// An empty spec disables it.
func WithHealthSchedule(spec string) Option {
	return func(s *Service) {
		s.healthSchedule = spec
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

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
