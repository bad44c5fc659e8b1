// Package health tracks per-source fetch outcomes across runs and derives
// an overall availability status.
package health

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/findna/internal/domain/model"
)

// Default classification thresholds.
const (
	defaultHealthyRatio   = 0.8
	defaultDegradedRatio  = 0.6
	defaultErrorRateLimit = 0.5
	defaultSlowLatency    = 30 * time.Second
)

// Option applies a configuration option to the Monitor.
type Option func(*Monitor)

// WithThresholds sets the success ratios at or above which the system is
// healthy and degraded. Anything lower is critical.
func WithThresholds(healthy, degraded float64) Option {
	return func(m *Monitor) {
		if healthy > 0 && healthy <= 1 && degraded >= 0 && degraded <= healthy {
			m.healthyRatio = healthy
			m.degradedRatio = degraded
		}
	}
}

// WithIssueThresholds sets the per-source error rate and average latency
// above which an issue is reported.
func WithIssueThresholds(errorRate float64, slow time.Duration) Option {
	return func(m *Monitor) {
		if errorRate > 0 && errorRate <= 1 {
			m.errorRateLimit = errorRate
		}
		if slow > 0 {
			m.slowLatency = slow
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

type counters struct {
	attempts  int
	successes int
	failures  int
	avg       time.Duration
	last      time.Time
}

// Monitor is the process-wide health state. All methods are safe for
// concurrent use; writers are serialized and Snapshot returns a copy.
type Monitor struct {
	mu        sync.RWMutex
	sources   map[model.SourceID]*counters
	startedAt time.Time
	now       func() time.Time

	healthyRatio   float64
	degradedRatio  float64
	errorRateLimit float64
	slowLatency    time.Duration
}

// NewMonitor creates an empty monitor. Its uptime starts now.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		sources:        make(map[model.SourceID]*counters),
		now:            time.Now,
		healthyRatio:   defaultHealthyRatio,
		degradedRatio:  defaultDegradedRatio,
		errorRateLimit: defaultErrorRateLimit,
		slowLatency:    defaultSlowLatency,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.startedAt = m.now()
	return m
}

// Record adds one fetch outcome for id.
func (m *Monitor) Record(id model.SourceID, success bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(id, success, latency, m.now())
}

// RecordResults adds every result of one collection run under a single lock,
// so readers never observe half a run.
func (m *Monitor) RecordResults(results []model.SourceResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, r := range results {
		m.record(r.SourceID, r.OK(), r.Latency, now)
	}
}

// record must be called with m.mu held.
func (m *Monitor) record(id model.SourceID, success bool, latency time.Duration, at time.Time) {
	c, ok := m.sources[id]
	if !ok {
		c = &counters{}
		m.sources[id] = c
	}
	c.attempts++
	if success {
		c.successes++
	} else {
		c.failures++
	}
	n := float64(c.attempts)
	c.avg = time.Duration((float64(c.avg)*(n-1) + float64(latency)) / n)
	c.last = at
}

// Snapshot returns a consistent copy of the current state.
func (m *Monitor) Snapshot() model.HealthSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	snap := model.HealthSnapshot{
		Sources:     make(map[model.SourceID]model.SourceHealth, len(m.sources)),
		Issues:      []string{},
		StartedAt:   m.startedAt,
		Uptime:      now.Sub(m.startedAt),
		GeneratedAt: now,
	}

	ids := make([]model.SourceID, 0, len(m.sources))
	for id := range m.sources {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var attempts, successes int
	for _, id := range ids {
		c := m.sources[id]
		sh := model.SourceHealth{
			Attempts:    c.attempts,
			Successes:   c.successes,
			Failures:    c.failures,
			AvgLatency:  c.avg,
			LastAttempt: c.last,
		}
		if c.attempts > 0 {
			sh.ErrorRate = float64(c.failures) / float64(c.attempts)
		}
		snap.Sources[id] = sh
		attempts += c.attempts
		successes += c.successes

		if sh.ErrorRate > m.errorRateLimit {
			snap.Issues = append(snap.Issues, fmt.Sprintf("%s has high error rate: %.1f%%", id, sh.ErrorRate*100))
		}
		if sh.AvgLatency > m.slowLatency {
			snap.Issues = append(snap.Issues, fmt.Sprintf("%s has slow response time: %.1fs", id, sh.AvgLatency.Seconds()))
		}
	}

	// Nothing recorded yet counts as fully available.
	snap.SuccessRatio = 1
	if attempts > 0 {
		snap.SuccessRatio = float64(successes) / float64(attempts)
	}
	snap.OverallStatus = m.classify(snap.SuccessRatio)
	return snap
}

func (m *Monitor) classify(ratio float64) model.HealthStatus {
	switch {
	case ratio >= m.healthyRatio:
		return model.HealthHealthy
	case ratio >= m.degradedRatio:
		return model.HealthDegraded
	default:
		return model.HealthCritical
	}
}
