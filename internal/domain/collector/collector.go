// Package collector runs source fetchers in parallel under one deadline and
// returns exactly one result per fetcher.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/findna/internal/domain/model"
	"github.com/okian/findna/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Default collector configuration constants.
const (
	defaultDeadline      = 30 * time.Second
	defaultMaxConcurrent = 6
	tracerName           = "github.com/okian/findna/internal/domain/collector"
)

// Fetcher produces the result for one source. Implementations must not
// panic and should return promptly once ctx is done.
type Fetcher interface {
	Source() model.SourceID
	Fetch(ctx context.Context, sessionID string) model.SourceResult
}

// TimeoutReporter is implemented by fetchers that know their own timeout.
// The collector uses the largest one as its deadline when none is set.
type TimeoutReporter interface {
	Timeout() time.Duration
}

// Option applies a configuration option to the Collector.
type Option func(*Collector)

// WithDeadline bounds the whole parallel phase.
func WithDeadline(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.deadline = d
		}
	}
}

// WithMaxConcurrent caps how many fetchers run at the same time.
func WithMaxConcurrent(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxConcurrent = n
		}
	}
}

// WithLogger sets a custom logger for the collector.
func WithLogger(l logger.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the time source used to stamp missing results.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTracer sets the tracer. The global provider is used by default.
func WithTracer(t trace.Tracer) Option {
	return func(c *Collector) {
		if t != nil {
			c.tracer = t
		}
	}
}

// Collector is the fan-out/fan-in point of a build.
type Collector struct {
	deadline      time.Duration
	maxConcurrent int
	logger        logger.Logger
	now           func() time.Time
	tracer        trace.Tracer
}

// New creates a Collector. Without WithDeadline the deadline is the largest
// fetcher timeout, falling back to 30s.
func New(opts ...Option) *Collector {
	c := &Collector{
		maxConcurrent: defaultMaxConcurrent,
		logger:        logger.Nop(),
		now:           time.Now,
		tracer:        otel.Tracer(tracerName),
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

type indexed struct {
	i int
	r model.SourceResult
}

// Collect runs every fetcher concurrently and waits until all of them have
// answered or the deadline passes, whichever comes first. Fetchers still
// pending at the deadline are marked missing and their context is cancelled.
// When ctx itself ends first the pending results say so instead.
// A failing fetcher never cancels its siblings.
func (c *Collector) Collect(ctx context.Context, sessionID string, fetchers []Fetcher) []model.SourceResult {
	deadline := c.deadlineFor(fetchers)
	ctx, span := c.tracer.Start(ctx, "collector.Collect", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int("fetchers", len(fetchers)),
		attribute.String("deadline", deadline.String()),
	))
	defer span.End()

	start := c.now()
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// Buffered so that abandoned fetchers can always deliver and exit.
	ch := make(chan indexed, len(fetchers))
	go func() {
		var g errgroup.Group
		g.SetLimit(c.maxConcurrent)
		for i, f := range fetchers {
			g.Go(func() error {
				ch <- indexed{i: i, r: c.run(runCtx, sessionID, f)}
				return nil
			})
		}
		_ = g.Wait()
	}()

	results := make([]model.SourceResult, len(fetchers))
	done := make([]bool, len(fetchers))
	pending := len(fetchers)

wait:
	for pending > 0 {
		select {
		case in := <-ch:
			results[in.i] = in.r
			done[in.i] = true
			pending--
		case <-runCtx.Done():
			break wait
		}
	}

	if pending > 0 {
		now := c.now()
		detail := fmt.Sprintf("no response within %s", deadline)
		if err := ctx.Err(); err != nil {
			detail = fmt.Sprintf("cancelled by caller: %v", err)
		}
		for i, f := range fetchers {
			if done[i] {
				continue
			}
			results[i] = model.SourceResult{
				SourceID:    f.Source(),
				Status:      model.StatusMissing,
				FetchedAt:   now,
				ErrorDetail: detail,
				Latency:     now.Sub(start),
			}
			c.logger.Warn(ctx, "abandoning pending fetcher",
				logger.String("session_id", sessionID),
				logger.String("source_id", string(f.Source())),
				logger.String("reason", detail),
			)
		}
	}

	span.SetAttributes(attribute.Int("missing", pending))
	return results
}

// run invokes one fetcher, turning panics into error results and pinning
// the source id to the fetcher that produced it.
func (c *Collector) run(ctx context.Context, sessionID string, f Fetcher) (res model.SourceResult) {
	start := c.now()
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error(ctx, "fetcher panicked",
				logger.String("session_id", sessionID),
				logger.String("source_id", string(f.Source())),
				logger.Any("panic", p),
			)
			res = model.SourceResult{
				SourceID:    f.Source(),
				Status:      model.StatusError,
				FetchedAt:   c.now(),
				ErrorDetail: fmt.Sprintf("fetcher panicked: %v", p),
				Latency:     c.now().Sub(start),
			}
		}
	}()

	res = f.Fetch(ctx, sessionID)
	res.SourceID = f.Source()
	if res.Status == "" {
		res.Status = model.StatusError
		res.ErrorDetail = "fetcher returned no status"
	}
	if res.FetchedAt.IsZero() {
		res.FetchedAt = c.now()
	}
	if res.Latency == 0 {
		res.Latency = c.now().Sub(start)
	}
	return res
}

func (c *Collector) deadlineFor(fetchers []Fetcher) time.Duration {
	if c.deadline > 0 {
		return c.deadline
	}
	var longest time.Duration
	for _, f := range fetchers {
		if tr, ok := f.(TimeoutReporter); ok && tr.Timeout() > longest {
			longest = tr.Timeout()
		}
	}
	if longest > 0 {
		return longest
	}
	return defaultDeadline
}
