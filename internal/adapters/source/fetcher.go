package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/findna/internal/domain/model"
	"github.com/okian/findna/pkg/logger"
	"github.com/okian/findna/pkg/metrics"
	"github.com/okian/findna/pkg/retry"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default fetcher configuration constants.
const (
	defaultTimeout             = 30 * time.Second
	defaultBreakerFailureRatio = 0.5
	defaultBreakerMinRequests  = 3
	defaultBreakerOpenTimeout  = 30 * time.Second
	tracerName                 = "github.com/okian/findna/internal/adapters/source"

	actionLogin = "login"
)

// BreakerSettings control when a source stops being called.
type BreakerSettings struct {
	// FailureRatio trips the breaker once reached, after MinRequests calls.
	FailureRatio float64
	MinRequests  uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// Disabled turns the breaker into a pass-through.
	Disabled bool
}

// DefaultBreakerSettings trips at half of at least three calls failing.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureRatio: defaultBreakerFailureRatio,
		MinRequests:  defaultBreakerMinRequests,
		OpenTimeout:  defaultBreakerOpenTimeout,
	}
}

// Fetcher turns one capability into SourceResults. It never returns an
// error: every failure becomes a status on the result.
type Fetcher struct {
	id              model.SourceID
	capability      Capability
	timeout         time.Duration
	policy          retry.Policy
	breakerSettings BreakerSettings
	breaker         *gobreaker.CircuitBreaker
	logger          logger.Logger
	now             func() time.Time
	tracer          trace.Tracer
}

// NewFetcher creates a Fetcher for id backed by c.
func NewFetcher(id model.SourceID, c Capability, opts ...Option) (*Fetcher, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, id)
	}
	if c == nil {
		return nil, ErrNilCapability
	}

	f := &Fetcher{
		id:              id,
		capability:      c,
		timeout:         defaultTimeout,
		policy:          retry.DefaultPolicy(),
		breakerSettings: DefaultBreakerSettings(),
		logger:          logger.Nop(),
		now:             time.Now,
		tracer:          otel.Tracer(tracerName),
	}

	// Apply all options
	for _, opt := range opts {
		opt(f)
	}

	if !f.breakerSettings.Disabled {
		f.breaker = f.newBreaker()
	}
	return f, nil
}

func (f *Fetcher) newBreaker() *gobreaker.CircuitBreaker {
	s := f.breakerSettings
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(f.id),
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerState(name, int(to))
			f.logger.Warn(context.Background(), "source breaker changed state",
				logger.String("source_id", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
		// Session scoped answers and cancellations say nothing about upstream
		// health, and the breaker is shared by every session.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrAuthRequired) ||
				errors.Is(err, ErrNoFixture) ||
				errors.Is(err, ErrMalformedPayload) ||
				errors.Is(err, context.Canceled)
		},
	})
}

// Source returns the source this fetcher serves.
func (f *Fetcher) Source() model.SourceID { return f.id }

// Timeout returns the per-source timeout.
func (f *Fetcher) Timeout() time.Duration { return f.timeout }

// Fetch retrieves the payload for sessionID. Auth requests are returned as
// StatusAuthRequired without retrying, undecodable documents as
// StatusIncomplete and everything else that fails as StatusError.
func (f *Fetcher) Fetch(ctx context.Context, sessionID string) model.SourceResult {
	start := f.now()
	ctx, span := f.tracer.Start(ctx, "source.Fetch", trace.WithAttributes(
		attribute.String("source.id", string(f.id)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, attempts, err := retry.Do(ctx, f.policy, func(ctx context.Context) (Response, error) {
		return f.call(ctx, sessionID)
	}, retry.WithNotify(func(attempt int, err error, wait time.Duration) {
		metrics.RecordSourceRetry(string(f.id))
		f.logger.Warn(ctx, "source fetch attempt failed",
			logger.String("source_id", string(f.id)),
			logger.String("session_id", sessionID),
			logger.Int("attempt", attempt),
			logger.Duration("wait", wait),
			logger.Error(err),
		)
	}))

	res := f.resolve(ctx, resp, attempts, err)
	res.SourceID = f.id
	res.Attempts = attempts
	res.FetchedAt = f.now()
	res.Latency = res.FetchedAt.Sub(start)

	span.SetAttributes(
		attribute.String("source.status", string(res.Status)),
		attribute.Int("source.attempts", attempts),
	)
	if res.Status == model.StatusError {
		span.SetStatus(codes.Error, res.ErrorDetail)
	}
	metrics.RecordSourceFetch(string(f.id), string(res.Status), res.Latency.Seconds())

	f.logger.Info(ctx, "source fetch finished",
		logger.String("source_id", string(f.id)),
		logger.String("session_id", sessionID),
		logger.String("status", string(res.Status)),
		logger.Int("attempts", attempts),
		logger.Duration("latency", res.Latency),
	)
	return res
}

// call runs one attempt through the breaker. An open breaker and the
// non-transient failures stop the retry loop.
func (f *Fetcher) call(ctx context.Context, sessionID string) (Response, error) {
	if f.breaker == nil {
		return f.capability.Fetch(ctx, sessionID)
	}

	out, err := f.breaker.Execute(func() (interface{}, error) {
		return f.capability.Fetch(ctx, sessionID)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return Response{}, retry.Permanent(fmt.Errorf("%w: breaker %v", ErrUpstream, err))
	case errors.Is(err, ErrAuthRequired), errors.Is(err, ErrMalformedPayload):
		return Response{}, retry.Permanent(err)
	case err != nil:
		return Response{}, err
	}

	resp, _ := out.(Response)
	return resp, nil
}

func (f *Fetcher) resolve(ctx context.Context, resp Response, attempts int, err error) model.SourceResult {
	switch {
	case errors.Is(err, ErrAuthRequired):
		return model.SourceResult{
			Status:      model.StatusAuthRequired,
			ErrorDetail: err.Error(),
			Action:      &model.ActionRequired{Kind: actionLogin},
		}
	case errors.Is(err, ErrMalformedPayload):
		return model.SourceResult{Status: model.StatusIncomplete, ErrorDetail: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return model.SourceResult{
			Status:      model.StatusError,
			ErrorDetail: fmt.Sprintf("timed out after %s and %d attempt(s)", f.timeout, attempts),
		}
	case err != nil:
		return model.SourceResult{
			Status:      model.StatusError,
			ErrorDetail: fmt.Sprintf("failed after %d attempt(s): %v", attempts, err),
		}
	case resp.AuthLink != "":
		return model.SourceResult{
			Status:      model.StatusAuthRequired,
			ErrorDetail: ErrAuthRequired.Error(),
			Action:      &model.ActionRequired{Kind: actionLogin, Link: resp.AuthLink},
		}
	}

	payload, err := decodePayload(f.id, resp.Payload)
	if err != nil {
		return model.SourceResult{Status: model.StatusIncomplete, ErrorDetail: err.Error()}
	}
	if m, ok := payload.(model.Masker); ok {
		m.MaskSensitive()
	}
	f.logger.Debug(ctx, "source payload decoded",
		logger.String("source_id", string(f.id)),
		logger.Any("payload", payload),
	)
	return model.SourceResult{Status: model.StatusOK, Payload: payload}
}

// decodePayload decodes raw into the typed payload of id.
func decodePayload(id model.SourceID, raw []byte) (any, error) {
	payload := model.NewPayload(id)
	if payload == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, id)
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return payload, nil
}
