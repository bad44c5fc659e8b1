package source

import (
	"time"

	"github.com/okian/findna/pkg/logger"
	"github.com/okian/findna/pkg/retry"
	"go.opentelemetry.io/otel/trace"
)

// Option applies a configuration option to the Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds one whole fetch including retries.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRetryPolicy sets the retry policy applied to every call.
func WithRetryPolicy(p retry.Policy) Option {
	return func(f *Fetcher) {
		f.policy = p
	}
}

// WithBreaker configures the per-source circuit breaker.
func WithBreaker(s BreakerSettings) Option {
	return func(f *Fetcher) {
		f.breakerSettings = s
	}
}

// WithLogger sets a custom logger for the fetcher.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// WithTracer sets the tracer. The global provider is used by default.
func WithTracer(t trace.Tracer) Option {
	return func(f *Fetcher) {
		if t != nil {
			f.tracer = t
		}
	}
}
