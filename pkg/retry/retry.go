// Package retry wraps operations with an exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default policy values.
const (
	defaultMaxAttempts     = 3
	defaultInitialInterval = time.Second
	defaultMaxInterval     = 10 * time.Second
	defaultMultiplier      = 2.0
	defaultJitter          = 0.1
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts counts the first call. Values below 1 mean a single attempt.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Jitter is the randomization factor applied to every wait, in [0,1).
	Jitter float64
}

// DefaultPolicy returns three attempts with exponential waits starting at one second.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     defaultMaxAttempts,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
		Multiplier:      defaultMultiplier,
		Jitter:          defaultJitter,
	}
}

func (p Policy) attempts() uint {
	if p.MaxAttempts < 1 {
		return 1
	}
	return uint(p.MaxAttempts)
}

func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	if p.Jitter >= 0 && p.Jitter < 1 {
		b.RandomizationFactor = p.Jitter
	}
	return b
}

// Notify is called before every wait with the attempt that just failed.
type Notify func(attempt int, err error, wait time.Duration)

// Option customizes a single Do call.
type Option func(*settings)

type settings struct {
	notify Notify
}

// WithNotify registers a callback fired between attempts.
func WithNotify(fn Notify) Option {
	return func(s *settings) {
		if fn != nil {
			s.notify = fn
		}
	}
}

// Permanent marks err so that Do stops immediately and returns it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return err
	}
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a permanent error, the policy runs
// out of attempts or ctx is done. It reports how many attempts were made.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), opts ...Option) (T, int, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	attempts := 0
	operation := func() (T, error) {
		attempts++
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}
		return op(ctx)
	}

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(p.attempts()),
	}
	if s.notify != nil {
		retryOpts = append(retryOpts, backoff.WithNotify(func(err error, wait time.Duration) {
			s.notify(attempts, err, wait)
		}))
	}

	res, err := backoff.Retry(ctx, operation, retryOpts...)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return res, attempts, err
}
