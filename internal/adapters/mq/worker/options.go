package worker

import (
	"time"

	"github.com/okian/findna/pkg/logger"
	"github.com/okian/findna/pkg/retry"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithRetryPolicy sets how a failed write is retried.
func WithRetryPolicy(p retry.Policy) Option {
	return func(w *InMemoryWorker) {
		w.policy = p
	}
}

// WithTimeout bounds every single write attempt.
func WithTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithBackend names the store in metrics and logs.
func WithBackend(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.backend = name
		}
	}
}
