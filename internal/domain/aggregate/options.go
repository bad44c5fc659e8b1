package aggregate

import (
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/okian/findna/internal/domain/model"
	"github.com/okian/findna/pkg/logger"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithExpectedSources sets the sources a complete build should contain.
func WithExpectedSources(ids []model.SourceID) Option {
	return func(a *Aggregator) {
		if len(ids) > 0 {
			a.expected = slices.Clone(ids)
		}
	}
}

// WithValidator replaces the structural validator.
func WithValidator(v *validator.Validate) Option {
	return func(a *Aggregator) {
		if v != nil {
			a.validate = v
		}
	}
}

// WithLogger sets a custom logger for the aggregator.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock sets the time source used for created_at.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}
