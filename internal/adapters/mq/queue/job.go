package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/findna/internal/domain/model"
)

// Kind tells the worker which write a job performs.
type Kind string

// Job kinds.
const (
	KindProfile Kind = "profile"
	KindContext Kind = "context"
)

// Job is one persistence write. The producer keeps the pointer as a handle
// and awaits the outcome with Wait.
type Job struct {
	ID         string
	Kind       Kind
	SessionID  string
	Profile    model.FinancialProfile
	Context    model.NarrativeContext
	EnqueuedAt time.Time

	once sync.Once
	done chan struct{}
	err  error
}

func newJob(kind Kind, sessionID string) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		SessionID:  sessionID,
		EnqueuedAt: time.Now(),
		done:       make(chan struct{}),
	}
}

// NewProfileJob creates a job that upserts a copy of p.
func NewProfileJob(p model.FinancialProfile) *Job {
	j := newJob(KindProfile, p.SessionID)
	j.Profile = p.Clone()
	return j
}

// NewContextJob creates a job that upserts the narrative context of a session.
func NewContextJob(sessionID string, c model.NarrativeContext) *Job {
	j := newJob(KindContext, sessionID)
	j.Context = c
	return j
}

// Complete records the outcome. Only the first call has an effect.
func (j *Job) Complete(err error) {
	j.once.Do(func() {
		j.err = err
		close(j.done)
	})
}

// Done is closed once the job has completed.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job completes or ctx is done.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
