// Package dedupe keeps at most one profile build in flight per session.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

const defaultMaxInFlight = 1024

// Guard tracks the sessions whose builds are running.
type Guard interface {
	// Acquire marks sessionID as in flight. It fails with ErrBuildInProgress
	// when the session is already being built and with ErrTooManyBuilds when
	// the guard is full. The returned release is safe to call more than once.
	Acquire(ctx context.Context, sessionID string) (release func(), err error)

	// InFlight reports whether sessionID is being built.
	InFlight(sessionID string) bool

	Size() int64
}

type inMemoryGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	maxSize  int // 0 or negative = unbounded
	size     atomic.Int64
}

// NewInMemoryGuard creates a guard with configuration options.
func NewInMemoryGuard(opts ...Option) Guard {
	g := &inMemoryGuard{
		maxSize: defaultMaxInFlight,
	}

	// Apply all options
	for _, opt := range opts {
		opt(g)
	}

	g.inFlight = make(map[string]struct{})
	return g
}

func (g *inMemoryGuard) Acquire(ctx context.Context, sessionID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.inFlight[sessionID]; exists {
		return nil, fmt.Errorf("%w: session %s", ErrBuildInProgress, sessionID)
	}
	if g.maxSize > 0 && len(g.inFlight) >= g.maxSize {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManyBuilds, g.maxSize)
	}

	g.inFlight[sessionID] = struct{}{}
	g.size.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() { g.release(sessionID) })
	}, nil
}

func (g *inMemoryGuard) release(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.inFlight[sessionID]; exists {
		delete(g.inFlight, sessionID)
		g.size.Add(-1)
	}
}

func (g *inMemoryGuard) InFlight(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, exists := g.inFlight[sessionID]
	return exists
}

// Size returns the number of builds in flight.
func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}
