package repository

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/okian/findna/internal/domain/model"
)

// MemoryStore keeps profiles in process. Profiles are copied on the way in
// and out so callers never share maps with the store.
type MemoryStore struct {
	mu             sync.RWMutex
	root           *node
	profiles       map[string]model.FinancialProfile
	contexts       map[string]model.NarrativeContext
	attentionBelow float64
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		profiles:       make(map[string]model.FinancialProfile),
		contexts:       make(map[string]model.NarrativeContext),
		attentionBelow: DefaultAttentionThreshold,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Upsert implements Store.Upsert in O(log n) expected time.
func (s *MemoryStore) Upsert(ctx context.Context, p model.FinancialProfile) error {
	if err := checkSession(p.SessionID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p = p.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.profiles[p.SessionID]; ok {
		s.root = deleteNode(s.root, old.SessionID, old.DisciplineScore)
	}
	s.profiles[p.SessionID] = p
	s.root = insert(s.root, p.SessionID, p.DisciplineScore)
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (model.FinancialProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[sessionID]
	if !ok {
		return model.FinancialProfile{}, ErrNotFound
	}
	return p.Clone(), nil
}

// UpsertContext implements Store.UpsertContext.
func (s *MemoryStore) UpsertContext(ctx context.Context, sessionID string, c model.NarrativeContext) error {
	if err := checkSession(sessionID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[sessionID] = cloneContext(c)
	return nil
}

// GetContext implements Store.GetContext.
func (s *MemoryStore) GetContext(ctx context.Context, sessionID string) (model.NarrativeContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contexts[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneContext(c), nil
}

// Top implements Ranker.Top.
func (s *MemoryStore) Top(ctx context.Context, n int) ([]Entry, error) {
	if err := checkLimit(n); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, min(n, len(s.profiles)))
	collectTop(s.root, n, s.profiles, &out)
	assignRanks(out)
	return out, nil
}

// ByDisciplineRange implements Ranker.ByDisciplineRange.
func (s *MemoryStore) ByDisciplineRange(ctx context.Context, lo, hi float64) ([]Entry, error) {
	if err := checkRange(lo, hi); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Entry{}
	collectRange(s.root, lo, hi, s.profiles, &out)
	assignRanks(out)
	return out, nil
}

// NeedsAttention implements Ranker.NeedsAttention.
func (s *MemoryStore) NeedsAttention(ctx context.Context, n int) ([]Entry, error) {
	if err := checkLimit(n); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Entry{}
	collectBottom(s.root, n, s.attentionBelow, s.profiles, &out)
	assignRanks(out)
	return out, nil
}

// Count implements Ranker.Count.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles), nil
}

// cloneContext copies the nested maps and slices of a narrative context.
func cloneContext(c model.NarrativeContext) model.NarrativeContext {
	if c == nil {
		return nil
	}
	out := make(model.NarrativeContext, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case model.NarrativeContext:
		return cloneContext(t)
	case map[string]any:
		return map[string]any(cloneContext(t))
	case map[string]string:
		return maps.Clone(t)
	case []string:
		return slices.Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Ranker = (*MemoryStore)(nil)
)
