// Package repository persists financial profiles and their narrative
// context keyed by session id, and answers ranking queries over them.
package repository

import (
	"context"
	"time"

	"github.com/okian/findna/internal/domain/model"
)

// Entry is one row of a ranking query.
type Entry struct {
	Rank             int               `json:"rank"`
	SessionID        string            `json:"session_id"`
	UserID           string            `json:"user_id"`
	DisciplineScore  float64           `json:"discipline_score"`
	TotalNetWorth    float64           `json:"total_net_worth"`
	RiskProfile      model.RiskProfile `json:"risk_profile"`
	DataQualityScore float64           `json:"data_quality_score"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Store is the persistence gateway. Upserts replace the whole document for
// a session, so repeating one is harmless.
type Store interface {
	// Upsert stores p under p.SessionID, replacing any previous profile.
	Upsert(ctx context.Context, p model.FinancialProfile) error
	// Get returns the profile for sessionID or ErrNotFound.
	Get(ctx context.Context, sessionID string) (model.FinancialProfile, error)
	// UpsertContext stores the narrative context for sessionID.
	UpsertContext(ctx context.Context, sessionID string, c model.NarrativeContext) error
	// GetContext returns the narrative context for sessionID or ErrNotFound.
	GetContext(ctx context.Context, sessionID string) (model.NarrativeContext, error)
}

// Ranker answers queries across all stored profiles. Rank is the position
// within the result; equal discipline scores share a rank.
type Ranker interface {
	// Top returns up to n profiles by discipline score, best first.
	Top(ctx context.Context, n int) ([]Entry, error)
	// ByDisciplineRange returns profiles whose score lies in [lo, hi], best first.
	ByDisciplineRange(ctx context.Context, lo, hi float64) ([]Entry, error)
	// NeedsAttention returns up to n profiles below the attention threshold, worst first.
	NeedsAttention(ctx context.Context, n int) ([]Entry, error)
	// Count returns the number of stored profiles.
	Count(ctx context.Context) (int, error)
}

// DefaultAttentionThreshold is the discipline score below which a profile
// needs attention.
const DefaultAttentionThreshold = 50.0

func entryOf(p *model.FinancialProfile) Entry {
	return Entry{
		SessionID:        p.SessionID,
		UserID:           p.UserID,
		DisciplineScore:  p.DisciplineScore,
		TotalNetWorth:    p.TotalNetWorth,
		RiskProfile:      p.RiskProfile,
		DataQualityScore: p.DataQualityScore,
		CreatedAt:        p.CreatedAt,
	}
}

func checkSession(sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	return nil
}

func checkLimit(n int) error {
	if n < 1 {
		return ErrInvalidLimit
	}
	return nil
}

func checkRange(lo, hi float64) error {
	if lo < 0 || hi > 100 || lo > hi {
		return ErrInvalidRange
	}
	return nil
}

// assignRanks gives equal scores the same rank and the next score the next
// rank, in result order.
func assignRanks(entries []Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].DisciplineScore != entries[i-1].DisciplineScore {
			rank++
		}
		entries[i].Rank = rank
	}
}
