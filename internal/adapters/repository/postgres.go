package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // postgres driver
	"github.com/okian/findna/internal/domain/model"
)

const (
	upsertProfileSQL = `INSERT INTO financial_profiles (session_id, user_id, discipline_score, total_net_worth, risk_profile, data_quality_score, created_at, document)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (session_id) DO UPDATE SET
	user_id = EXCLUDED.user_id,
	discipline_score = EXCLUDED.discipline_score,
	total_net_worth = EXCLUDED.total_net_worth,
	risk_profile = EXCLUDED.risk_profile,
	data_quality_score = EXCLUDED.data_quality_score,
	created_at = EXCLUDED.created_at,
	document = EXCLUDED.document`

	selectProfileSQL = `SELECT document FROM financial_profiles WHERE session_id = $1`

	upsertContextSQL = `INSERT INTO financial_contexts (session_id, document) VALUES ($1, $2)
ON CONFLICT (session_id) DO UPDATE SET document = EXCLUDED.document`

	selectContextSQL = `SELECT document FROM financial_contexts WHERE session_id = $1`

	entryColumns = `session_id, user_id, discipline_score, total_net_worth, risk_profile, data_quality_score, created_at`

	topSQL = `SELECT ` + entryColumns + ` FROM financial_profiles
ORDER BY discipline_score DESC, session_id ASC LIMIT $1`

	rangeSQL = `SELECT ` + entryColumns + ` FROM financial_profiles
WHERE discipline_score BETWEEN $1 AND $2
ORDER BY discipline_score DESC, session_id ASC`

	attentionSQL = `SELECT ` + entryColumns + ` FROM financial_profiles
WHERE discipline_score < $1
ORDER BY discipline_score ASC, session_id DESC LIMIT $2`

	countSQL = `SELECT count(*) FROM financial_profiles`
)

// Schema creates the tables PostgresStore expects.
const Schema = `CREATE TABLE IF NOT EXISTS financial_profiles (
	session_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	discipline_score DOUBLE PRECISION NOT NULL,
	total_net_worth DOUBLE PRECISION NOT NULL,
	risk_profile TEXT NOT NULL,
	data_quality_score DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	document JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS financial_profiles_discipline_idx ON financial_profiles (discipline_score DESC, session_id);
CREATE TABLE IF NOT EXISTS financial_contexts (
	session_id TEXT PRIMARY KEY,
	document JSONB NOT NULL
);`

// PostgresStore persists profiles as JSONB documents with the ranking
// columns alongside.
type PostgresStore struct {
	db             *sql.DB
	attentionBelow float64
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, attentionBelow: DefaultAttentionThreshold}
}

// OpenPostgres connects to dsn, checks the connection and applies Schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return NewPostgresStore(db), nil
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Upsert implements Store.Upsert.
func (s *PostgresStore) Upsert(ctx context.Context, p model.FinancialProfile) error {
	if err := checkSession(p.SessionID); err != nil {
		return err
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, upsertProfileSQL,
		p.SessionID, p.UserID, p.DisciplineScore, p.TotalNetWorth,
		string(p.RiskProfile), p.DataQualityScore, p.CreatedAt, doc,
	); err != nil {
		return fmt.Errorf("postgres upsert %s: %w", p.SessionID, err)
	}
	return nil
}

// Get implements Store.Get.
func (s *PostgresStore) Get(ctx context.Context, sessionID string) (model.FinancialProfile, error) {
	var p model.FinancialProfile
	if err := s.getDocument(ctx, selectProfileSQL, sessionID, &p); err != nil {
		return model.FinancialProfile{}, err
	}
	return p, nil
}

// UpsertContext implements Store.UpsertContext.
func (s *PostgresStore) UpsertContext(ctx context.Context, sessionID string, c model.NarrativeContext) error {
	if err := checkSession(sessionID); err != nil {
		return err
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, upsertContextSQL, sessionID, doc); err != nil {
		return fmt.Errorf("postgres upsert context %s: %w", sessionID, err)
	}
	return nil
}

// GetContext implements Store.GetContext.
func (s *PostgresStore) GetContext(ctx context.Context, sessionID string) (model.NarrativeContext, error) {
	var c model.NarrativeContext
	if err := s.getDocument(ctx, selectContextSQL, sessionID, &c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) getDocument(ctx context.Context, query, sessionID string, into any) error {
	var doc []byte
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres get %s: %w", sessionID, err)
	}
	if err := json.Unmarshal(doc, into); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// Top implements Ranker.Top.
func (s *PostgresStore) Top(ctx context.Context, n int) ([]Entry, error) {
	if err := checkLimit(n); err != nil {
		return nil, err
	}
	return s.entries(ctx, topSQL, n)
}

// ByDisciplineRange implements Ranker.ByDisciplineRange.
func (s *PostgresStore) ByDisciplineRange(ctx context.Context, lo, hi float64) ([]Entry, error) {
	if err := checkRange(lo, hi); err != nil {
		return nil, err
	}
	return s.entries(ctx, rangeSQL, lo, hi)
}

// NeedsAttention implements Ranker.NeedsAttention.
func (s *PostgresStore) NeedsAttention(ctx context.Context, n int) ([]Entry, error) {
	if err := checkLimit(n); err != nil {
		return nil, err
	}
	return s.entries(ctx, attentionSQL, s.attentionBelow, n)
}

// Count implements Ranker.Count.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres count: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) entries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		var risk string
		if err := rows.Scan(&e.SessionID, &e.UserID, &e.DisciplineScore, &e.TotalNetWorth,
			&risk, &e.DataQualityScore, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres scan: %w", err)
		}
		e.RiskProfile = model.RiskProfile(risk)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres rows: %w", err)
	}
	assignRanks(out)
	return out, nil
}

var (
	_ Store  = (*PostgresStore)(nil)
	_ Ranker = (*PostgresStore)(nil)
)
