package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// SummaryStore implements discovery.SummaryStore over Postgres. Summaries
// are immutable; conflicting writes are ignored.
//
// Expected schema:
//
//	CREATE TABLE run_summaries (
//	    run_id TEXT PRIMARY KEY,
//	    topic TEXT NOT NULL,
//	    started_at TIMESTAMPTZ NOT NULL,
//	    finished_at TIMESTAMPTZ NOT NULL,
//	    attempts JSONB NOT NULL DEFAULT '{}',
//	    duplicates INT NOT NULL DEFAULT 0,
//	    saved INT NOT NULL DEFAULT 0,
//	    denied INT NOT NULL DEFAULT 0,
//	    errors JSONB NOT NULL DEFAULT '{}'
//	);
type SummaryStore struct {
	pool Querier
}

// NewSummaryStore builds a SummaryStore over pool.
func NewSummaryStore(pool Querier) *SummaryStore {
	return &SummaryStore{pool: pool}
}

// SaveSummary inserts a run summary; the first write wins.
func (s *SummaryStore) SaveSummary(ctx context.Context, sum discovery.RunSummary) error {
	attempts, err := json.Marshal(sum.Attempts)
	if err != nil {
		return fmt.Errorf("marshal attempts: %w", err)
	}
	errHist, err := json.Marshal(sum.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	query := `
INSERT INTO run_summaries (run_id, topic, started_at, finished_at, attempts, duplicates, saved, denied, errors)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (run_id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query,
		sum.RunID, sum.Topic, sum.Started, sum.Finished,
		attempts, sum.Duplicates, sum.Saved, sum.Denied, errHist); err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// GetSummary returns a stored run summary.
func (s *SummaryStore) GetSummary(ctx context.Context, runID string) (discovery.RunSummary, error) {
	query := `
SELECT run_id, topic, started_at, finished_at, attempts, duplicates, saved, denied, errors
FROM run_summaries WHERE run_id = $1`

	var sum discovery.RunSummary
	var attempts, errHist []byte
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&sum.RunID, &sum.Topic, &sum.Started, &sum.Finished,
		&attempts, &sum.Duplicates, &sum.Saved, &sum.Denied, &errHist)
	if errors.Is(err, pgx.ErrNoRows) {
		return discovery.RunSummary{}, discovery.ErrNotFound
	}
	if err != nil {
		return discovery.RunSummary{}, fmt.Errorf("scan summary: %w", err)
	}
	if err := json.Unmarshal(attempts, &sum.Attempts); err != nil {
		return discovery.RunSummary{}, fmt.Errorf("decode attempts: %w", err)
	}
	if err := json.Unmarshal(errHist, &sum.Errors); err != nil {
		return discovery.RunSummary{}, fmt.Errorf("decode errors: %w", err)
	}
	return sum, nil
}
