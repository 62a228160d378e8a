package postgres

import (
	"context"
	"fmt"
	"time"
)

// SeenStore implements discovery.SeenStore over Postgres. The table is a pure
// ledger; nothing foreign-keys into it, so rows can be pruned freely.
//
// Expected schema:
//
//	CREATE TABLE seen_urls (
//	    run_id TEXT NOT NULL,
//	    url_hash TEXT NOT NULL,
//	    first_seen TIMESTAMPTZ NOT NULL,
//	    last_seen TIMESTAMPTZ NOT NULL,
//	    hit_count BIGINT NOT NULL DEFAULT 1,
//	    PRIMARY KEY (run_id, url_hash)
//	);
type SeenStore struct {
	pool Querier
}

// NewSeenStore builds a SeenStore over pool.
func NewSeenStore(pool Querier) *SeenStore {
	return &SeenStore{pool: pool}
}

// Seen reports whether a hash was marked within a run scope.
func (s *SeenStore) Seen(ctx context.Context, runID, urlHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM seen_urls WHERE run_id = $1 AND url_hash = $2)`,
		runID, urlHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return exists, nil
}

// MarkSeen upserts a ledger row, bumping hit counts on repeats.
func (s *SeenStore) MarkSeen(ctx context.Context, runID, urlHash string, at time.Time) error {
	query := `
INSERT INTO seen_urls (run_id, url_hash, first_seen, last_seen, hit_count)
VALUES ($1, $2, $3, $3, 1)
ON CONFLICT (run_id, url_hash) DO UPDATE
SET last_seen = EXCLUDED.last_seen, hit_count = seen_urls.hit_count + 1`
	if _, err := s.pool.Exec(ctx, query, runID, urlHash, at); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// Prune deletes ledger rows older than cutoff, across all runs.
func (s *SeenStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM seen_urls WHERE last_seen < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune seen: %w", err)
	}
	return tag.RowsAffected(), nil
}
