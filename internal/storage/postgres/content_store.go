package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// ContentStore implements discovery.ContentStore over Postgres.
//
// Expected schema:
//
//	CREATE TABLE discovered_contents (
//	    id TEXT PRIMARY KEY,
//	    run_id TEXT NOT NULL,
//	    canonical_url TEXT NOT NULL,
//	    domain TEXT NOT NULL DEFAULT '',
//	    title TEXT NOT NULL DEFAULT '',
//	    score INT NOT NULL,
//	    quality_reason TEXT NOT NULL DEFAULT '',
//	    text TEXT NOT NULL,
//	    blob_uri TEXT NOT NULL DEFAULT '',
//	    provenance TEXT[] NOT NULL DEFAULT '{}',
//	    created_at TIMESTAMPTZ NOT NULL,
//	    UNIQUE (run_id, canonical_url)
//	);
type ContentStore struct {
	pool Querier
}

// NewContentStore builds a ContentStore over pool.
func NewContentStore(pool Querier) *ContentStore {
	return &ContentStore{pool: pool}
}

const contentColumns = `id, run_id, canonical_url, domain, title, score,
quality_reason, text, blob_uri, provenance, created_at`

// CreateContent inserts a content record and returns its ID.
func (s *ContentStore) CreateContent(ctx context.Context, c discovery.DiscoveredContent) (string, error) {
	query := `
INSERT INTO discovered_contents (` + contentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING id`
	var id string
	err := s.pool.QueryRow(ctx, query,
		c.ID, c.RunID, c.CanonicalURL, c.Domain, c.Title, c.Score,
		c.QualityReason, c.Text, c.BlobURI, c.Provenance, c.Created).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert content: %w", err)
	}
	return id, nil
}

// ContentByURL finds content by canonical URL within a run.
func (s *ContentStore) ContentByURL(ctx context.Context, runID, canonicalURL string) (discovery.DiscoveredContent, error) {
	query := `SELECT ` + contentColumns + ` FROM discovered_contents WHERE run_id = $1 AND canonical_url = $2`
	var c discovery.DiscoveredContent
	err := s.pool.QueryRow(ctx, query, runID, canonicalURL).Scan(
		&c.ID, &c.RunID, &c.CanonicalURL, &c.Domain, &c.Title, &c.Score,
		&c.QualityReason, &c.Text, &c.BlobURI, &c.Provenance, &c.Created)
	if errors.Is(err, pgx.ErrNoRows) {
		return discovery.DiscoveredContent{}, discovery.ErrNotFound
	}
	if err != nil {
		return discovery.DiscoveredContent{}, fmt.Errorf("scan content: %w", err)
	}
	return c, nil
}

// ContentExists reports whether a content record exists.
func (s *ContentStore) ContentExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM discovered_contents WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check content exists: %w", err)
	}
	return exists, nil
}
