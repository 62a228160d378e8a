package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// CitationStore implements discovery.CitationStore over Postgres.
//
// Expected schema:
//
//	CREATE TABLE citations (
//	    id TEXT PRIMARY KEY,
//	    page_id TEXT NOT NULL REFERENCES monitored_pages(id),
//	    run_id TEXT NOT NULL,
//	    source_number INT NOT NULL,
//	    url TEXT NOT NULL,
//	    title TEXT NOT NULL DEFAULT '',
//	    context TEXT NOT NULL DEFAULT '',
//	    score INT,
//	    priority INT,
//	    verification_status TEXT NOT NULL,
//	    scan_status TEXT NOT NULL,
//	    relevance_decision TEXT NOT NULL,
//	    content_id TEXT NOT NULL DEFAULT '',
//	    rescan BOOLEAN NOT NULL DEFAULT FALSE,
//	    extracted_text TEXT NOT NULL DEFAULT '',
//	    error_text TEXT NOT NULL DEFAULT '',
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
type CitationStore struct {
	pool Querier
}

// NewCitationStore builds a CitationStore over pool.
func NewCitationStore(pool Querier) *CitationStore {
	return &CitationStore{pool: pool}
}

const citationColumns = `id, page_id, run_id, source_number, url, title, context,
score, priority, verification_status, scan_status, relevance_decision,
content_id, rescan, extracted_text, error_text, created_at, updated_at`

// CreateCitations inserts a batch of citations.
func (s *CitationStore) CreateCitations(ctx context.Context, citations []discovery.Citation) error {
	query := `
INSERT INTO citations (` + citationColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	for _, c := range citations {
		if _, err := s.pool.Exec(ctx, query,
			c.ID, c.PageID, c.RunID, c.SourceNumber, c.URL, c.Title, c.Context,
			c.Score, c.Priority, c.VerificationStatus, c.ScanStatus, c.Decision,
			c.ContentID, c.Rescan, c.ExtractedText, c.ErrorText, c.Created, c.Updated); err != nil {
			return fmt.Errorf("insert citation %s: %w", c.ID, err)
		}
	}
	return nil
}

// GetCitation returns a citation by ID.
func (s *CitationStore) GetCitation(ctx context.Context, id string) (discovery.Citation, error) {
	query := `SELECT ` + citationColumns + ` FROM citations WHERE id = $1`
	return scanCitation(s.pool.QueryRow(ctx, query, id))
}

// NextCitations returns undecided citations in picker order: priority
// descending with unset priorities last, then creation time ascending.
func (s *CitationStore) NextCitations(ctx context.Context, runID string, statuses []discovery.VerificationStatus, limit int) ([]discovery.Citation, error) {
	states := make([]string, len(statuses))
	for i, st := range statuses {
		states[i] = string(st)
	}
	query := `
SELECT ` + citationColumns + ` FROM citations
WHERE run_id = $1 AND verification_status = ANY($2) AND relevance_decision = 'none'
ORDER BY priority DESC NULLS LAST, created_at ASC
LIMIT $3`
	rows, err := s.pool.Query(ctx, query, runID, states, limit)
	if err != nil {
		return nil, fmt.Errorf("query next citations: %w", err)
	}
	defer rows.Close()
	return collectCitations(rows)
}

// UpdateCitation replaces a stored citation's mutable fields.
func (s *CitationStore) UpdateCitation(ctx context.Context, c discovery.Citation) error {
	query := `
UPDATE citations
SET score = $2, priority = $3, verification_status = $4, scan_status = $5,
    relevance_decision = $6, content_id = $7, rescan = $8,
    extracted_text = $9, error_text = $10, updated_at = $11
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		c.ID, c.Score, c.Priority, c.VerificationStatus, c.ScanStatus,
		c.Decision, c.ContentID, c.Rescan, c.ExtractedText, c.ErrorText, c.Updated)
	if err != nil {
		return fmt.Errorf("update citation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return discovery.ErrNotFound
	}
	return nil
}

// ListByPage returns a page's citations ordered by source number.
func (s *CitationStore) ListByPage(ctx context.Context, pageID string) ([]discovery.Citation, error) {
	query := `
SELECT ` + citationColumns + ` FROM citations
WHERE page_id = $1
ORDER BY source_number ASC`
	rows, err := s.pool.Query(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("query citations by page: %w", err)
	}
	defer rows.Close()
	return collectCitations(rows)
}

// Anomalies returns sweep targets: denied citations scored at or above
// threshold, and saved citations without a content reference.
func (s *CitationStore) Anomalies(ctx context.Context, runID string, threshold int) ([]discovery.Citation, error) {
	query := `
SELECT ` + citationColumns + ` FROM citations
WHERE run_id = $1
  AND ((relevance_decision = 'denied' AND score >= $2)
    OR (relevance_decision = 'saved' AND content_id = ''))
ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, runID, threshold)
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()
	return collectCitations(rows)
}

func scanCitation(row pgx.Row) (discovery.Citation, error) {
	var c discovery.Citation
	err := row.Scan(&c.ID, &c.PageID, &c.RunID, &c.SourceNumber, &c.URL, &c.Title,
		&c.Context, &c.Score, &c.Priority, &c.VerificationStatus, &c.ScanStatus,
		&c.Decision, &c.ContentID, &c.Rescan, &c.ExtractedText, &c.ErrorText,
		&c.Created, &c.Updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return discovery.Citation{}, discovery.ErrNotFound
	}
	if err != nil {
		return discovery.Citation{}, fmt.Errorf("scan citation: %w", err)
	}
	return c, nil
}

func collectCitations(rows pgx.Rows) ([]discovery.Citation, error) {
	var out []discovery.Citation
	for rows.Next() {
		var c discovery.Citation
		if err := rows.Scan(&c.ID, &c.PageID, &c.RunID, &c.SourceNumber, &c.URL,
			&c.Title, &c.Context, &c.Score, &c.Priority, &c.VerificationStatus,
			&c.ScanStatus, &c.Decision, &c.ContentID, &c.Rescan, &c.ExtractedText,
			&c.ErrorText, &c.Created, &c.Updated); err != nil {
			return nil, fmt.Errorf("scan citation row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate citations: %w", err)
	}
	return out, nil
}
