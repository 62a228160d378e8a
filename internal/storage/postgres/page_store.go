package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// PageStore implements discovery.PageStore over Postgres.
//
// Expected schema:
//
//	CREATE TABLE monitored_pages (
//	    id TEXT PRIMARY KEY,
//	    run_id TEXT NOT NULL,
//	    url TEXT NOT NULL,
//	    title TEXT NOT NULL DEFAULT '',
//	    provenance TEXT NOT NULL DEFAULT '',
//	    priority INT NOT NULL DEFAULT 0,
//	    status TEXT NOT NULL,
//	    content_scanned BOOLEAN NOT NULL DEFAULT FALSE,
//	    citations_extracted BOOLEAN NOT NULL DEFAULT FALSE,
//	    citation_count INT NOT NULL DEFAULT 0,
//	    error_text TEXT NOT NULL DEFAULT '',
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL,
//	    UNIQUE (run_id, url)
//	);
type PageStore struct {
	pool Querier
}

// NewPageStore builds a PageStore over pool.
func NewPageStore(pool Querier) *PageStore {
	return &PageStore{pool: pool}
}

const pageColumns = `id, run_id, url, title, provenance, priority, status,
content_scanned, citations_extracted, citation_count, error_text, created_at, updated_at`

// CreatePage inserts a new monitored page.
func (s *PageStore) CreatePage(ctx context.Context, page discovery.MonitoredPage) error {
	query := `
INSERT INTO monitored_pages (` + pageColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := s.pool.Exec(ctx, query,
		page.ID, page.RunID, page.URL, page.Title, page.Provenance,
		page.Priority, page.Status, page.ContentScanned, page.CitationsExtracted,
		page.CitationCount, page.ErrorText, page.Created, page.Updated)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

// GetPage returns a page by ID.
func (s *PageStore) GetPage(ctx context.Context, id string) (discovery.MonitoredPage, error) {
	query := `SELECT ` + pageColumns + ` FROM monitored_pages WHERE id = $1`
	return s.scanPage(s.pool.QueryRow(ctx, query, id))
}

// NextPages returns pickup-eligible pages ordered by priority descending,
// then creation time ascending.
func (s *PageStore) NextPages(ctx context.Context, runID string, limit int) ([]discovery.MonitoredPage, error) {
	query := `
SELECT ` + pageColumns + ` FROM monitored_pages
WHERE run_id = $1 AND status IN ('pending', 'error')
ORDER BY priority DESC, created_at ASC
LIMIT $2`
	rows, err := s.pool.Query(ctx, query, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query next pages: %w", err)
	}
	defer rows.Close()
	return s.collectPages(rows)
}

// UpdatePage replaces a stored page's mutable fields.
func (s *PageStore) UpdatePage(ctx context.Context, page discovery.MonitoredPage) error {
	query := `
UPDATE monitored_pages
SET title = $2, status = $3, content_scanned = $4, citations_extracted = $5,
    citation_count = $6, error_text = $7, updated_at = $8
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		page.ID, page.Title, page.Status, page.ContentScanned,
		page.CitationsExtracted, page.CitationCount, page.ErrorText, page.Updated)
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return discovery.ErrNotFound
	}
	return nil
}

// PageByURL finds a page by exact URL within a run.
func (s *PageStore) PageByURL(ctx context.Context, runID, url string) (discovery.MonitoredPage, error) {
	query := `SELECT ` + pageColumns + ` FROM monitored_pages WHERE run_id = $1 AND url = $2`
	return s.scanPage(s.pool.QueryRow(ctx, query, runID, url))
}

// ScanningPages returns pages currently mid-scan within a run.
func (s *PageStore) ScanningPages(ctx context.Context, runID string) ([]discovery.MonitoredPage, error) {
	query := `
SELECT ` + pageColumns + ` FROM monitored_pages
WHERE run_id = $1 AND status = 'scanning'
ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query scanning pages: %w", err)
	}
	defer rows.Close()
	return s.collectPages(rows)
}

func (s *PageStore) scanPage(row pgx.Row) (discovery.MonitoredPage, error) {
	var p discovery.MonitoredPage
	err := row.Scan(&p.ID, &p.RunID, &p.URL, &p.Title, &p.Provenance,
		&p.Priority, &p.Status, &p.ContentScanned, &p.CitationsExtracted,
		&p.CitationCount, &p.ErrorText, &p.Created, &p.Updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return discovery.MonitoredPage{}, discovery.ErrNotFound
	}
	if err != nil {
		return discovery.MonitoredPage{}, fmt.Errorf("scan page: %w", err)
	}
	return p, nil
}

func (s *PageStore) collectPages(rows pgx.Rows) ([]discovery.MonitoredPage, error) {
	var out []discovery.MonitoredPage
	for rows.Next() {
		var p discovery.MonitoredPage
		if err := rows.Scan(&p.ID, &p.RunID, &p.URL, &p.Title, &p.Provenance,
			&p.Priority, &p.Status, &p.ContentScanned, &p.CitationsExtracted,
			&p.CitationCount, &p.ErrorText, &p.Created, &p.Updated); err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return out, nil
}
