package discovery

import (
	"context"
	"time"
)

// PageStore persists monitored pages.
type PageStore interface {
	CreatePage(ctx context.Context, page MonitoredPage) error
	GetPage(ctx context.Context, id string) (MonitoredPage, error)
	// NextPages returns pickup-eligible pages (pending or error) ordered by
	// priority descending then creation time ascending.
	NextPages(ctx context.Context, runID string, limit int) ([]MonitoredPage, error)
	UpdatePage(ctx context.Context, page MonitoredPage) error
	PageByURL(ctx context.Context, runID, url string) (MonitoredPage, error)
	// ScanningPages returns pages mid-scan, for the completion checker.
	ScanningPages(ctx context.Context, runID string) ([]MonitoredPage, error)
}

// CitationStore persists citations and drives picker ordering.
type CitationStore interface {
	CreateCitations(ctx context.Context, citations []Citation) error
	GetCitation(ctx context.Context, id string) (Citation, error)
	// NextCitations returns undecided citations matching the verification
	// statuses, priority descending with nulls last, then creation ascending.
	NextCitations(ctx context.Context, runID string, statuses []VerificationStatus, limit int) ([]Citation, error)
	UpdateCitation(ctx context.Context, c Citation) error
	ListByPage(ctx context.Context, pageID string) ([]Citation, error)
	// Anomalies returns sweep targets: denied citations scored at or above
	// threshold, and saved citations missing their content reference.
	Anomalies(ctx context.Context, runID string, threshold int) ([]Citation, error)
}

// ContentStore persists discovered content records.
type ContentStore interface {
	CreateContent(ctx context.Context, c DiscoveredContent) (string, error)
	ContentByURL(ctx context.Context, runID, canonicalURL string) (DiscoveredContent, error)
	ContentExists(ctx context.Context, id string) (bool, error)
}

// SeenStore is the persistent tier of the seen-URL ledger.
type SeenStore interface {
	Seen(ctx context.Context, runID, urlHash string) (bool, error)
	MarkSeen(ctx context.Context, runID, urlHash string, at time.Time) error
}

// SummaryStore persists immutable per-run aggregates.
type SummaryStore interface {
	SaveSummary(ctx context.Context, s RunSummary) error
	GetSummary(ctx context.Context, runID string) (RunSummary, error)
}

// BlobStore writes raw artifacts for audit and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher notifies collaborators about saved content.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// SavePorts are the host-supplied persistence side effects invoked on a
// positive decision. The pipeline core holds no storage technology directly.
type SavePorts interface {
	SaveContent(ctx context.Context, c DiscoveredContent) error
	SaveMemory(ctx context.Context, c DiscoveredContent) error
}

// Hasher computes hex digests for dedup keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// RunSummary aggregates counters for a finished run.
type RunSummary struct {
	RunID      string         `json:"run_id"`
	Topic      string         `json:"topic"`
	Started    time.Time      `json:"started_at"`
	Finished   time.Time      `json:"finished_at"`
	Attempts   map[string]int `json:"attempts_by_step"`
	Duplicates int            `json:"duplicates"`
	Saved      int            `json:"items_saved"`
	Denied     int            `json:"items_denied"`
	Errors     map[string]int `json:"error_histogram"`
}
