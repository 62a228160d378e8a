// Package memory provides in-memory store implementations, used by tests and
// by single-process runs that need no database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// PageStore is an in-memory discovery.PageStore.
type PageStore struct {
	mu    sync.RWMutex
	pages map[string]discovery.MonitoredPage
}

// NewPageStore builds an empty PageStore.
func NewPageStore() *PageStore {
	return &PageStore{pages: make(map[string]discovery.MonitoredPage)}
}

// CreatePage stores a new page.
func (s *PageStore) CreatePage(_ context.Context, page discovery.MonitoredPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[page.ID] = page
	return nil
}

// GetPage returns a page by ID.
func (s *PageStore) GetPage(_ context.Context, id string) (discovery.MonitoredPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[id]
	if !ok {
		return discovery.MonitoredPage{}, discovery.ErrNotFound
	}
	return page, nil
}

// NextPages returns pickup-eligible pages ordered by priority descending,
// then creation time ascending.
func (s *PageStore) NextPages(_ context.Context, runID string, limit int) ([]discovery.MonitoredPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []discovery.MonitoredPage
	for _, p := range s.pages {
		if p.RunID != runID {
			continue
		}
		if p.Status == discovery.PageStatusPending || p.Status == discovery.PageStatusError {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Created.Before(out[j].Created)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdatePage replaces a stored page.
func (s *PageStore) UpdatePage(_ context.Context, page discovery.MonitoredPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[page.ID]; !ok {
		return discovery.ErrNotFound
	}
	s.pages[page.ID] = page
	return nil
}

// PageByURL finds a page by exact URL within a run.
func (s *PageStore) PageByURL(_ context.Context, runID, url string) (discovery.MonitoredPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pages {
		if p.RunID == runID && p.URL == url {
			return p, nil
		}
	}
	return discovery.MonitoredPage{}, discovery.ErrNotFound
}

// ScanningPages returns pages currently mid-scan within a run.
func (s *PageStore) ScanningPages(_ context.Context, runID string) ([]discovery.MonitoredPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []discovery.MonitoredPage
	for _, p := range s.pages {
		if p.RunID == runID && p.Status == discovery.PageStatusScanning {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}

// CitationStore is an in-memory discovery.CitationStore.
type CitationStore struct {
	mu        sync.RWMutex
	citations map[string]discovery.Citation
}

// NewCitationStore builds an empty CitationStore.
func NewCitationStore() *CitationStore {
	return &CitationStore{citations: make(map[string]discovery.Citation)}
}

// CreateCitations stores a batch of citations.
func (s *CitationStore) CreateCitations(_ context.Context, citations []discovery.Citation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range citations {
		s.citations[c.ID] = c
	}
	return nil
}

// GetCitation returns a citation by ID.
func (s *CitationStore) GetCitation(_ context.Context, id string) (discovery.Citation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.citations[id]
	if !ok {
		return discovery.Citation{}, discovery.ErrNotFound
	}
	return c, nil
}

// NextCitations returns undecided citations in picker order: priority
// descending with unset priorities last, then creation time ascending.
func (s *CitationStore) NextCitations(_ context.Context, runID string, statuses []discovery.VerificationStatus, limit int) ([]discovery.Citation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[discovery.VerificationStatus]struct{}, len(statuses))
	for _, st := range statuses {
		wanted[st] = struct{}{}
	}

	var out []discovery.Citation
	for _, c := range s.citations {
		if c.RunID != runID || c.Decision != discovery.DecisionNone {
			continue
		}
		if _, ok := wanted[c.VerificationStatus]; !ok {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Priority, out[j].Priority
		switch {
		case pi != nil && pj != nil && *pi != *pj:
			return *pi > *pj
		case pi != nil && pj == nil:
			return true
		case pi == nil && pj != nil:
			return false
		}
		return out[i].Created.Before(out[j].Created)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateCitation replaces a stored citation.
func (s *CitationStore) UpdateCitation(_ context.Context, c discovery.Citation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.citations[c.ID]; !ok {
		return discovery.ErrNotFound
	}
	s.citations[c.ID] = c
	return nil
}

// ListByPage returns a page's citations ordered by source number.
func (s *CitationStore) ListByPage(_ context.Context, pageID string) ([]discovery.Citation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []discovery.Citation
	for _, c := range s.citations {
		if c.PageID == pageID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceNumber < out[j].SourceNumber })
	return out, nil
}

// Anomalies returns sweep targets: denied citations scored at or above
// threshold, and saved citations without a content reference.
func (s *CitationStore) Anomalies(_ context.Context, runID string, threshold int) ([]discovery.Citation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []discovery.Citation
	for _, c := range s.citations {
		if c.RunID != runID {
			continue
		}
		deniedHigh := c.Decision == discovery.DecisionDenied && c.Score != nil && *c.Score >= threshold
		savedDangling := c.Decision == discovery.DecisionSaved && c.ContentID == ""
		if deniedHigh || savedDangling {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}

// ContentStore is an in-memory discovery.ContentStore.
type ContentStore struct {
	mu       sync.RWMutex
	contents map[string]discovery.DiscoveredContent
}

// NewContentStore builds an empty ContentStore.
func NewContentStore() *ContentStore {
	return &ContentStore{contents: make(map[string]discovery.DiscoveredContent)}
}

// CreateContent stores a content record and returns its ID.
func (s *ContentStore) CreateContent(_ context.Context, c discovery.DiscoveredContent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[c.ID] = c
	return c.ID, nil
}

// ContentByURL finds content by canonical URL within a run.
func (s *ContentStore) ContentByURL(_ context.Context, runID, canonicalURL string) (discovery.DiscoveredContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.contents {
		if c.RunID == runID && c.CanonicalURL == canonicalURL {
			return c, nil
		}
	}
	return discovery.DiscoveredContent{}, discovery.ErrNotFound
}

// ContentExists reports whether a content record exists.
func (s *ContentStore) ContentExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.contents[id]
	return ok, nil
}

// SeenStore is an in-memory discovery.SeenStore.
type SeenStore struct {
	mu   sync.RWMutex
	rows map[string]discovery.SeenRecord
}

// NewSeenStore builds an empty SeenStore.
func NewSeenStore() *SeenStore {
	return &SeenStore{rows: make(map[string]discovery.SeenRecord)}
}

// Seen reports whether a hash was marked within a run scope.
func (s *SeenStore) Seen(_ context.Context, runID, urlHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rows[runID+"\x00"+urlHash]
	return ok, nil
}

// MarkSeen records a hash for a run scope, bumping hit counts on repeats.
func (s *SeenStore) MarkSeen(_ context.Context, runID, urlHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := runID + "\x00" + urlHash
	row, ok := s.rows[key]
	if !ok {
		row = discovery.SeenRecord{RunID: runID, URLHash: urlHash, FirstSeen: at}
	}
	row.LastSeen = at
	row.HitCount++
	s.rows[key] = row
	return nil
}

// SummaryStore is an in-memory discovery.SummaryStore.
type SummaryStore struct {
	mu        sync.RWMutex
	summaries map[string]discovery.RunSummary
}

// NewSummaryStore builds an empty SummaryStore.
func NewSummaryStore() *SummaryStore {
	return &SummaryStore{summaries: make(map[string]discovery.RunSummary)}
}

// SaveSummary stores a run summary. Summaries are immutable; the first write
// wins.
func (s *SummaryStore) SaveSummary(_ context.Context, sum discovery.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.summaries[sum.RunID]; ok {
		return nil
	}
	s.summaries[sum.RunID] = sum
	return nil
}

// GetSummary returns a stored run summary.
func (s *SummaryStore) GetSummary(_ context.Context, runID string) (discovery.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[runID]
	if !ok {
		return discovery.RunSummary{}, discovery.ErrNotFound
	}
	return sum, nil
}
