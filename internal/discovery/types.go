// Package discovery defines core types shared across pipeline subsystems.
package discovery

import "time"

// PageStatus represents the lifecycle state of a monitored page.
type PageStatus string

// Page status values persisted in the page store.
const (
	PageStatusPending   PageStatus = "pending"
	PageStatusScanning  PageStatus = "scanning"
	PageStatusCompleted PageStatus = "completed"
	PageStatusError     PageStatus = "error"
)

// VerificationStatus tracks whether a citation URL has been confirmed reachable.
type VerificationStatus string

// Verification status values. PendingWiki defers same-project internal links
// to a later pass once external candidates are exhausted.
const (
	VerificationPending     VerificationStatus = "pending"
	VerificationPendingWiki VerificationStatus = "pending_wiki"
	VerificationVerifying   VerificationStatus = "verifying"
	VerificationVerified    VerificationStatus = "verified"
	VerificationFailed      VerificationStatus = "failed"
)

// ScanStatus tracks content-scan progress for a citation.
type ScanStatus string

// Scan status values. A citation reaches "scanned" only after verification
// succeeded; verification failures count as processed without ever scanning.
const (
	ScanNotScanned    ScanStatus = "not_scanned"
	ScanScanning      ScanStatus = "scanning"
	ScanScanned       ScanStatus = "scanned"
	ScanScannedDenied ScanStatus = "scanned_denied"
)

// RelevanceDecision records the vetting outcome for a scanned citation.
type RelevanceDecision string

// Relevance decision values. Once saved or denied the decision is immutable
// except through the reprocessing sweep.
const (
	DecisionNone         RelevanceDecision = "none"
	DecisionSaved        RelevanceDecision = "saved"
	DecisionDenied       RelevanceDecision = "denied"
	DecisionDeniedVerify RelevanceDecision = "denied_verify"
)

// FrontierItem is a prioritized seed candidate emitted by the planner.
// Items are append-only and never mutated after creation.
type FrontierItem struct {
	ID       string            `json:"id"`
	Provider string            `json:"provider"`
	URL      string            `json:"url"`
	Priority int               `json:"priority"`
	Angle    string            `json:"angle"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Created  time.Time         `json:"created_at"`
}

// MonitoredPage is a source page tracked through the page state machine.
// Pages are created at seeding time and never deleted.
type MonitoredPage struct {
	ID                 string     `json:"id"`
	RunID              string     `json:"run_id"`
	URL                string     `json:"url"`
	Title              string     `json:"title,omitempty"`
	Provenance         string     `json:"provenance,omitempty"`
	Priority           int        `json:"priority"`
	Status             PageStatus `json:"status"`
	ContentScanned     bool       `json:"content_scanned"`
	CitationsExtracted bool       `json:"citations_extracted"`
	CitationCount      int        `json:"citation_count"`
	ErrorText          string     `json:"error_text,omitempty"`
	Created            time.Time  `json:"created_at"`
	Updated            time.Time  `json:"updated_at"`
}

// Citation is a reference extracted from a monitored page, tracked
// independently through verification and scanning.
type Citation struct {
	ID                 string             `json:"id"`
	PageID             string             `json:"page_id"`
	RunID              string             `json:"run_id"`
	SourceNumber       int                `json:"source_number"`
	URL                string             `json:"url"`
	Title              string             `json:"title,omitempty"`
	Context            string             `json:"context,omitempty"`
	Score              *int               `json:"score,omitempty"`
	Priority           *int               `json:"priority,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	ScanStatus         ScanStatus         `json:"scan_status"`
	Decision           RelevanceDecision  `json:"relevance_decision"`
	ContentID          string             `json:"content_id,omitempty"`
	// Rescan lets a swept citation bypass the seen-URL short circuit once.
	Rescan        bool      `json:"rescan,omitempty"`
	ExtractedText string    `json:"extracted_text,omitempty"`
	ErrorText     string    `json:"error_text,omitempty"`
	Created       time.Time `json:"created_at"`
	Updated       time.Time `json:"updated_at"`
}

// Processed reports whether the citation no longer needs pipeline attention.
func (c Citation) Processed() bool {
	return c.ScanStatus == ScanScanned ||
		c.ScanStatus == ScanScannedDenied ||
		c.VerificationStatus == VerificationFailed
}

// DiscoveredContent is the persisted record for a citation whose decision was
// "saved". Unique per (run scope, canonical URL).
type DiscoveredContent struct {
	ID            string    `json:"id"`
	RunID         string    `json:"run_id"`
	CanonicalURL  string    `json:"canonical_url"`
	Domain        string    `json:"domain"`
	Title         string    `json:"title,omitempty"`
	Score         int       `json:"score"`
	QualityReason string    `json:"quality_reason,omitempty"`
	Text          string    `json:"text"`
	BlobURI       string    `json:"blob_uri,omitempty"`
	Provenance    []string  `json:"provenance,omitempty"`
	Created       time.Time `json:"created_at"`
}

// SeenRecord is a pure dedup ledger row keyed by the hash of a canonical URL.
// It is never foreign-keyed from other tables.
type SeenRecord struct {
	RunID     string    `json:"run_id"`
	URLHash   string    `json:"url_hash"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	HitCount  int64     `json:"hit_count"`
}

// Topic describes the subject a discovery run is scoped to.
type Topic struct {
	Name            string   `json:"name"`
	Aliases         []string `json:"aliases,omitempty"`
	Handle          string   `json:"handle"`
	ContestedClaims []string `json:"contested_claims,omitempty"`
}

// PrimaryReferenceURL returns the deterministic fallback seed for the topic.
func (t Topic) PrimaryReferenceURL() string {
	return "https://en.wikipedia.org/wiki/" + wikiTitle(t.Name)
}

func wikiTitle(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == ' ' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
