// Package pipeline drives the discovery state machines: seeding monitored
// pages, scanning them into citations, and walking each citation through
// verification, fetching, vetting, and persistence.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/canonical"
	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/fetch"
	"github.com/ddoubleg123/carrot-discovery/internal/metrics"
	"github.com/ddoubleg123/carrot-discovery/internal/policy"
	"github.com/ddoubleg123/carrot-discovery/internal/progress"
	"github.com/ddoubleg123/carrot-discovery/internal/vetting"
)

// Scanner extracts citation candidates from a monitored page.
type Scanner interface {
	Scan(ctx context.Context, pageURL string) (fetch.PageScan, error)
}

// Verifier confirms a citation URL is reachable.
type Verifier interface {
	Verify(ctx context.Context, rawURL string) (fetch.VerifyResult, error)
}

// Fetcher retrieves citation content.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetch.Content, error)
}

// Vetter decides whether extracted text should be saved.
type Vetter interface {
	Vet(ctx context.Context, text, sourceURL string, topic discovery.Topic) (vetting.Assessment, error)
}

// SeenTracker is the two-tier dedup ledger.
type SeenTracker interface {
	IsSeen(ctx context.Context, runID, canonicalURL string) bool
	MarkSeen(ctx context.Context, runID, canonicalURL string)
}

// Seeder produces prioritized frontier items for a topic.
type Seeder interface {
	Seed(ctx context.Context, topic discovery.Topic) ([]discovery.FrontierItem, error)
}

// Denylist blocks URLs that must never be fetched.
type Denylist interface {
	Blocked(rawURL string) (string, bool)
}

// Resolver follows redirects before canonicalizing, so shortener and moved
// URLs dedup against the page they actually land on. Optional; when nil the
// cheap string canonical form is used as-is.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (canonical.Resolution, error)
}

// Config bounds one ProcessNext invocation.
type Config struct {
	MaxPagesPerRun     int
	MaxCitationsPerRun int
	MinTextLength      int
	// SweepThreshold marks denied citations at or above this score as
	// anomalies during the reprocessing sweep.
	SweepThreshold int
}

// Report summarizes one ProcessNext invocation.
type Report struct {
	PagesScanned       int `json:"pages_scanned"`
	CitationsCreated   int `json:"citations_created"`
	CitationsProcessed int `json:"citations_processed"`
	Saved              int `json:"saved"`
	Denied             int `json:"denied"`
	Duplicates         int `json:"duplicates"`
	Deferred           int `json:"deferred"`
	Errors             int `json:"errors"`
}

// Pipeline owns the page and citation state machines.
type Pipeline struct {
	pages     discovery.PageStore
	citations discovery.CitationStore
	contents  discovery.ContentStore
	seen      SeenTracker
	seeder    Seeder
	scanner   Scanner
	verifier  Verifier
	fetcher   Fetcher
	vetter    Vetter
	denylist  Denylist
	resolver  Resolver
	limiter   *policy.DomainLimiter
	guard     *policy.Guard
	tracker   *progress.Tracker
	blobs     discovery.BlobStore
	publisher discovery.Publisher
	saver     discovery.SavePorts
	idGen     discovery.IDGenerator
	clock     discovery.Clock
	cfg       Config
	logger    *zap.Logger
}

// Deps collects the pipeline's collaborators.
type Deps struct {
	Pages     discovery.PageStore
	Citations discovery.CitationStore
	Contents  discovery.ContentStore
	Seen      SeenTracker
	Seeder    Seeder
	Scanner   Scanner
	Verifier  Verifier
	Fetcher   Fetcher
	Vetter    Vetter
	Denylist  Denylist
	Resolver  Resolver
	Limiter   *policy.DomainLimiter
	Guard     *policy.Guard
	Tracker   *progress.Tracker
	Blobs     discovery.BlobStore
	Publisher discovery.Publisher
	Saver     discovery.SavePorts
	IDGen     discovery.IDGenerator
	Clock     discovery.Clock
}

// New builds a Pipeline.
func New(deps Deps, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.MaxPagesPerRun <= 0 {
		cfg.MaxPagesPerRun = 1
	}
	if cfg.MaxCitationsPerRun <= 0 {
		cfg.MaxCitationsPerRun = 50
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 500
	}
	if cfg.SweepThreshold <= 0 {
		cfg.SweepThreshold = 60
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Pipeline{
		pages:     deps.Pages,
		citations: deps.Citations,
		contents:  deps.Contents,
		seen:      deps.Seen,
		seeder:    deps.Seeder,
		scanner:   deps.Scanner,
		verifier:  deps.Verifier,
		fetcher:   deps.Fetcher,
		vetter:    deps.Vetter,
		denylist:  deps.Denylist,
		resolver:  deps.Resolver,
		limiter:   deps.Limiter,
		guard:     deps.Guard,
		tracker:   deps.Tracker,
		blobs:     deps.Blobs,
		publisher: deps.Publisher,
		saver:     deps.Saver,
		idGen:     deps.IDGen,
		clock:     deps.Clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// SeedRun plans the frontier for topic and creates monitored pages for every
// candidate not already tracked. Returns the number of pages created.
func (p *Pipeline) SeedRun(ctx context.Context, runID string, topic discovery.Topic) (int, error) {
	items, err := p.seeder.Seed(ctx, topic)
	if err != nil {
		return 0, fmt.Errorf("seed frontier: %w", err)
	}

	created := 0
	for _, item := range items {
		canon := canonical.Canonicalize(item.URL)
		if _, err := p.pages.PageByURL(ctx, runID, canon); err == nil {
			continue
		}
		id, err := p.idGen.NewID()
		if err != nil {
			return created, fmt.Errorf("generate page id: %w", err)
		}
		now := p.clock.Now()
		page := discovery.MonitoredPage{
			ID:         id,
			RunID:      runID,
			URL:        canon,
			Provenance: item.Provider + ":" + item.Angle,
			Priority:   item.Priority,
			Status:     discovery.PageStatusPending,
			Created:    now,
			Updated:    now,
		}
		if err := p.pages.CreatePage(ctx, page); err != nil {
			return created, fmt.Errorf("create page: %w", err)
		}
		created++
		p.tracker.Record(progress.Event{
			Kind: progress.EventSeeded, RunID: runID, URL: canon,
			Score: item.Priority,
		})
	}
	p.logger.Info("run seeded",
		zap.String("run_id", runID),
		zap.String("topic", topic.Name),
		zap.Int("pages", created))
	return created, nil
}

// ProcessNext advances the run by one bounded increment: scan up to the page
// budget, process up to the citation budget, then close out finished pages.
// Budgets cap work per call so the caller controls pacing.
func (p *Pipeline) ProcessNext(ctx context.Context, runID string, topic discovery.Topic) (Report, error) {
	var report Report

	if err := p.processPages(ctx, runID, &report); err != nil {
		return report, err
	}
	if err := p.processCitations(ctx, runID, topic, &report); err != nil {
		return report, err
	}
	if err := p.completePages(ctx, runID); err != nil {
		return report, err
	}
	return report, nil
}

func (p *Pipeline) processPages(ctx context.Context, runID string, report *Report) error {
	pages, err := p.pages.NextPages(ctx, runID, p.cfg.MaxPagesPerRun)
	if err != nil {
		return fmt.Errorf("next pages: %w", err)
	}

	for _, page := range pages {
		release, ok := p.guard.Begin("page:" + page.ID)
		if !ok {
			continue
		}
		p.scanPage(ctx, runID, page, report)
		release()
	}
	return nil
}

func (p *Pipeline) scanPage(ctx context.Context, runID string, page discovery.MonitoredPage, report *Report) {
	start := p.clock.Now()
	page.Status = discovery.PageStatusScanning
	page.Updated = start
	if err := p.pages.UpdatePage(ctx, page); err != nil {
		p.logger.Error("mark page scanning", zap.String("page_id", page.ID), zap.Error(err))
		return
	}
	p.tracker.Record(progress.Event{Kind: progress.EventScanning, RunID: runID, URL: page.URL, Step: "scan"})

	scan, err := p.scanner.Scan(ctx, page.URL)
	if err != nil {
		page.Status = discovery.PageStatusError
		page.ErrorText = err.Error()
		page.Updated = p.clock.Now()
		if uerr := p.pages.UpdatePage(ctx, page); uerr != nil {
			p.logger.Error("mark page errored", zap.String("page_id", page.ID), zap.Error(uerr))
		}
		report.Errors++
		p.recordError(runID, page.URL, "scan", err)
		metrics.ObservePage(string(discovery.PageStatusError))
		return
	}

	if page.Title == "" {
		page.Title = scan.Title
	}

	now := p.clock.Now()
	citations := make([]discovery.Citation, 0, len(scan.Candidates))
	onPage := make(map[string]struct{}, len(scan.Candidates))
	for _, cand := range scan.Candidates {
		// A page citing the same source repeatedly yields one citation.
		key := canonical.Canonicalize(cand.URL)
		if _, dup := onPage[key]; dup {
			continue
		}
		onPage[key] = struct{}{}

		id, err := p.idGen.NewID()
		if err != nil {
			p.logger.Error("generate citation id", zap.Error(err))
			continue
		}
		// Citations inherit the page's priority so the picker works through
		// high-priority sources first.
		prio := page.Priority
		citations = append(citations, discovery.Citation{
			ID:                 id,
			PageID:             page.ID,
			RunID:              runID,
			SourceNumber:       len(citations) + 1,
			URL:                cand.URL,
			Title:              cand.Title,
			Context:            cand.Context,
			Priority:           &prio,
			VerificationStatus: classifyCandidate(page.URL, cand.URL),
			ScanStatus:         discovery.ScanNotScanned,
			Decision:           discovery.DecisionNone,
			Created:            now,
			Updated:            now,
		})
	}

	if len(citations) > 0 {
		if err := p.citations.CreateCitations(ctx, citations); err != nil {
			page.Status = discovery.PageStatusError
			page.ErrorText = err.Error()
			page.Updated = p.clock.Now()
			if uerr := p.pages.UpdatePage(ctx, page); uerr != nil {
				p.logger.Error("mark page errored", zap.String("page_id", page.ID), zap.Error(uerr))
			}
			report.Errors++
			p.recordError(runID, page.URL, "scan", err)
			return
		}
	}

	page.ContentScanned = true
	page.CitationsExtracted = true
	page.CitationCount = len(citations)
	page.ErrorText = ""
	if len(citations) == 0 {
		// Nothing to wait on; the page is done.
		page.Status = discovery.PageStatusCompleted
	}
	page.Updated = p.clock.Now()
	if err := p.pages.UpdatePage(ctx, page); err != nil {
		p.logger.Error("finish page scan", zap.String("page_id", page.ID), zap.Error(err))
		return
	}

	report.PagesScanned++
	report.CitationsCreated += len(citations)
	metrics.ObservePage(string(page.Status))
	metrics.ObserveStep("scan", p.clock.Now().Sub(start))
	p.logger.Info("page scanned",
		zap.String("page_id", page.ID),
		zap.String("url", page.URL),
		zap.Int("citations", len(citations)))
}

// classifyCandidate defers links internal to the source project (same domain,
// e.g. wiki-to-wiki hops) until external candidates are exhausted.
func classifyCandidate(pageURL, candURL string) discovery.VerificationStatus {
	pageDomain := canonical.DomainOf(pageURL)
	candDomain := canonical.DomainOf(candURL)
	if pageDomain != "" && pageDomain == candDomain {
		return discovery.VerificationPendingWiki
	}
	return discovery.VerificationPending
}

func (p *Pipeline) processCitations(ctx context.Context, runID string, topic discovery.Topic, report *Report) error {
	budget := p.cfg.MaxCitationsPerRun

	picked, err := p.citations.NextCitations(ctx, runID,
		[]discovery.VerificationStatus{discovery.VerificationPending}, budget)
	if err != nil {
		return fmt.Errorf("next citations: %w", err)
	}
	if len(picked) < budget {
		// External candidates exhausted; pull in deferred internal links.
		wiki, err := p.citations.NextCitations(ctx, runID,
			[]discovery.VerificationStatus{discovery.VerificationPendingWiki}, budget-len(picked))
		if err != nil {
			return fmt.Errorf("next wiki citations: %w", err)
		}
		picked = append(picked, wiki...)
	}

	for _, c := range picked {
		release, ok := p.guard.Begin("citation:" + c.ID)
		if !ok {
			continue
		}
		p.processCitation(ctx, runID, topic, c, report)
		release()
	}
	return nil
}

func (p *Pipeline) processCitation(ctx context.Context, runID string, topic discovery.Topic, c discovery.Citation, report *Report) {
	start := p.clock.Now()
	canon := canonical.Canonicalize(c.URL)
	domain := canonical.DomainOf(canon)

	// The denylist must see the URL before any network traffic, redirect
	// probes included.
	if p.denyBlocked(ctx, runID, canon, c, report) {
		return
	}

	if !c.Rescan && p.isDuplicate(ctx, runID, canon) {
		p.resolveDuplicate(ctx, runID, canon, c, report)
		return
	}

	if !p.limiter.TryAcquire(domain) {
		// Out of tokens for this domain; leave the citation untouched for a
		// later pass rather than blocking the whole run.
		report.Deferred++
		metrics.ObserveRateDeferral(domain)
		return
	}

	// Redirect resolution issues outbound probes, so it runs inside the
	// token-bucket gate. A resolved URL gets the same pre-fetch checks as
	// the original.
	if p.resolver != nil {
		if res, err := p.resolver.Resolve(ctx, canon); err == nil &&
			res.CanonicalURL != "" && res.CanonicalURL != canon {
			canon = res.CanonicalURL
			domain = canonical.DomainOf(canon)
			if p.denyBlocked(ctx, runID, canon, c, report) {
				return
			}
			if !c.Rescan && p.isDuplicate(ctx, runID, canon) {
				p.resolveDuplicate(ctx, runID, canon, c, report)
				return
			}
		}
	}

	c.VerificationStatus = discovery.VerificationVerifying
	c.Updated = p.clock.Now()
	if err := p.citations.UpdateCitation(ctx, c); err != nil {
		p.logger.Error("mark citation verifying", zap.String("citation_id", c.ID), zap.Error(err))
		return
	}
	p.tracker.Record(progress.Event{Kind: progress.EventVerifying, RunID: runID, URL: canon, Step: "verify"})

	result, verifiedURL, err := p.verifyBranches(ctx, canon)
	if err != nil {
		c.VerificationStatus = discovery.VerificationFailed
		c.Decision = discovery.DecisionDeniedVerify
		c.ErrorText = err.Error()
		p.finishCitation(ctx, c, report)
		report.Denied++
		p.seen.MarkSeen(ctx, runID, canon)
		p.recordError(runID, canon, "verify", err)
		metrics.ObserveCitation(canon, string(discovery.VerificationFailed))
		return
	}
	metrics.ObserveCitation(canon, string(discovery.VerificationVerified))

	c.VerificationStatus = discovery.VerificationVerified
	c.ScanStatus = discovery.ScanScanning
	c.Updated = p.clock.Now()
	if err := p.citations.UpdateCitation(ctx, c); err != nil {
		p.logger.Error("mark citation scanning", zap.String("citation_id", c.ID), zap.Error(err))
		return
	}

	content, err := p.obtainContent(ctx, verifiedURL, result)
	if err != nil {
		// Reachable for the probe but not fetchable; treat as a failed source.
		c.VerificationStatus = discovery.VerificationFailed
		c.Decision = discovery.DecisionDeniedVerify
		c.ScanStatus = discovery.ScanNotScanned
		c.ErrorText = err.Error()
		p.finishCitation(ctx, c, report)
		report.Denied++
		p.seen.MarkSeen(ctx, runID, canon)
		p.recordError(runID, canon, "fetch", err)
		return
	}
	p.tracker.Record(progress.Event{Kind: progress.EventFetched, RunID: runID, URL: canon, Step: "fetch"})

	extraction := fetch.Extract(content.Body)
	p.seen.MarkSeen(ctx, runID, canon)

	if len(extraction.Text) < p.cfg.MinTextLength {
		p.auditShortContent(ctx, runID, canon, content.Body)
		c.ScanStatus = discovery.ScanScannedDenied
		c.Decision = discovery.DecisionDenied
		c.ErrorText = fmt.Sprintf("extracted %d chars via %s pass", len(extraction.Text), extraction.Pass)
		p.finishCitation(ctx, c, report)
		report.Denied++
		p.tracker.Record(progress.Event{Kind: progress.EventDenied, RunID: runID, URL: canon, Step: "extract", Detail: "too short"})
		metrics.ObserveDecision(string(discovery.DecisionDenied), 0)
		return
	}

	assessment, err := p.vetter.Vet(ctx, extraction.Text, canon, topic)
	if err != nil {
		// Oracle transport failure: leave the citation retryable.
		c.VerificationStatus = discovery.VerificationPending
		c.ScanStatus = discovery.ScanNotScanned
		c.ErrorText = err.Error()
		c.Updated = p.clock.Now()
		if uerr := p.citations.UpdateCitation(ctx, c); uerr != nil {
			p.logger.Error("reset citation after oracle failure", zap.String("citation_id", c.ID), zap.Error(uerr))
		}
		report.Errors++
		p.recordError(runID, canon, "vet", err)
		return
	}

	score := assessment.Score
	c.Score = &score
	c.Rescan = false

	if assessment.Decision == discovery.DecisionSaved {
		contentID, err := p.saveContent(ctx, runID, canon, domain, firstNonEmpty(extraction.Title, c.Title), assessment, c)
		if err != nil {
			report.Errors++
			p.recordError(runID, canon, "save", err)
			// Decision stands; the sweep will catch the missing content link.
		}
		c.ScanStatus = discovery.ScanScanned
		c.Decision = discovery.DecisionSaved
		c.ContentID = contentID
		c.ExtractedText = assessment.Text
		c.ErrorText = ""
		p.finishCitation(ctx, c, report)
		report.Saved++
		p.tracker.Record(progress.Event{Kind: progress.EventSaved, RunID: runID, URL: canon, Step: "vet", Score: score})
		metrics.ObserveDecision(string(discovery.DecisionSaved), score)
	} else {
		c.ScanStatus = discovery.ScanScannedDenied
		c.Decision = discovery.DecisionDenied
		c.ErrorText = assessment.Reason
		p.finishCitation(ctx, c, report)
		report.Denied++
		p.tracker.Record(progress.Event{Kind: progress.EventDenied, RunID: runID, URL: canon, Step: "vet", Score: score, Detail: assessment.Reason})
		metrics.ObserveDecision(string(discovery.DecisionDenied), score)
	}
	metrics.ObserveStep("citation", p.clock.Now().Sub(start))
}

// resolveDuplicate short-circuits a citation whose canonical URL was already
// handled: link it to existing saved content when there is any, otherwise
// record it as a duplicate denial.
// denyBlocked terminates a denylisted citation. Returns true when the
// citation was handled.
func (p *Pipeline) denyBlocked(ctx context.Context, runID, canon string, c discovery.Citation, report *Report) bool {
	reason, blocked := p.denylist.Blocked(canon)
	if !blocked {
		return false
	}
	c.VerificationStatus = discovery.VerificationFailed
	c.Decision = discovery.DecisionDeniedVerify
	c.ErrorText = "denylisted: " + reason
	p.finishCitation(ctx, c, report)
	report.Denied++
	p.seen.MarkSeen(ctx, runID, canon)
	p.tracker.Record(progress.Event{Kind: progress.EventDenied, RunID: runID, URL: canon, Step: "denylist", Detail: reason})
	metrics.ObserveDecision(string(discovery.DecisionDeniedVerify), 0)
	return true
}

// isDuplicate consults the seen ledger and the content store itself. Either
// seen tier may degrade to "not seen"; an existing content record for the
// canonical URL must still short-circuit, or the unique (run, URL) identity
// of discovered content breaks.
func (p *Pipeline) isDuplicate(ctx context.Context, runID, canon string) bool {
	if p.seen.IsSeen(ctx, runID, canon) {
		return true
	}
	if _, err := p.contents.ContentByURL(ctx, runID, canon); err == nil {
		return true
	}
	return false
}

func (p *Pipeline) resolveDuplicate(ctx context.Context, runID, canon string, c discovery.Citation, report *Report) {
	if existing, err := p.contents.ContentByURL(ctx, runID, canon); err == nil {
		c.ScanStatus = discovery.ScanScanned
		c.Decision = discovery.DecisionSaved
		c.ContentID = existing.ID
		score := existing.Score
		c.Score = &score
	} else {
		c.ScanStatus = discovery.ScanScannedDenied
		c.Decision = discovery.DecisionDenied
		c.ErrorText = "duplicate of previously processed URL"
	}
	c.VerificationStatus = discovery.VerificationVerified
	p.finishCitation(ctx, c, report)
	report.Duplicates++
	// Repairs a degraded seen ledger that missed this URL.
	p.seen.MarkSeen(ctx, runID, canon)
	p.tracker.Record(progress.Event{Kind: progress.EventDuplicate, RunID: runID, URL: canon})
	metrics.ObserveDuplicate()
}

// verifyBranches tries the canonical URL and its paywall-bypass variants in
// planned order, returning the first reachable one.
func (p *Pipeline) verifyBranches(ctx context.Context, canon string) (fetch.VerifyResult, string, error) {
	var lastErr error
	for _, branch := range canonical.PlanBranches(canon, canonical.BranchMeta{}) {
		result, err := p.verifier.Verify(ctx, branch.URL)
		if err == nil {
			if branch.Label != "canonical" {
				p.logger.Debug("verified via branch",
					zap.String("canonical", canon),
					zap.String("branch", branch.Label))
			}
			return result, branch.URL, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return fetch.VerifyResult{}, "", fmt.Errorf("all branches failed: %w", lastErr)
}

// obtainContent reuses the verification GET body when one was retained,
// avoiding a second fetch of the same URL.
func (p *Pipeline) obtainContent(ctx context.Context, verifiedURL string, result fetch.VerifyResult) (fetch.Content, error) {
	if result.UsedGet && len(result.Body) > 0 {
		return fetch.FromBody(verifiedURL, result.StatusCode, result.Body), nil
	}
	return p.fetcher.Fetch(ctx, verifiedURL)
}

func (p *Pipeline) saveContent(ctx context.Context, runID, canon, domain, title string, assessment vetting.Assessment, c discovery.Citation) (string, error) {
	id, err := p.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate content id: %w", err)
	}

	content := discovery.DiscoveredContent{
		ID:            id,
		RunID:         runID,
		CanonicalURL:  canon,
		Domain:        domain,
		Title:         title,
		Score:         assessment.Score,
		QualityReason: assessment.Reason,
		Text:          assessment.Text,
		Provenance:    []string{c.PageID, c.URL},
		Created:       p.clock.Now(),
	}

	// Audit copy is best effort; losing it never blocks a save.
	if uri, err := p.blobs.PutObject(ctx, fmt.Sprintf("%s/%s.txt", runID, id), "text/plain; charset=utf-8", []byte(assessment.Text)); err == nil {
		content.BlobURI = uri
	} else {
		p.logger.Warn("audit blob write failed", zap.String("content_id", id), zap.Error(err))
	}

	if _, err := p.contents.CreateContent(ctx, content); err != nil {
		return "", fmt.Errorf("create content: %w", err)
	}
	if err := p.saver.SaveContent(ctx, content); err != nil {
		return id, fmt.Errorf("save content: %w", err)
	}
	if err := p.saver.SaveMemory(ctx, content); err != nil {
		return id, fmt.Errorf("save memory: %w", err)
	}

	if _, err := p.publisher.Publish(ctx, "content.saved", content); err != nil {
		p.logger.Warn("publish saved content", zap.String("content_id", id), zap.Error(err))
	}
	return id, nil
}

func (p *Pipeline) auditShortContent(ctx context.Context, runID, canon string, body []byte) {
	path := fmt.Sprintf("%s/short/%d.html", runID, p.clock.Now().UnixNano())
	if _, err := p.blobs.PutObject(ctx, path, "text/html; charset=utf-8", body); err != nil {
		p.logger.Warn("audit short content", zap.String("url", canon), zap.Error(err))
	}
}

func (p *Pipeline) finishCitation(ctx context.Context, c discovery.Citation, report *Report) {
	c.Updated = p.clock.Now()
	if err := p.citations.UpdateCitation(ctx, c); err != nil {
		p.logger.Error("update citation", zap.String("citation_id", c.ID), zap.Error(err))
		report.Errors++
		return
	}
	report.CitationsProcessed++
}

// completePages promotes scanning pages whose citations are all processed.
func (p *Pipeline) completePages(ctx context.Context, runID string) error {
	pages, err := p.pages.ScanningPages(ctx, runID)
	if err != nil {
		return fmt.Errorf("scanning pages: %w", err)
	}

	for _, page := range pages {
		if !page.CitationsExtracted {
			continue
		}
		citations, err := p.citations.ListByPage(ctx, page.ID)
		if err != nil {
			return fmt.Errorf("list citations for page %s: %w", page.ID, err)
		}
		done := true
		for _, c := range citations {
			if !c.Processed() {
				done = false
				break
			}
		}
		if !done {
			continue
		}
		page.Status = discovery.PageStatusCompleted
		page.Updated = p.clock.Now()
		if err := p.pages.UpdatePage(ctx, page); err != nil {
			return fmt.Errorf("complete page %s: %w", page.ID, err)
		}
		metrics.ObservePage(string(discovery.PageStatusCompleted))
		p.logger.Info("page completed",
			zap.String("page_id", page.ID),
			zap.Int("citations", len(citations)))
	}
	return nil
}

func (p *Pipeline) recordError(runID, url, step string, err error) {
	kind := string(discovery.KindOf(err))
	p.tracker.Record(progress.Event{
		Kind: progress.EventError, RunID: runID, URL: url,
		Step: step, Detail: err.Error(), ErrKind: kind,
	})
	metrics.ObserveError(kind, step)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
