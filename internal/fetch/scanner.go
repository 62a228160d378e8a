package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// CitationCandidate is a reference link lifted from a monitored page before
// canonicalization and numbering.
type CitationCandidate struct {
	URL     string
	Title   string
	Context string
}

// PageScan is the result of scanning one monitored page.
type PageScan struct {
	Title      string
	Candidates []CitationCandidate
}

// ScannerConfig controls the colly collector.
type ScannerConfig struct {
	UserAgent string
	Timeout   time.Duration
	// MaxCandidates caps link extraction per page.
	MaxCandidates int
}

// Scanner fetches a source page and extracts its outbound citations using a
// colly collector.
type Scanner struct {
	cfg    ScannerConfig
	base   *colly.Collector
	logger *zap.Logger
}

// NewScanner builds a Scanner.
func NewScanner(cfg ScannerConfig, logger *zap.Logger) *Scanner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = false
	return &Scanner{cfg: cfg, base: c, logger: logger}
}

// Scan visits the page and collects anchor candidates with their surrounding
// text as context. The visit honors ctx cancellation.
func (s *Scanner) Scan(ctx context.Context, pageURL string) (PageScan, error) {
	var (
		scan     PageScan
		fetchErr error
	)

	collector := s.base.Clone()
	if s.cfg.UserAgent != "" {
		collector.UserAgent = s.cfg.UserAgent
	}
	collector.SetRequestTimeout(s.cfg.Timeout)

	collector.OnHTML("title", func(e *colly.HTMLElement) {
		if scan.Title == "" {
			scan.Title = strings.TrimSpace(e.Text)
		}
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if len(scan.Candidates) >= s.cfg.MaxCandidates {
			return
		}
		candidate, ok := s.candidateFromAnchor(e)
		if !ok {
			return
		}
		scan.Candidates = append(scan.Candidates, candidate)
	})

	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = fmt.Errorf("scan %s: status %d: %w", pageURL, status, err)
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return PageScan{}, discovery.NewError(discovery.KindNetwork, "scan",
			fmt.Errorf("scan canceled: %w", ctx.Err()))
	case err := <-done:
		if err != nil {
			return PageScan{}, discovery.NewError(discovery.KindNetwork, "scan",
				fmt.Errorf("visit %s: %w", pageURL, err))
		}
		if fetchErr != nil {
			return PageScan{}, discovery.NewError(discovery.KindNetwork, "scan", fetchErr)
		}
		return scan, nil
	}
}

func (s *Scanner) candidateFromAnchor(e *colly.HTMLElement) (CitationCandidate, bool) {
	href := strings.TrimSpace(e.Attr("href"))
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return CitationCandidate{}, false
	}

	absolute := e.Request.AbsoluteURL(href)
	if !strings.HasPrefix(absolute, "http://") && !strings.HasPrefix(absolute, "https://") {
		return CitationCandidate{}, false
	}

	title := strings.TrimSpace(e.Text)
	context := surroundingText(e)
	return CitationCandidate{URL: absolute, Title: title, Context: context}, true
}

// surroundingText captures the enclosing paragraph or list item so the
// vetter sees how the page used the reference.
func surroundingText(e *colly.HTMLElement) string {
	parent := e.DOM.ParentsFiltered("p, li, cite, figcaption").First()
	if parent.Length() == 0 {
		return ""
	}
	text := strings.Join(strings.Fields(parent.Text()), " ")
	const maxContext = 500
	if len(text) > maxContext {
		text = text[:maxContext]
	}
	return text
}

// StatusClass groups HTTP status codes for event labels.
func StatusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}
