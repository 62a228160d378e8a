package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// Renderer is the optional headless fallback used when static HTML is too
// thin to extract.
type Renderer interface {
	Render(ctx context.Context, rawURL string) ([]byte, error)
}

// Content is a fetched page ready for extraction.
type Content struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	UsedJS     bool
	Duration   time.Duration
}

// Fetcher retrieves citation content with a 30s budget and an optional
// headless promotion pass.
type Fetcher struct {
	client   *http.Client
	renderer Renderer
	detector *jsDetector
	timeout  time.Duration
	logger   *zap.Logger
}

// FetcherConfig holds fetcher construction knobs.
type FetcherConfig struct {
	Timeout      time.Duration
	MinHTMLBytes int
	JSKeywords   []string
}

// NewFetcher builds a Fetcher. renderer may be nil to disable headless
// promotion entirely.
func NewFetcher(client *http.Client, renderer Renderer, cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MinHTMLBytes <= 0 {
		cfg.MinHTMLBytes = 2048
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:   client,
		renderer: renderer,
		detector: newJSDetector(cfg.MinHTMLBytes, cfg.JSKeywords),
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

// Fetch GETs the URL. When the body trips the JS heuristic and a renderer is
// configured, the page is re-fetched headlessly; render failure falls back to
// the static body rather than failing the fetch.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Content, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Content{}, discovery.NewError(discovery.KindNetwork, "fetch",
			fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return Content{}, discovery.NewError(discovery.KindNetwork, "fetch",
			fmt.Errorf("get %s: %w", rawURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Content{}, discovery.NewError(discovery.KindNetwork, "fetch",
			fmt.Errorf("get %s: status %d", rawURL, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Content{}, discovery.NewError(discovery.KindNetwork, "fetch",
			fmt.Errorf("read body: %w", err))
	}

	content := Content{
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
		Duration:   time.Since(start),
	}

	if f.renderer != nil && f.detector.NeedsJS(body) {
		rendered, err := f.renderer.Render(ctx, rawURL)
		if err != nil {
			f.logger.Warn("headless render failed, keeping static body",
				zap.String("url", rawURL), zap.Error(err))
			return content, nil
		}
		content.Body = rendered
		content.UsedJS = true
	}
	return content, nil
}

// FromBody wraps an already fetched body (for example the GET issued during
// verification) so extraction does not fetch twice.
func FromBody(rawURL string, statusCode int, body []byte) Content {
	return Content{URL: rawURL, FinalURL: rawURL, StatusCode: statusCode, Body: body}
}
