package canonical

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Resolution is the outcome of redirect-following canonicalization.
type Resolution struct {
	CanonicalURL string
	FinalURL     string
	Chain        []string
}

// Resolver is the slow canonicalization variant: it follows redirects before
// canonicalizing the final location.
type Resolver struct {
	client       *http.Client
	maxRedirects int
	logger       *zap.Logger
}

// NewResolver builds a Resolver. maxRedirects defaults to 5.
func NewResolver(client *http.Client, maxRedirects int, logger *zap.Logger) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if maxRedirects <= 0 {
		maxRedirects = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{client: client, maxRedirects: maxRedirects, logger: logger}
}

// Resolve follows up to maxRedirects redirects via HEAD (falling back to GET
// when HEAD is rejected) and returns the canonical form of the final
// location, recording the full chain.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Resolution, error) {
	current := raw
	chain := []string{current}

	for hop := 0; hop < r.maxRedirects; hop++ {
		location, redirected, err := r.probe(ctx, current)
		if err != nil {
			return Resolution{}, fmt.Errorf("resolve %s: %w", current, err)
		}
		if !redirected {
			break
		}
		current = location
		chain = append(chain, current)
	}

	return Resolution{
		CanonicalURL: Canonicalize(current),
		FinalURL:     current,
		Chain:        chain,
	}, nil
}

func (r *Resolver) probe(ctx context.Context, target string) (string, bool, error) {
	location, redirected, err := r.probeMethod(ctx, http.MethodHead, target)
	if err == nil {
		return location, redirected, nil
	}
	r.logger.Debug("head probe failed, retrying with get",
		zap.String("url", target), zap.Error(err))
	return r.probeMethod(ctx, http.MethodGet, target)
}

func (r *Resolver) probeMethod(ctx context.Context, method, target string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}

	// Redirects are walked manually so the chain can be recorded.
	client := *r.client
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc, err := resp.Location()
		if err != nil {
			return "", false, fmt.Errorf("redirect without location: %w", err)
		}
		return loc.String(), true, nil
	}
	if resp.StatusCode >= 400 {
		return "", false, fmt.Errorf("%s %s: status %d", method, target, resp.StatusCode)
	}
	return "", false, nil
}
