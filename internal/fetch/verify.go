package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/canonical"
	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

const maxBodyBytes = 4 << 20

// forcedGetDomains reject or lie to HEAD requests; verification goes straight
// to GET for them.
var forcedGetDomains = []string{
	"medium.com",
	"substack.com",
	"reddit.com",
	"bloomberg.com",
	"forbes.com",
}

// VerifyResult is the outcome of URL verification. Body is populated when a
// GET was issued so callers can reuse it without a second fetch.
type VerifyResult struct {
	StatusCode int
	FinalURL   string
	Body       []byte
	UsedGet    bool
}

// Verifier confirms a citation URL is reachable before scanning.
type Verifier struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewVerifier builds a Verifier. timeout defaults to 10s.
func NewVerifier(client *http.Client, timeout time.Duration, logger *zap.Logger) *Verifier {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{client: client, timeout: timeout, logger: logger}
}

// Verify tries HEAD first unless the domain is on the forced-GET list; on
// HEAD failure or a non-OK status it retries once with GET. Failure is
// declared only when both attempts fail.
func (v *Verifier) Verify(ctx context.Context, rawURL string) (VerifyResult, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if !forcedGet(rawURL) {
		result, err := v.attempt(ctx, http.MethodHead, rawURL)
		if err == nil && result.StatusCode < 400 {
			return result, nil
		}
		if err != nil {
			v.logger.Debug("head verification failed, falling back to get",
				zap.String("url", rawURL), zap.Error(err))
		}
	}

	result, err := v.attempt(ctx, http.MethodGet, rawURL)
	if err != nil {
		return VerifyResult{}, discovery.NewError(discovery.KindNetwork, "verify",
			fmt.Errorf("verify %s: %w", rawURL, err))
	}
	if result.StatusCode >= 400 {
		return VerifyResult{}, discovery.NewError(discovery.KindNetwork, "verify",
			fmt.Errorf("verify %s: status %d", rawURL, result.StatusCode))
	}
	return result, nil
}

func (v *Verifier) attempt(ctx context.Context, method, rawURL string) (VerifyResult, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := v.client.Do(req)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	result := VerifyResult{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		UsedGet:    method == http.MethodGet,
	}
	if method == http.MethodGet && resp.StatusCode < 400 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return VerifyResult{}, fmt.Errorf("read body: %w", err)
		}
		result.Body = body
	}
	return result, nil
}

func forcedGet(rawURL string) bool {
	domain := canonical.DomainOf(rawURL)
	if domain == "" {
		return false
	}
	for _, d := range forcedGetDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}
