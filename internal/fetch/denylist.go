// Package fetch retrieves and extracts page content with staged fallbacks.
package fetch

import (
	"strings"

	"github.com/ddoubleg123/carrot-discovery/internal/canonical"
)

// Denylist rejects known low-quality URLs before any network fetch.
type Denylist struct {
	domains      []string
	pathPatterns []string
}

// Default denylist entries: authority files, archive snapshots, media-only
// hosts, and catalog/record/metadata path shapes that never contain article
// prose.
var (
	denyDomains = []string{
		"id.loc.gov",
		"viaf.org",
		"isni.org",
		"worldcat.org",
		"catalog.hathitrust.org",
		"web.archive.org",
		"archive.today",
		"youtube.com",
		"youtu.be",
		"vimeo.com",
		"soundcloud.com",
		"spotify.com",
		"instagram.com",
		"tiktok.com",
	}
	denyPathPatterns = []string{
		"/catalog/",
		"/catalogue/",
		"/record/",
		"/records/",
		"/authorities/",
		"/metadata/",
		"/oai/",
		"/marc/",
	}
)

// NewDenylist builds the static denylist, appending any extra domains from
// configuration.
func NewDenylist(extraDomains []string) *Denylist {
	domains := append([]string(nil), denyDomains...)
	for _, d := range extraDomains {
		d = strings.TrimSpace(strings.ToLower(d))
		if d != "" {
			domains = append(domains, d)
		}
	}
	return &Denylist{domains: domains, pathPatterns: denyPathPatterns}
}

// Blocked reports whether the URL is on the denylist, with a human-readable
// reason for the audit trail.
func (d *Denylist) Blocked(rawURL string) (string, bool) {
	domain := canonical.DomainOf(rawURL)
	if domain == "" {
		return "", false
	}
	for _, blocked := range d.domains {
		if domain == blocked || strings.HasSuffix(domain, "."+blocked) {
			return "low-quality domain: " + blocked, true
		}
	}

	lower := strings.ToLower(rawURL)
	for _, pattern := range d.pathPatterns {
		if strings.Contains(lower, pattern) {
			return "catalog/metadata path: " + pattern, true
		}
	}
	return "", false
}
