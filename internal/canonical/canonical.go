// Package canonical normalizes URLs into stable dedup identities and expands
// them into alternate-access branch plans.
package canonical

import (
	"net/url"
	"strings"
)

// trackingParams are removed wholesale during canonicalization.
var trackingParams = map[string]struct{}{
	"fbclid":     {},
	"gclid":      {},
	"dclid":      {},
	"msclkid":    {},
	"yclid":      {},
	"wbraid":     {},
	"gbraid":     {},
	"mc_cid":     {},
	"mc_eid":     {},
	"spm":        {},
	"cmpid":      {},
	"smid":       {},
	"ito":        {},
	"ocid":       {},
	"cmp":        {},
	"ref_src":    {},
	"ref_url":    {},
	"share_type": {},
}

// trackingPrefixes catch utm_source style keys without enumerating them.
var trackingPrefixes = []string{"utm_", "icid", "ncid", "igshid"}

// collapseSegments are mobile/amp/print path markers removed so variant URLs
// share an identity with their base article.
var collapseSegments = map[string]struct{}{
	"amp":    {},
	"mobile": {},
	"print":  {},
}

// Canonicalize normalizes a URL to its stable identity string. It never
// returns an error: on parse failure the trimmed original comes back
// unchanged, since dedup must not throw.
//
// Rules: https assumed when the scheme is missing, host lowercased, exactly
// one leading "www." stripped, fragment dropped, tracking parameters removed,
// amp/mobile/print path segments collapsed, remaining query sorted by key,
// default ports removed.
func Canonicalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return trimmed
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimPrefix(u.Host, "www.")
	u.Host = stripDefaultPort(u.Scheme, u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = collapsePath(u.Path)
	u.RawQuery = normalizeQuery(u.Query())
	u.ForceQuery = false

	return u.String()
}

// DomainOf extracts the lowercased registrable host from a URL, or "" when
// the input is empty or unparseable.
func DomainOf(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || !strings.Contains(host, ".") {
		return ""
	}
	return host
}

func stripDefaultPort(scheme, host string) string {
	switch scheme {
	case "http":
		return strings.TrimSuffix(host, ":80")
	case "https":
		return strings.TrimSuffix(host, ":443")
	}
	return host
}

func collapsePath(path string) string {
	if path == "" || path == "/" {
		return path
	}
	segments := strings.Split(path, "/")
	kept := segments[:0]
	for _, seg := range segments {
		if _, drop := collapseSegments[strings.ToLower(seg)]; drop {
			continue
		}
		kept = append(kept, seg)
	}
	out := strings.Join(kept, "/")
	if out == "" {
		out = "/"
	}
	return out
}

func normalizeQuery(values url.Values) string {
	for key := range values {
		if isTrackingParam(key) {
			delete(values, key)
		}
	}
	// url.Values.Encode sorts keys, which gives the order-independence the
	// dedup identity requires.
	return values.Encode()
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	if _, exact := trackingParams[lower]; exact {
		return true
	}
	for _, prefix := range trackingPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
