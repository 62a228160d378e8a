package canonical

import (
	"fmt"
	"net/url"
	"strings"
)

// Branch is one alternate-access candidate for a possibly paywalled URL.
type Branch struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// BranchMeta carries optional primary/mirror hints for branch planning.
type BranchMeta struct {
	PrimaryURLs []string
	MirrorURLs  []string
}

// PlanBranches expands a canonical URL into an ordered, deduplicated list of
// access candidates: the canonical URL first, then amp-subdomain and /amp
// path variants, mobile subdomain, a print-query variant, then primaries and
// mirrors. Dedup identity is the fast-canonical form, so variants that
// collapse back onto an earlier entry are dropped.
func PlanBranches(canonicalURL string, meta BranchMeta) []Branch {
	var (
		branches []Branch
		seen     = make(map[string]struct{})
	)
	add := func(label, candidate string) {
		if candidate == "" {
			return
		}
		identity := Canonicalize(candidate)
		if _, dup := seen[identity]; dup {
			return
		}
		seen[identity] = struct{}{}
		branches = append(branches, Branch{Label: label, URL: candidate})
	}

	add("canonical", canonicalURL)

	u, err := url.Parse(canonicalURL)
	if err == nil && u.Host != "" {
		if amp := ampSubdomain(u); amp != "" {
			add("amp", amp)
		}
		if ampPath := ampPathVariant(u); ampPath != "" {
			add("amp-path", ampPath)
		}
		if mobile := mobileSubdomain(u); mobile != "" {
			add("mobile", mobile)
		}
		add("print", printVariant(u))
	}

	addCategory(add, "primary", meta.PrimaryURLs)
	addCategory(add, "mirror", meta.MirrorURLs)

	return branches
}

func addCategory(add func(label, candidate string), category string, urls []string) {
	n := 0
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		n++
		label := category
		if n > 1 {
			label = fmt.Sprintf("%s-%d", category, n)
		}
		add(label, raw)
	}
}

func ampSubdomain(u *url.URL) string {
	host := u.Hostname()
	if strings.HasPrefix(host, "amp.") {
		return ""
	}
	clone := *u
	clone.Host = "amp." + host
	return clone.String()
}

// ampPathVariant prefixes /amp onto the path. Candidates generated from a URL
// that already carries an amp segment are skipped so the marker is never
// applied twice.
func ampPathVariant(u *url.URL) string {
	if strings.Contains(u.Path+"/", "/amp/") {
		return ""
	}
	clone := *u
	path := clone.Path
	if path == "" {
		path = "/"
	}
	clone.Path = "/amp" + path
	candidate := clone.String()
	if strings.Count(candidate, "/amp/") > 1 {
		return ""
	}
	return candidate
}

func mobileSubdomain(u *url.URL) string {
	host := u.Hostname()
	if strings.HasPrefix(host, "m.") || strings.HasPrefix(host, "mobile.") {
		return ""
	}
	clone := *u
	clone.Host = "m." + host
	return clone.String()
}

func printVariant(u *url.URL) string {
	clone := *u
	q := clone.Query()
	q.Set("output", "print")
	clone.RawQuery = q.Encode()
	return clone.String()
}
