package vetting

import (
	"regexp"
	"strings"
)

// catalogVocabulary marks records-and-identifiers pages that read as metadata
// rather than prose. Three or more distinct hits fail the shape check.
var catalogVocabulary = []string{
	"accession number",
	"call number",
	"catalog record",
	"identifier:",
	"holdings",
	"isbn:",
	"issn:",
	"oclc",
	"permalink",
	"record id",
	"shelfmark",
}

var sentenceBoundary = regexp.MustCompile(`[.!?]["')\]]?\s`)

const (
	minParagraphs = 2
	minSentences  = 3
	// Long documents with real sentence flow pass even when paragraph
	// detection fails, e.g. single-block transcripts.
	lenientBytes     = 5000
	lenientSentences = 10
)

// ArticleShaped reports whether text reads like prose: paragraph structure,
// sentence flow, and not a wall of catalog metadata.
func ArticleShaped(text string) (bool, string) {
	sentences := len(sentenceBoundary.FindAllString(text, -1))

	if len(text) >= lenientBytes && sentences >= lenientSentences {
		return true, ""
	}

	paragraphs := countParagraphs(text)
	if paragraphs < minParagraphs {
		return false, "too few paragraphs"
	}
	if sentences < minSentences {
		return false, "too few sentences"
	}

	lower := strings.ToLower(text)
	hits := 0
	for _, term := range catalogVocabulary {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	if hits >= 3 {
		return false, "catalog vocabulary"
	}
	return true, ""
}

func countParagraphs(text string) int {
	count := 0
	for _, block := range strings.Split(text, "\n") {
		if len(strings.TrimSpace(block)) > 40 {
			count++
		}
	}
	return count
}
