package fetch

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// goodEnoughChars stops the extraction cascade early: once a pass yields this
// much normalized text there is no point running a cruder one.
const goodEnoughChars = 600

// Extraction is the result of the staged content extraction cascade.
type Extraction struct {
	Title string
	Text  string
	// Pass records which extractor produced the text: readable, strip, raw.
	Pass string
}

// readableSelectors mark the main article body across common page layouts,
// tried in order during the primary pass.
var readableSelectors = []string{
	"article",
	"main",
	"[role=main]",
	".article-body",
	".post-content",
	".entry-content",
	"#mw-content-text",
	"#content",
}

// boilerplateSelectors are removed wholesale during the secondary pass.
var boilerplateSelectors = []string{
	"script", "style", "noscript", "template", "iframe", "svg",
	"nav", "header", "footer", "aside", "form",
	".nav", ".menu", ".sidebar", ".footer", ".comments", ".related",
}

// Extract runs up to three extraction passes over the HTML, stopping at the
// first that produces enough normalized text: readable-content selection,
// boilerplate stripping, then raw tag stripping as last resort.
func Extract(body []byte) Extraction {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Extraction{Text: stripTags(body), Pass: "raw"}
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	if text := extractReadable(doc); len(text) >= goodEnoughChars {
		return Extraction{Title: title, Text: text, Pass: "readable"}
	}
	if text := extractStripped(doc); len(text) >= goodEnoughChars {
		return Extraction{Title: title, Text: text, Pass: "strip"}
	}

	// Last resort: whichever pass got the most text wins, raw included.
	best := Extraction{Title: title, Text: extractReadable(doc), Pass: "readable"}
	if text := extractStripped(doc); len(text) > len(best.Text) {
		best = Extraction{Title: title, Text: text, Pass: "strip"}
	}
	if text := stripTags(body); len(text) > len(best.Text) {
		best = Extraction{Title: title, Text: text, Pass: "raw"}
	}
	return best
}

func extractReadable(doc *goquery.Document) string {
	for _, selector := range readableSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		var parts []string
		sel.Find("p, h1, h2, h3, li").Each(func(_ int, s *goquery.Selection) {
			if t := normalizeSpace(s.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		if text := strings.Join(parts, "\n\n"); len(text) > 0 {
			return text
		}
	}
	return ""
}

func extractStripped(doc *goquery.Document) string {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return ""
	}
	clone := body.Clone()
	for _, selector := range boilerplateSelectors {
		clone.Find(selector).Remove()
	}
	var parts []string
	clone.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := normalizeSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}
	return normalizeSpace(clone.Text())
}

// stripTags walks the raw token stream, keeping text outside script/style.
func stripTags(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	var (
		sb   strings.Builder
		skip int
	)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return normalizeSpace(sb.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isSkippedTag(string(name)) {
				skip++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isSkippedTag(string(name)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(tokenizer.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func isSkippedTag(name string) bool {
	switch name {
	case "script", "style", "noscript", "template":
		return true
	}
	return false
}

// normalizeSpace collapses runs of whitespace but keeps paragraph breaks so
// the article-shape heuristic can still count them.
func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
