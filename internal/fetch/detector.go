package fetch

import (
	"bytes"
	"strings"
)

// jsDetector decides whether a static fetch likely missed JS-rendered
// content and a headless render is worth the cost.
type jsDetector struct {
	minHTMLBytes int
	keywords     [][]byte
}

var defaultJSKeywords = []string{
	"enable javascript",
	"javascript is required",
	"javascript is disabled",
	"please turn on javascript",
	"you need to enable javascript",
}

func newJSDetector(minBytes int, keywords []string) *jsDetector {
	if len(keywords) == 0 {
		keywords = defaultJSKeywords
	}
	lower := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lower = append(lower, bytes.ToLower([]byte(kw)))
	}
	return &jsDetector{minHTMLBytes: minBytes, keywords: lower}
}

// NeedsJS inspects the body for signals that rendering is required.
func (d *jsDetector) NeedsJS(body []byte) bool {
	if d == nil {
		return false
	}
	if d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes {
		return true
	}
	if len(body) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}
