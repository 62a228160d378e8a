package fetch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func articleHTML(paragraphs int) string {
	var sb strings.Builder
	sb.WriteString("<html><head><title>Test Article</title></head><body>")
	sb.WriteString("<nav>Home | About | Contact</nav><article>")
	for i := 0; i < paragraphs; i++ {
		sb.WriteString("<p>This is a reasonably long sentence of article prose. ")
		sb.WriteString("It continues with a second sentence to look like writing.</p>")
	}
	sb.WriteString("</article><footer>copyright</footer></body></html>")
	return sb.String()
}

func TestExtractReadablePass(t *testing.T) {
	t.Parallel()

	ex := Extract([]byte(articleHTML(10)))
	assert.Equal(t, "readable", ex.Pass)
	assert.Equal(t, "Test Article", ex.Title)
	assert.GreaterOrEqual(t, len(ex.Text), goodEnoughChars)
	assert.NotContains(t, ex.Text, "Home | About")
}

func TestExtractFallsBackToStrip(t *testing.T) {
	t.Parallel()

	// No article/main landmark; prose lives in bare paragraphs.
	var sb strings.Builder
	sb.WriteString("<html><body><div class=\"page\">")
	for i := 0; i < 12; i++ {
		sb.WriteString("<p>Paragraph prose without any landmark container around it at all. ")
		sb.WriteString("A second sentence pads things out a little more.</p>")
	}
	sb.WriteString("</div></body></html>")

	ex := Extract([]byte(sb.String()))
	assert.Equal(t, "strip", ex.Pass)
	assert.GreaterOrEqual(t, len(ex.Text), goodEnoughChars)
}

func TestExtractRawLastResort(t *testing.T) {
	t.Parallel()

	ex := Extract([]byte("plain text with <b>no</b> structure <script>var x=1;</script>here"))
	require.Equal(t, "raw", ex.Pass)
	assert.Contains(t, ex.Text, "plain text with no structure")
	assert.NotContains(t, ex.Text, "var x=1")
}

func TestDenylist(t *testing.T) {
	t.Parallel()

	dl := NewDenylist([]string{"spam.example"})

	cases := []struct {
		url     string
		blocked bool
	}{
		{"https://id.loc.gov/authorities/names/n79021164", true},
		{"https://web.archive.org/web/2024/https://example.com", true},
		{"https://www.youtube.com/watch?v=abc", true},
		{"https://example.com/catalog/item/12", true},
		{"https://sub.spam.example/post", true},
		{"https://www.reuters.com/world/story", false},
		{"https://en.wikipedia.org/wiki/Topic", false},
	}
	for _, tc := range cases {
		reason, blocked := dl.Blocked(tc.url)
		assert.Equal(t, tc.blocked, blocked, "url %s (reason %q)", tc.url, reason)
	}
}

func TestJSDetector(t *testing.T) {
	t.Parallel()

	d := newJSDetector(100, nil)
	assert.True(t, d.NeedsJS([]byte("tiny")))
	assert.True(t, d.NeedsJS([]byte(strings.Repeat("x", 200)+"Please Enable JavaScript to continue")))
	assert.False(t, d.NeedsJS([]byte(strings.Repeat("regular content ", 50))))
}
