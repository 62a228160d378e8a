package vetting

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

type fakeOracle struct {
	verdict Verdict
	err     error
	prompts []string
}

func (f *fakeOracle) Score(_ context.Context, text string, _ discovery.Topic) (Verdict, error) {
	f.prompts = append(f.prompts, text)
	return f.verdict, f.err
}

func articleText() string {
	para := strings.Repeat("The committee reviewed the proposal in detail. ", 5)
	return para + "\n" + para + "\n" + para
}

func TestVetAcceptsRelevantHighScore(t *testing.T) {
	oracle := &fakeOracle{verdict: Verdict{Score: 85, Relevant: true, Reason: "solid coverage"}}
	v := New(oracle, nil, Config{ScoreThreshold: 60, MinTextLength: 100}, zap.NewNop())

	got, err := v.Vet(context.Background(), articleText(), "https://example.com/report", discovery.Topic{Name: "Ada Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, discovery.DecisionSaved, got.Decision)
	assert.Equal(t, 85, got.Score)
	assert.NotEmpty(t, got.Text)
}

func TestVetDeniesBelowThreshold(t *testing.T) {
	oracle := &fakeOracle{verdict: Verdict{Score: 59, Relevant: true}}
	v := New(oracle, nil, Config{ScoreThreshold: 60, MinTextLength: 100}, zap.NewNop())

	got, err := v.Vet(context.Background(), articleText(), "https://example.com/x", discovery.Topic{Name: "t"})
	require.NoError(t, err)
	assert.Equal(t, discovery.DecisionDenied, got.Decision)
}

func TestVetDeniesIrrelevantDespiteHighScore(t *testing.T) {
	oracle := &fakeOracle{verdict: Verdict{Score: 95, Relevant: false, Reason: "off topic"}}
	v := New(oracle, nil, Config{ScoreThreshold: 60, MinTextLength: 100}, zap.NewNop())

	got, err := v.Vet(context.Background(), articleText(), "https://example.com/x", discovery.Topic{Name: "t"})
	require.NoError(t, err)
	assert.Equal(t, discovery.DecisionDenied, got.Decision)
	assert.Equal(t, "off topic", got.Reason)
}

func TestVetDeniesShortContentWithoutOracle(t *testing.T) {
	oracle := &fakeOracle{verdict: Verdict{Score: 100, Relevant: true}}
	v := New(oracle, nil, Config{ScoreThreshold: 60, MinTextLength: 500}, zap.NewNop())

	got, err := v.Vet(context.Background(), "tiny", "https://example.com/x", discovery.Topic{Name: "t"})
	require.NoError(t, err)
	assert.Equal(t, discovery.DecisionDenied, got.Decision)
	assert.Empty(t, oracle.prompts, "oracle must not be called for short content")
}

func TestVetPropagatesOracleFailure(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("model unavailable")}
	v := New(oracle, nil, Config{ScoreThreshold: 60, MinTextLength: 100}, zap.NewNop())

	_, err := v.Vet(context.Background(), articleText(), "https://example.com/x", discovery.Topic{Name: "t"})
	require.Error(t, err)
}

func TestVetSafetyRejectionDenies(t *testing.T) {
	oracle := &fakeOracle{verdict: Verdict{Score: 90, Relevant: true}}
	v := New(oracle, nil, Config{ScoreThreshold: 60, MinTextLength: 100}, zap.NewNop())

	text := articleText() + "\nContact the author at jane.doe@example.com for details."
	got, err := v.Vet(context.Background(), text, "https://example.com/x", discovery.Topic{Name: "t"})
	require.NoError(t, err)
	assert.Equal(t, discovery.DecisionDenied, got.Decision)
	assert.Contains(t, got.Reason, "safety")
}

func TestArticleShaped(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"prose", articleText(), true},
		{"single block", strings.Repeat("word ", 30), false},
		{
			"catalog page",
			"Record ID: 1234. Call number: QA76. ISBN: 978-0. Permalink available.\n" +
				"Holdings listed below for this catalog record entry here.\n" +
				"Accession number noted in the record.",
			false,
		},
		{
			"long transcript leniency",
			strings.Repeat("And then we talked about the machine. It was remarkable. ", 120),
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := ArticleShaped(tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGuardRejectsPII(t *testing.T) {
	g := NewGuard()
	tests := []struct {
		name string
		text string
	}{
		{"email", "write to sam@corp.example.org today"},
		{"phone", "call 555-867-5309 now"},
		{"address", "she lives at 42 Maple Street in town"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Check(tt.text, "https://example.com/a")
			require.Error(t, err)
			assert.Equal(t, discovery.KindSafety, discovery.KindOf(err))
		})
	}
}

func TestGuardAllegationPolicy(t *testing.T) {
	g := NewGuard()
	text := "The executive was allegedly involved in the scheme, the report said."

	_, err := g.Check(text, "https://sketchy.example.net/post")
	require.Error(t, err, "untrusted host may not carry allegations")

	out, err := g.Check(text, "https://www.reuters.com/article/1")
	require.NoError(t, err)
	assert.Equal(t, text, out)
}

func TestGuardCapsQuotes(t *testing.T) {
	g := NewGuard()
	longQuote := strings.Repeat("quoted words here again ", 40) // well past 100 words
	text := `Intro paragraph. "` + strings.TrimSpace(longQuote) + `" Closing remark.`

	out, err := g.Check(text, "https://example.com/a")
	require.NoError(t, err)
	assert.Less(t, len(out), len(text))
	assert.Contains(t, out, "[...]")
	assert.Contains(t, out, "Closing remark.")
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Verdict
		wantErr bool
	}{
		{
			"clean json",
			`{"score": 72, "relevant": true, "reason": "good"}`,
			Verdict{Score: 72, Relevant: true, Reason: "good"},
			false,
		},
		{
			"fenced",
			"```json\n{\"score\": 40, \"relevant\": false, \"reason\": \"thin\"}\n```",
			Verdict{Score: 40, Relevant: false, Reason: "thin"},
			false,
		},
		{
			"chatty preamble",
			`Sure! Here is my assessment: {"score": 66, "relevant": true, "reason": "ok"} hope that helps`,
			Verdict{Score: 66, Relevant: true, Reason: "ok"},
			false,
		},
		{
			"field scrape",
			`score: 88, relevant: true`,
			Verdict{Score: 88, Relevant: true, Reason: "recovered from malformed response"},
			false,
		},
		{
			"clamped",
			`{"score": 400, "relevant": true}`,
			Verdict{Score: 100, Relevant: true},
			false,
		},
		{"garbage", "I cannot judge this.", Verdict{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
