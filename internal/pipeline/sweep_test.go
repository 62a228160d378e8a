package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/fetch"
)

func TestSweepResetsHighScoredDenials(t *testing.T) {
	e := newEnv(t, Config{SweepThreshold: 60})
	score := 75
	require.NoError(t, e.citations.CreateCitations(context.Background(), []discovery.Citation{{
		ID: "c1", RunID: "r1", URL: externalURL,
		Decision:           discovery.DecisionDenied,
		ScanStatus:         discovery.ScanScannedDenied,
		VerificationStatus: discovery.VerificationVerified,
		Score:              &score,
		ErrorText:          "off topic",
	}}))

	report, err := e.pipeline.Sweep(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Anomalies)
	assert.Equal(t, 1, report.Reset)

	c, err := e.citations.GetCitation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, discovery.VerificationPending, c.VerificationStatus)
	assert.Equal(t, discovery.ScanNotScanned, c.ScanStatus)
	assert.Equal(t, discovery.DecisionNone, c.Decision)
	assert.True(t, c.Rescan, "reset citation must bypass dedup once")
	assert.Empty(t, c.ErrorText)
	require.NotNil(t, c.Score, "prior score survives for comparison")
	assert.Equal(t, 75, *c.Score)
}

func TestSweepIgnoresLowScoredDenials(t *testing.T) {
	e := newEnv(t, Config{SweepThreshold: 60})
	score := 30
	require.NoError(t, e.citations.CreateCitations(context.Background(), []discovery.Citation{{
		ID: "c1", RunID: "r1", Decision: discovery.DecisionDenied,
		ScanStatus: discovery.ScanScannedDenied, Score: &score,
	}}))

	report, err := e.pipeline.Sweep(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Anomalies)
}

func TestSweepResetsSavedWithDanglingContent(t *testing.T) {
	e := newEnv(t, Config{})
	require.NoError(t, e.citations.CreateCitations(context.Background(), []discovery.Citation{{
		ID: "dangling", RunID: "r1", Decision: discovery.DecisionSaved,
		ScanStatus: discovery.ScanScanned, ContentID: "",
	}}))

	report, err := e.pipeline.Sweep(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reset)

	c, _ := e.citations.GetCitation(context.Background(), "dangling")
	assert.Equal(t, discovery.DecisionNone, c.Decision)
	assert.True(t, c.Rescan)
}

func TestSweptCitationBypassesDedupOnce(t *testing.T) {
	e := newEnv(t, Config{MinTextLength: 50, SweepThreshold: 60})
	seedOnePage(t, e)

	e.scanner.scans[pageURL] = fetch.PageScan{
		Candidates: []fetch.CitationCandidate{{URL: externalURL}},
	}
	e.verifier.results[externalURL] = fetch.VerifyResult{StatusCode: 200}
	e.fetcher.bodies[externalURL] = articleHTML("rescan target")

	// First pass: the oracle wrongly denies with a high score.
	e.vetter.assessment.Decision = discovery.DecisionDenied
	e.vetter.assessment.Score = 82
	e.vetter.assessment.Reason = "misjudged"
	_, err := e.pipeline.ProcessNext(context.Background(), "r1", discovery.Topic{Name: "t"})
	require.NoError(t, err)

	sweep, err := e.pipeline.Sweep(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, 1, sweep.Reset)

	// Second pass: the URL is already in the seen ledger, but the rescan
	// flag lets it through to a fresh vetting.
	e.vetter.assessment.Decision = discovery.DecisionSaved
	report, err := e.pipeline.ProcessNext(context.Background(), "r1", discovery.Topic{Name: "t"})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Duplicates)
	assert.Equal(t, 1, report.Saved)

	page, _ := e.pages.PageByURL(context.Background(), "r1", pageURL)
	cits, _ := e.citations.ListByPage(context.Background(), page.ID)
	require.Len(t, cits, 1)
	assert.Equal(t, discovery.DecisionSaved, cits[0].Decision)
	assert.False(t, cits[0].Rescan, "rescan flag is consumed by the pass")
}
