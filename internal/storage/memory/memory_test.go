package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

func intPtr(v int) *int { return &v }

func TestNextPagesOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewPageStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreatePage(ctx, discovery.MonitoredPage{
		ID: "low", RunID: "r1", Priority: 50, Status: discovery.PageStatusPending, Created: base,
	}))
	require.NoError(t, store.CreatePage(ctx, discovery.MonitoredPage{
		ID: "high", RunID: "r1", Priority: 120, Status: discovery.PageStatusPending, Created: base.Add(time.Minute),
	}))
	require.NoError(t, store.CreatePage(ctx, discovery.MonitoredPage{
		ID: "done", RunID: "r1", Priority: 200, Status: discovery.PageStatusCompleted, Created: base,
	}))
	require.NoError(t, store.CreatePage(ctx, discovery.MonitoredPage{
		ID: "errored", RunID: "r1", Priority: 120, Status: discovery.PageStatusError, Created: base,
	}))

	got, err := store.NextPages(ctx, "r1", 10)
	require.NoError(t, err)
	require.Len(t, got, 3, "completed pages are not pickup eligible")
	assert.Equal(t, "errored", got[0].ID, "equal priority breaks on earlier creation")
	assert.Equal(t, "high", got[1].ID)
	assert.Equal(t, "low", got[2].ID)
}

func TestNextCitationsPickerOrder(t *testing.T) {
	ctx := context.Background()
	store := NewCitationStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateCitations(ctx, []discovery.Citation{
		{ID: "nil-prio", RunID: "r1", VerificationStatus: discovery.VerificationPending, Decision: discovery.DecisionNone, Created: base},
		{ID: "p90", RunID: "r1", Priority: intPtr(90), VerificationStatus: discovery.VerificationPending, Decision: discovery.DecisionNone, Created: base.Add(time.Hour)},
		{ID: "p120", RunID: "r1", Priority: intPtr(120), VerificationStatus: discovery.VerificationPending, Decision: discovery.DecisionNone, Created: base.Add(2 * time.Hour)},
		{ID: "wiki", RunID: "r1", Priority: intPtr(200), VerificationStatus: discovery.VerificationPendingWiki, Decision: discovery.DecisionNone, Created: base},
		{ID: "decided", RunID: "r1", Priority: intPtr(300), VerificationStatus: discovery.VerificationPending, Decision: discovery.DecisionSaved, Created: base},
	}))

	got, err := store.NextCitations(ctx, "r1", []discovery.VerificationStatus{discovery.VerificationPending}, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "p120", got[0].ID)
	assert.Equal(t, "p90", got[1].ID)
	assert.Equal(t, "nil-prio", got[2].ID, "unset priority sorts last")

	wiki, err := store.NextCitations(ctx, "r1", []discovery.VerificationStatus{discovery.VerificationPendingWiki}, 10)
	require.NoError(t, err)
	require.Len(t, wiki, 1)
	assert.Equal(t, "wiki", wiki[0].ID)
}

func TestAnomalies(t *testing.T) {
	ctx := context.Background()
	store := NewCitationStore()

	require.NoError(t, store.CreateCitations(ctx, []discovery.Citation{
		{ID: "denied-high", RunID: "r1", Decision: discovery.DecisionDenied, Score: intPtr(75)},
		{ID: "denied-low", RunID: "r1", Decision: discovery.DecisionDenied, Score: intPtr(40)},
		{ID: "saved-dangling", RunID: "r1", Decision: discovery.DecisionSaved, ContentID: ""},
		{ID: "saved-linked", RunID: "r1", Decision: discovery.DecisionSaved, ContentID: "c1"},
		{ID: "other-run", RunID: "r2", Decision: discovery.DecisionDenied, Score: intPtr(99)},
	}))

	got, err := store.Anomalies(ctx, "r1", 60)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"denied-high", "saved-dangling"}, ids)
}

func TestContentStoreLookup(t *testing.T) {
	ctx := context.Background()
	store := NewContentStore()

	id, err := store.CreateContent(ctx, discovery.DiscoveredContent{
		ID: "c1", RunID: "r1", CanonicalURL: "https://example.com/a",
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", id)

	got, err := store.ContentByURL(ctx, "r1", "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)

	_, err = store.ContentByURL(ctx, "r2", "https://example.com/a")
	assert.ErrorIs(t, err, discovery.ErrNotFound, "content is run scoped")

	ok, err := store.ContentExists(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSeenStoreScopesAndCounts(t *testing.T) {
	ctx := context.Background()
	store := NewSeenStore()
	now := time.Now()

	require.NoError(t, store.MarkSeen(ctx, "r1", "hash1", now))
	require.NoError(t, store.MarkSeen(ctx, "r1", "hash1", now.Add(time.Minute)))

	seen, err := store.Seen(ctx, "r1", "hash1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = store.Seen(ctx, "r2", "hash1")
	require.NoError(t, err)
	assert.False(t, seen, "ledger rows are run scoped")
}

func TestSummaryStoreFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	store := NewSummaryStore()

	require.NoError(t, store.SaveSummary(ctx, discovery.RunSummary{RunID: "r1", Saved: 3}))
	require.NoError(t, store.SaveSummary(ctx, discovery.RunSummary{RunID: "r1", Saved: 99}))

	got, err := store.GetSummary(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Saved, "summaries are immutable")
}
