package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestCreatePageInsertsRow(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	store := NewPageStore(mock)

	now := time.Unix(1700000000, 0).UTC()
	page := discovery.MonitoredPage{
		ID:       "p1",
		RunID:    "r1",
		URL:      "https://en.wikipedia.org/wiki/Ada_Lovelace",
		Priority: 135,
		Status:   discovery.PageStatusPending,
		Created:  now,
		Updated:  now,
	}

	mock.ExpectExec("INSERT INTO monitored_pages").
		WithArgs(page.ID, page.RunID, page.URL, "", "", page.Priority,
			discovery.PageStatusPending, false, false, 0, "", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreatePage(context.Background(), page))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePageMissingRowIsNotFound(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	store := NewPageStore(mock)

	mock.ExpectExec("UPDATE monitored_pages").
		WithArgs("ghost", "", discovery.PageStatusCompleted, false, false, 0, "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdatePage(context.Background(), discovery.MonitoredPage{
		ID: "ghost", Status: discovery.PageStatusCompleted,
	})
	assert.ErrorIs(t, err, discovery.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNextCitationsQueryShape(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	store := NewCitationStore(mock)

	now := time.Unix(1700000000, 0).UTC()
	priority := 120

	rows := pgxmock.NewRows([]string{
		"id", "page_id", "run_id", "source_number", "url", "title", "context",
		"score", "priority", "verification_status", "scan_status", "relevance_decision",
		"content_id", "rescan", "extracted_text", "error_text", "created_at", "updated_at",
	}).AddRow(
		"c1", "p1", "r1", 1, "https://example.com/a", "A", "ctx",
		(*int)(nil), &priority, discovery.VerificationPending, discovery.ScanNotScanned,
		discovery.DecisionNone, "", false, "", "", now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM citations").
		WithArgs("r1", []string{"pending"}, 10).
		WillReturnRows(rows)

	got, err := store.NextCitations(context.Background(), "r1",
		[]discovery.VerificationStatus{discovery.VerificationPending}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)
	require.NotNil(t, got[0].Priority)
	assert.Equal(t, 120, *got[0].Priority)
	assert.Nil(t, got[0].Score)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnomaliesQueryArgs(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	store := NewCitationStore(mock)

	mock.ExpectQuery("SELECT (.+) FROM citations").
		WithArgs("r1", 60).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "page_id", "run_id", "source_number", "url", "title", "context",
			"score", "priority", "verification_status", "scan_status", "relevance_decision",
			"content_id", "rescan", "extracted_text", "error_text", "created_at", "updated_at",
		}))

	got, err := store.Anomalies(context.Background(), "r1", 60)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSeenUpserts(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	store := NewSeenStore(mock)

	at := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("INSERT INTO seen_urls").
		WithArgs("r1", "abc123", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.MarkSeen(context.Background(), "r1", "abc123", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeenChecksExistence(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	store := NewSeenStore(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("r1", "abc123").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	seen, err := store.Seen(context.Background(), "r1", "abc123")
	require.NoError(t, err)
	assert.True(t, seen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSummaryMarshalsHistograms(t *testing.T) {
	t.Parallel()
	mock := newMock(t)
	store := NewSummaryStore(mock)

	now := time.Unix(1700000000, 0).UTC()
	sum := discovery.RunSummary{
		RunID:    "r1",
		Topic:    "Ada Lovelace",
		Started:  now,
		Finished: now.Add(time.Minute),
		Attempts: map[string]int{"verify": 4},
		Saved:    2,
		Denied:   1,
		Errors:   map[string]int{"network": 1},
	}

	mock.ExpectExec("INSERT INTO run_summaries").
		WithArgs(sum.RunID, sum.Topic, sum.Started, sum.Finished,
			[]byte(`{"verify":4}`), 0, 2, 1, []byte(`{"network":1}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveSummary(context.Background(), sum))
	require.NoError(t, mock.ExpectationsWereMet())
}
