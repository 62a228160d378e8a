package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/pipeline"
	"github.com/ddoubleg123/carrot-discovery/internal/progress"
	"github.com/ddoubleg123/carrot-discovery/internal/storage/memory"
)

type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return string(rune('a'+g.n-1)) + "-run", nil
}

// fakeEngine serves canned reports, one per ProcessNext call, then reports
// quiescence.
type fakeEngine struct {
	mu           sync.Mutex
	seedErr      error
	seeded       int
	reports      []pipeline.Report
	processCalls int
	sweep        pipeline.SweepReport
	sweepErr     error
	gate         chan struct{}
}

func (f *fakeEngine) SeedRun(context.Context, string, discovery.Topic) (int, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.seedErr != nil {
		return 0, f.seedErr
	}
	return f.seeded, nil
}

func (f *fakeEngine) ProcessNext(context.Context, string, discovery.Topic) (pipeline.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processCalls++
	if len(f.reports) == 0 {
		return pipeline.Report{}, nil
	}
	report := f.reports[0]
	f.reports = f.reports[1:]
	return report, nil
}

func (f *fakeEngine) Sweep(context.Context, string) (pipeline.SweepReport, error) {
	return f.sweep, f.sweepErr
}

func (f *fakeEngine) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processCalls
}

func newTestRunner(eng *fakeEngine) (*Runner, *memory.SummaryStore) {
	clock := &tickClock{now: time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)}
	summaries := memory.NewSummaryStore()
	tracker := progress.NewTracker(64, clock, zap.NewNop())
	r := NewRunner(eng, tracker, summaries, &seqIDGen{}, zap.NewNop())
	r.pause = time.Millisecond
	return r, summaries
}

func TestRunnerDrivesRunToCompletion(t *testing.T) {
	eng := &fakeEngine{
		seeded: 2,
		reports: []pipeline.Report{
			{PagesScanned: 1, CitationsCreated: 3},
			{CitationsProcessed: 3, Saved: 2, Denied: 1},
		},
	}
	r, summaries := newTestRunner(eng)

	runID, err := r.StartRun(context.Background(), discovery.Topic{Name: "Ada Lovelace"})
	require.NoError(t, err)
	r.Wait(runID)

	status, err := r.RunStatus(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, status.State)
	assert.Equal(t, 2, status.Report.Saved)
	assert.Equal(t, 3, status.Report.CitationsProcessed)
	assert.Empty(t, status.ErrorMsg)

	summary, err := summaries.GetSummary(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", summary.Topic)
}

func TestRunnerRejectsConcurrentRunsForSameTopic(t *testing.T) {
	gate := make(chan struct{})
	eng := &fakeEngine{gate: gate}
	r, _ := newTestRunner(eng)

	topic := discovery.Topic{Name: "Ada Lovelace", Handle: "ada"}
	runID, err := r.StartRun(context.Background(), topic)
	require.NoError(t, err)

	_, err = r.StartRun(context.Background(), topic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")

	close(gate)
	r.Wait(runID)

	// Once the first run finishes the topic is free again.
	second, err := r.StartRun(context.Background(), topic)
	require.NoError(t, err)
	r.Wait(second)
	assert.NotEqual(t, runID, second)
}

func TestRunnerReportsSeedFailure(t *testing.T) {
	eng := &fakeEngine{seedErr: errors.New("planner unavailable")}
	r, _ := newTestRunner(eng)

	runID, err := r.StartRun(context.Background(), discovery.Topic{Name: "t"})
	require.NoError(t, err)
	r.Wait(runID)

	status, err := r.RunStatus(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, status.State)
	assert.Contains(t, status.ErrorMsg, "planner unavailable")
}

func TestRunnerDeferredPassesRetryBeforeQuiescing(t *testing.T) {
	eng := &fakeEngine{
		reports: []pipeline.Report{
			{Deferred: 2},
			{CitationsProcessed: 2, Saved: 2},
		},
	}
	r, _ := newTestRunner(eng)

	runID, err := r.StartRun(context.Background(), discovery.Topic{Name: "t"})
	require.NoError(t, err)
	r.Wait(runID)

	status, err := r.RunStatus(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, status.State)
	assert.Equal(t, 2, status.Report.Saved,
		"deferred-only passes must be retried, not treated as done")
	assert.GreaterOrEqual(t, eng.calls(), 3)
}

func TestRunnerEventsAreScopedToRun(t *testing.T) {
	eng := &fakeEngine{}
	r, _ := newTestRunner(eng)

	first, err := r.StartRun(context.Background(), discovery.Topic{Name: "alpha"})
	require.NoError(t, err)
	r.Wait(first)
	second, err := r.StartRun(context.Background(), discovery.Topic{Name: "beta"})
	require.NoError(t, err)
	r.Wait(second)

	events, err := r.RunEvents(context.Background(), first, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, first, ev.RunID)
	}

	_, err = r.RunEvents(context.Background(), "nope", 10)
	assert.ErrorIs(t, err, discovery.ErrNotFound)
}

func TestRunnerStatusUnknownRun(t *testing.T) {
	r, _ := newTestRunner(&fakeEngine{})
	_, err := r.RunStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, discovery.ErrNotFound)
}
