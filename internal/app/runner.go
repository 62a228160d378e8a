package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/api"
	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/pipeline"
	"github.com/ddoubleg123/carrot-discovery/internal/policy"
	"github.com/ddoubleg123/carrot-discovery/internal/progress"
)

// engine is the slice of the pipeline the Runner drives. Narrowed to an
// interface so the run lifecycle can be tested without network fakes.
type engine interface {
	SeedRun(ctx context.Context, runID string, topic discovery.Topic) (int, error)
	ProcessNext(ctx context.Context, runID string, topic discovery.Topic) (pipeline.Report, error)
	Sweep(ctx context.Context, runID string) (pipeline.SweepReport, error)
}

const (
	// maxPasses bounds how many pipeline increments one run may take, so a
	// pathological frontier cannot spin forever.
	maxPasses = 200
	// deferralPause is how long a run waits when the only remaining work
	// was deferred by per-domain rate limits.
	deferralPause = 500 * time.Millisecond
)

// Run states reported through the status endpoint.
const (
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

type runState struct {
	topic  discovery.Topic
	state  string
	report pipeline.Report
	errMsg string
	cancel context.CancelFunc
	done   chan struct{}
}

// Runner owns discovery run lifecycles: it seeds, drives the pipeline to
// quiescence, sweeps, and persists the final summary. One topic runs at a
// time; a second start for the same topic is rejected while the first is
// still going.
type Runner struct {
	engine    engine
	tracker   *progress.Tracker
	summaries discovery.SummaryStore
	guard     *policy.Guard
	idGen     discovery.IDGenerator
	logger    *zap.Logger
	pause     time.Duration

	mu   sync.Mutex
	runs map[string]*runState
}

// NewRunner builds a Runner around a fully wired pipeline.
func NewRunner(
	eng engine,
	tracker *progress.Tracker,
	summaries discovery.SummaryStore,
	idGen discovery.IDGenerator,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		engine:    eng,
		tracker:   tracker,
		summaries: summaries,
		guard:     policy.NewGuard(),
		idGen:     idGen,
		logger:    logger,
		pause:     deferralPause,
		runs:      make(map[string]*runState),
	}
}

// StartRun launches a discovery run for topic in the background and returns
// its run ID immediately. The run keeps going after the originating HTTP
// request ends.
func (r *Runner) StartRun(_ context.Context, topic discovery.Topic) (string, error) {
	release, ok := r.guard.Begin("topic:" + topicKey(topic))
	if !ok {
		return "", fmt.Errorf("a run for topic %q is already in progress", topic.Name)
	}

	runID, err := r.idGen.NewID()
	if err != nil {
		release()
		return "", fmt.Errorf("generate run id: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	state := &runState{
		topic:  topic,
		state:  StateRunning,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.mu.Lock()
	r.runs[runID] = state
	r.mu.Unlock()

	r.tracker.StartRun(runID, topic.Name)
	go r.execute(runCtx, runID, topic, release)

	r.logger.Info("run started",
		zap.String("run_id", runID),
		zap.String("topic", topic.Name))
	return runID, nil
}

func (r *Runner) execute(ctx context.Context, runID string, topic discovery.Topic, release func()) {
	defer release()
	defer r.closeRun(runID)

	if _, err := r.engine.SeedRun(ctx, runID, topic); err != nil {
		r.fail(runID, fmt.Errorf("seed run: %w", err))
		return
	}

	var total pipeline.Report
	if err := r.drain(ctx, runID, topic, &total); err != nil {
		r.fail(runID, err)
		return
	}

	sweep, err := r.engine.Sweep(ctx, runID)
	if err != nil {
		r.fail(runID, fmt.Errorf("reprocessing sweep: %w", err))
		return
	}
	if sweep.Reset > 0 {
		if err := r.drain(ctx, runID, topic, &total); err != nil {
			r.fail(runID, err)
			return
		}
	}

	r.finish(ctx, runID, total)
}

// drain calls ProcessNext until a pass makes no progress. Passes that only
// hit rate-limit deferrals wait briefly and try again instead of giving up.
func (r *Runner) drain(ctx context.Context, runID string, topic discovery.Topic, total *pipeline.Report) error {
	for pass := 0; pass < maxPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		report, err := r.engine.ProcessNext(ctx, runID, topic)
		if err != nil {
			return fmt.Errorf("process pass %d: %w", pass, err)
		}
		accumulate(total, report)
		r.setReport(runID, *total)

		if report.PagesScanned+report.CitationsCreated+report.CitationsProcessed > 0 {
			continue
		}
		if report.Deferred > 0 {
			select {
			case <-time.After(r.pause):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	r.logger.Warn("run hit pass ceiling before quiescing", zap.String("run_id", runID))
	return nil
}

func (r *Runner) finish(ctx context.Context, runID string, total pipeline.Report) {
	summary, ok := r.tracker.FinishRun(runID)
	if ok {
		if err := r.summaries.SaveSummary(ctx, summary); err != nil {
			r.logger.Error("save run summary", zap.String("run_id", runID), zap.Error(err))
		}
	}
	r.tracker.Record(progress.Event{Kind: progress.EventRunDone, RunID: runID})

	r.mu.Lock()
	if state, exists := r.runs[runID]; exists {
		state.state = StateCompleted
		state.report = total
	}
	r.mu.Unlock()

	r.logger.Info("run completed",
		zap.String("run_id", runID),
		zap.Int("saved", total.Saved),
		zap.Int("denied", total.Denied),
		zap.Int("duplicates", total.Duplicates))
}

func (r *Runner) setReport(runID string, report pipeline.Report) {
	r.mu.Lock()
	if state, exists := r.runs[runID]; exists {
		state.report = report
	}
	r.mu.Unlock()
}

func (r *Runner) fail(runID string, err error) {
	r.logger.Error("run failed", zap.String("run_id", runID), zap.Error(err))
	if summary, ok := r.tracker.FinishRun(runID); ok {
		if saveErr := r.summaries.SaveSummary(context.Background(), summary); saveErr != nil {
			r.logger.Error("save run summary", zap.String("run_id", runID), zap.Error(saveErr))
		}
	}
	r.mu.Lock()
	if state, exists := r.runs[runID]; exists {
		state.state = StateFailed
		state.errMsg = err.Error()
	}
	r.mu.Unlock()
}

func (r *Runner) closeRun(runID string) {
	r.mu.Lock()
	state, exists := r.runs[runID]
	r.mu.Unlock()
	if exists {
		state.cancel()
		close(state.done)
	}
}

// RunStatus reports the live state of a run this process started.
func (r *Runner) RunStatus(_ context.Context, runID string) (api.RunStatus, error) {
	r.mu.Lock()
	state, exists := r.runs[runID]
	r.mu.Unlock()
	if !exists {
		return api.RunStatus{}, fmt.Errorf("run %s: %w", runID, discovery.ErrNotFound)
	}
	return api.RunStatus{
		RunID:    runID,
		Topic:    state.topic.Name,
		State:    state.state,
		Report:   state.report,
		ErrorMsg: state.errMsg,
	}, nil
}

// RunSummary returns the persisted summary of a finished run.
func (r *Runner) RunSummary(ctx context.Context, runID string) (discovery.RunSummary, error) {
	return r.summaries.GetSummary(ctx, runID)
}

// RunEvents returns the newest events recorded for runID, newest first.
func (r *Runner) RunEvents(_ context.Context, runID string, limit int) ([]progress.Event, error) {
	r.mu.Lock()
	_, exists := r.runs[runID]
	r.mu.Unlock()
	if !exists {
		return nil, fmt.Errorf("run %s: %w", runID, discovery.ErrNotFound)
	}

	events := make([]progress.Event, 0, limit)
	for _, ev := range r.tracker.Recent(0) {
		if ev.RunID != runID {
			continue
		}
		events = append(events, ev)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

// SweepRun runs an on-demand reprocessing sweep. When the sweep resets
// citations and the run is known, a background drain picks them up.
func (r *Runner) SweepRun(ctx context.Context, runID string) (pipeline.SweepReport, error) {
	report, err := r.engine.Sweep(ctx, runID)
	if err != nil {
		return report, err
	}
	if report.Reset == 0 {
		return report, nil
	}

	r.mu.Lock()
	state, exists := r.runs[runID]
	r.mu.Unlock()
	if !exists {
		return report, nil
	}

	go func() {
		var total pipeline.Report
		if err := r.drain(context.Background(), runID, state.topic, &total); err != nil {
			r.logger.Error("post-sweep drain", zap.String("run_id", runID), zap.Error(err))
		}
	}()
	return report, nil
}

// Shutdown cancels every in-flight run and waits for their goroutines.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	states := make([]*runState, 0, len(r.runs))
	for _, state := range r.runs {
		states = append(states, state)
	}
	r.mu.Unlock()

	for _, state := range states {
		state.cancel()
	}
	for _, state := range states {
		<-state.done
	}
}

// Wait blocks until runID's goroutine exits. Used by the one-shot command.
func (r *Runner) Wait(runID string) {
	r.mu.Lock()
	state, exists := r.runs[runID]
	r.mu.Unlock()
	if exists {
		<-state.done
	}
}

func accumulate(total *pipeline.Report, pass pipeline.Report) {
	total.PagesScanned += pass.PagesScanned
	total.CitationsCreated += pass.CitationsCreated
	total.CitationsProcessed += pass.CitationsProcessed
	total.Saved += pass.Saved
	total.Denied += pass.Denied
	total.Duplicates += pass.Duplicates
	total.Deferred += pass.Deferred
	total.Errors += pass.Errors
}

func topicKey(t discovery.Topic) string {
	if t.Handle != "" {
		return t.Handle
	}
	return t.Name
}
