// Package progress tracks discovery activity: a bounded event ring for live
// inspection, per-run counters, and immutable run summaries.
package progress

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// EventKind classifies a discovery event.
type EventKind string

// Event kinds emitted by the pipeline.
const (
	EventSeeded     EventKind = "seeded"
	EventScanning   EventKind = "scanning"
	EventVerifying  EventKind = "verifying"
	EventFetched    EventKind = "fetched"
	EventSaved      EventKind = "saved"
	EventDenied     EventKind = "denied"
	EventDuplicate  EventKind = "duplicate"
	EventError      EventKind = "error"
	EventRescan     EventKind = "rescan"
	EventRunStarted EventKind = "run_started"
	EventRunDone    EventKind = "run_done"
)

// Event is one observable pipeline occurrence.
type Event struct {
	Kind    EventKind `json:"kind"`
	RunID   string    `json:"run_id"`
	URL     string    `json:"url,omitempty"`
	Step    string    `json:"step,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
	Score   int       `json:"score,omitempty"`
	ErrKind string    `json:"error_kind,omitempty"`
}

// Tracker holds a bounded event ring plus live counters per run. When the
// ring is full, the oldest event is evicted; reads never block writes for
// long.
type Tracker struct {
	mu     sync.Mutex
	ring   []Event
	head   int
	count  int
	runs   map[string]*runCounters
	clock  discovery.Clock
	logger *zap.Logger
}

type runCounters struct {
	topic      string
	started    time.Time
	attempts   map[string]int
	duplicates int
	saved      int
	denied     int
	errors     map[string]int
}

// NewTracker builds a Tracker with capacity events of history.
func NewTracker(capacity int, clock discovery.Clock, logger *zap.Logger) *Tracker {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		ring:   make([]Event, capacity),
		runs:   make(map[string]*runCounters),
		clock:  clock,
		logger: logger,
	}
}

// StartRun registers a run and emits its opening event.
func (t *Tracker) StartRun(runID, topic string) {
	now := t.clock.Now()
	t.mu.Lock()
	t.runs[runID] = &runCounters{
		topic:    topic,
		started:  now,
		attempts: make(map[string]int),
		errors:   make(map[string]int),
	}
	t.mu.Unlock()
	t.Record(Event{Kind: EventRunStarted, RunID: runID, Detail: topic})
}

// Record appends an event to the ring and updates the run's counters.
func (t *Tracker) Record(ev Event) {
	if ev.At.IsZero() {
		ev.At = t.clock.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.ring[t.head] = ev
	t.head = (t.head + 1) % len(t.ring)
	if t.count < len(t.ring) {
		t.count++
	}

	rc, ok := t.runs[ev.RunID]
	if !ok {
		return
	}
	if ev.Step != "" {
		rc.attempts[ev.Step]++
	}
	switch ev.Kind {
	case EventSaved:
		rc.saved++
	case EventDenied:
		rc.denied++
	case EventDuplicate:
		rc.duplicates++
	case EventError:
		kind := ev.ErrKind
		if kind == "" {
			kind = string(discovery.KindNetwork)
		}
		rc.errors[kind]++
	}
}

// Recent returns up to n events, newest first.
func (t *Tracker) Recent(n int) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n <= 0 || n > t.count {
		n = t.count
	}
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (t.head - i + len(t.ring)) % len(t.ring)
		out = append(out, t.ring[idx])
	}
	return out
}

// FinishRun closes out a run's counters into an immutable summary. The run
// is forgotten afterwards; the summary belongs to the SummaryStore.
func (t *Tracker) FinishRun(runID string) (discovery.RunSummary, bool) {
	now := t.clock.Now()

	t.mu.Lock()
	rc, ok := t.runs[runID]
	if ok {
		delete(t.runs, runID)
	}
	t.mu.Unlock()

	if !ok {
		return discovery.RunSummary{}, false
	}

	t.Record(Event{Kind: EventRunDone, RunID: runID})
	return discovery.RunSummary{
		RunID:      runID,
		Topic:      rc.topic,
		Started:    rc.started,
		Finished:   now,
		Attempts:   rc.attempts,
		Duplicates: rc.duplicates,
		Saved:      rc.saved,
		Denied:     rc.denied,
		Errors:     rc.errors,
	}, true
}
