package seen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sha "github.com/ddoubleg123/carrot-discovery/internal/hash/sha256"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSeenStore struct {
	mu     sync.Mutex
	rows   map[string]int64
	fail   bool
	writes int
}

func newFakeSeenStore() *fakeSeenStore {
	return &fakeSeenStore{rows: make(map[string]int64)}
}

func (s *fakeSeenStore) Seen(_ context.Context, runID, urlHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return false, errors.New("store unavailable")
	}
	_, ok := s.rows[runID+":"+urlHash]
	return ok, nil
}

func (s *fakeSeenStore) MarkSeen(_ context.Context, runID, urlHash string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.fail {
		return errors.New("store unavailable")
	}
	s.rows[runID+":"+urlHash]++
	return nil
}

func TestTrackerMarkThenSeen(t *testing.T) {
	t.Parallel()

	store := newFakeSeenStore()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr := NewTracker(store, sha.New(), clock, 0, nil)

	ctx := context.Background()
	require.False(t, tr.IsSeen(ctx, "run-1", "https://example.com/a"))

	tr.MarkSeen(ctx, "run-1", "https://example.com/a")
	assert.True(t, tr.IsSeen(ctx, "run-1", "https://example.com/a"))
	assert.False(t, tr.IsSeen(ctx, "run-2", "https://example.com/a"), "scopes must not bleed")
}

func TestTrackerStoreFailureDegradesToUnseen(t *testing.T) {
	t.Parallel()

	store := newFakeSeenStore()
	store.fail = true
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr := NewTracker(store, sha.New(), clock, 0, nil)

	ctx := context.Background()
	assert.False(t, tr.IsSeen(ctx, "run-1", "https://example.com/a"))

	// MarkSeen must not panic or block on store failure; the cache still
	// covers the current run.
	tr.MarkSeen(ctx, "run-1", "https://example.com/a")
	assert.True(t, tr.IsSeen(ctx, "run-1", "https://example.com/a"))
	assert.Equal(t, 1, store.writes)
}

func TestTrackerCacheExpiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr := NewTracker(nil, sha.New(), clock, time.Hour, nil)

	ctx := context.Background()
	tr.MarkSeen(ctx, "run-1", "https://example.com/a")
	require.True(t, tr.IsSeen(ctx, "run-1", "https://example.com/a"))

	clock.Advance(2 * time.Hour)
	assert.False(t, tr.IsSeen(ctx, "run-1", "https://example.com/a"))
}

func TestTrackerPersistentTierSurvivesCacheMiss(t *testing.T) {
	t.Parallel()

	store := newFakeSeenStore()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr := NewTracker(store, sha.New(), clock, time.Hour, nil)

	ctx := context.Background()
	tr.MarkSeen(ctx, "run-1", "https://example.com/a")

	// Fresh tracker simulates a process restart: cache empty, store warm.
	tr2 := NewTracker(store, sha.New(), clock, time.Hour, nil)
	assert.True(t, tr2.IsSeen(ctx, "run-1", "https://example.com/a"))
}
