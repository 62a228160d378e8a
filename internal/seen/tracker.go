// Package seen implements the two-tier seen-URL dedup ledger.
package seen

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

const defaultTTL = 30 * 24 * time.Hour

// Tracker answers "have we handled this canonical URL before" using a fast
// ephemeral cache backed by a persistent ledger. Either tier may fail without
// blocking the pipeline: lookups degrade to "not seen" and cache writes keep
// the current run deduplicated when the store is down.
type Tracker struct {
	store  discovery.SeenStore
	hasher discovery.Hasher
	clock  discovery.Clock
	logger *zap.Logger
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]time.Time
}

// NewTracker builds a Tracker. ttl defaults to 30 days.
func NewTracker(
	store discovery.SeenStore,
	hasher discovery.Hasher,
	clock discovery.Clock,
	ttl time.Duration,
	logger *zap.Logger,
) *Tracker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:  store,
		hasher: hasher,
		clock:  clock,
		logger: logger,
		ttl:    ttl,
		cache:  make(map[string]time.Time),
	}
}

// IsSeen checks the cache first, then the persistent ledger.
func (t *Tracker) IsSeen(ctx context.Context, runID, canonicalURL string) bool {
	key, err := t.key(runID, canonicalURL)
	if err != nil {
		t.logger.Warn("seen key derivation failed", zap.Error(err))
		return false
	}

	now := t.clock.Now()
	t.mu.Lock()
	expiry, hit := t.cache[key]
	if hit && now.After(expiry) {
		delete(t.cache, key)
		hit = false
	}
	t.mu.Unlock()
	if hit {
		return true
	}

	if t.store == nil {
		return false
	}
	seen, err := t.store.Seen(ctx, runID, t.urlHash(canonicalURL))
	if err != nil {
		t.logger.Warn("seen store lookup failed, treating as unseen",
			zap.String("run_id", runID), zap.Error(err))
		return false
	}
	return seen
}

// MarkSeen records the URL in both tiers. A persistent-write failure is
// logged but non-fatal: the cache write suffices for the current run.
func (t *Tracker) MarkSeen(ctx context.Context, runID, canonicalURL string) {
	key, err := t.key(runID, canonicalURL)
	if err != nil {
		t.logger.Warn("seen key derivation failed", zap.Error(err))
		return
	}

	now := t.clock.Now()
	t.mu.Lock()
	t.cache[key] = now.Add(t.ttl)
	t.pruneLocked(now)
	t.mu.Unlock()

	if t.store == nil {
		return
	}
	if err := t.store.MarkSeen(ctx, runID, t.urlHash(canonicalURL), now); err != nil {
		t.logger.Warn("seen store write failed",
			zap.String("run_id", runID), zap.Error(err))
	}
}

func (t *Tracker) key(runID, canonicalURL string) (string, error) {
	hash, err := t.hasher.Hash([]byte(canonicalURL))
	if err != nil {
		return "", err
	}
	return runID + ":" + hash, nil
}

func (t *Tracker) urlHash(canonicalURL string) string {
	hash, err := t.hasher.Hash([]byte(canonicalURL))
	if err != nil {
		return canonicalURL
	}
	return hash
}

// pruneLocked drops a handful of expired entries per write so the cache does
// not need a background sweeper.
func (t *Tracker) pruneLocked(now time.Time) {
	const maxScan = 32
	scanned := 0
	for key, expiry := range t.cache {
		if scanned >= maxScan {
			return
		}
		scanned++
		if now.After(expiry) {
			delete(t.cache, key)
		}
	}
}
