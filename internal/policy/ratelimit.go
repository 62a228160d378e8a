// Package policy holds cross-cutting fetch policies: per-domain pacing and
// run-level idempotency.
package policy

import (
	"sync"

	"golang.org/x/time/rate"
)

// DomainLimiter paces outbound requests per domain. Acquisition never
// blocks: a citation that cannot get a token is deferred to a later pass,
// not queued behind a sleeping goroutine.
type DomainLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perSec   rate.Limit
	burst    int
}

// NewDomainLimiter builds a DomainLimiter granting perSec tokens per second
// with the given burst per domain.
func NewDomainLimiter(perSec float64, burst int) *DomainLimiter {
	if perSec <= 0 {
		perSec = 2
	}
	if burst <= 0 {
		burst = 2
	}
	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		perSec:   rate.Limit(perSec),
		burst:    burst,
	}
}

// TryAcquire reports whether a request to domain may proceed now. A false
// return consumes nothing.
func (d *DomainLimiter) TryAcquire(domain string) bool {
	return d.limiterFor(domain).Allow()
}

func (d *DomainLimiter) limiterFor(domain string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	lim, ok := d.limiters[domain]
	if !ok {
		lim = rate.NewLimiter(d.perSec, d.burst)
		d.limiters[domain] = lim
	}
	return lim
}
