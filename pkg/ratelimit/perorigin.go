package ratelimit

import (
	"context"
	"sync"
	"time"
)

// PerOrigin enforces a minimum delay between successive requests to the
// same origin, independent of the global rate Limiter: politeness is
// per-host, while the Limiter bounds the crawler's total request rate.
// Keys are opaque strings so this package stays decoupled from the URL
// model; callers pass the origin identifier they reserve guards by.
type PerOrigin struct {
	mu       sync.Mutex
	minDelay time.Duration
	last     map[string]time.Time
}

// NewPerOrigin creates a per-origin limiter. A minDelay <= 0 disables it.
func NewPerOrigin(minDelay time.Duration) *PerOrigin {
	return &PerOrigin{
		minDelay: minDelay,
		last:     make(map[string]time.Time),
	}
}

// Wait blocks until at least minDelay has passed since the previous Wait
// for the same origin returned, or until the context is canceled. The
// origin's slot is claimed before sleeping, so two concurrent Wait calls
// for one origin serialize rather than both firing after one delay. In
// practice the guard manager already prevents that; this keeps the
// limiter correct on its own.
func (p *PerOrigin) Wait(ctx context.Context, origin string) error {
	if p.minDelay <= 0 {
		return nil
	}

	p.mu.Lock()
	now := time.Now()
	next := p.last[origin].Add(p.minDelay)
	if next.Before(now) {
		next = now
	}
	p.last[origin] = next
	p.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// Forget drops the recorded history for origin, e.g. once its guard is
// poisoned and it will never be fetched again.
func (p *PerOrigin) Forget(origin string) {
	p.mu.Lock()
	delete(p.last, origin)
	p.mu.Unlock()
}
