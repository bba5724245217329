// Package originguard implements per-origin exclusive reservation: at most
// one worker may hold a given origin at a time, enforcing the "one fetch
// per host" politeness rule.
package originguard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/FranksOps/atra/internal/atraurl"
)

// ErrPoisoned is returned by CheckForPoison once an origin has been marked
// poisoned: a prior worker encountered an unrecoverable error on this
// origin (e.g. repeated bot-block detection) and no further crawling of
// it should be attempted.
var ErrPoisoned = errors.New("context: origin is poisoned")

// ErrAlreadyReserved is returned by Reserve when another guard already
// holds the requested origin.
var ErrAlreadyReserved = errors.New("context: origin already reserved")

// entry is the bookkeeping kept per origin while it's under active
// reservation, plus the permanent poisoned flag once set.
type entry struct {
	reservedAt time.Time
	depth      atraurl.Depth
	reserved   bool
	poisoned   bool
	depthSet   bool
}

// Manager hands out exclusive Guards for origins and tracks poisoning.
type Manager struct {
	mu      sync.Mutex
	entries map[atraurl.Origin]*entry
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{entries: make(map[atraurl.Origin]*entry)}
}

// Reserve attempts to exclusively reserve origin for the caller, recording
// depth as the best (smallest) depth seen for that origin so far. It
// returns ErrAlreadyReserved if another caller already holds it, or
// ErrPoisoned if the origin has been poisoned and should no longer be
// crawled at all.
func (m *Manager) Reserve(origin atraurl.Origin, depth atraurl.Depth) (*Guard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[origin]
	if !ok {
		e = &entry{}
		m.entries[origin] = e
	}
	if e.poisoned {
		return nil, fmt.Errorf("%w: %s", ErrPoisoned, origin)
	}
	if e.reserved {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyReserved, origin)
	}

	e.reserved = true
	e.reservedAt = time.Now()
	if !e.depthEverSet() || depthLess(depth, e.depth) {
		e.depth = depth
		e.depthSet = true
	}

	return &Guard{
		manager:    m,
		origin:     origin,
		reservedAt: e.reservedAt,
		depth:      e.depth,
	}, nil
}

// depthEverSet reports whether e.depth has been assigned a real value yet;
// the zero Depth is indistinguishable from "seed depth", so a separate
// flag on the entry decides this instead.
func (e *entry) depthEverSet() bool { return e.depthSet }

func depthLess(a, b atraurl.Depth) bool {
	return a.TotalDistanceToSeed < b.TotalDistanceToSeed
}

// release is called by Guard.Release exactly once per reservation.
func (m *Manager) release(origin atraurl.Origin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[origin]; ok {
		e.reserved = false
	}
}

// Poison permanently marks origin as unusable: subsequent Reserve calls for
// it fail with ErrPoisoned until the process restarts.
func (m *Manager) Poison(origin atraurl.Origin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[origin]
	if !ok {
		e = &entry{}
		m.entries[origin] = e
	}
	e.poisoned = true
}

// IsPoisoned reports whether origin has been poisoned.
func (m *Manager) IsPoisoned(origin atraurl.Origin) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[origin]
	return ok && e.poisoned
}

// Guard is an exclusive hold on one origin, released by calling Release
// (typically via defer) when the worker is done with that origin's
// fetch+extract cycle.
type Guard struct {
	manager    *Manager
	origin     atraurl.Origin
	reservedAt time.Time
	depth      atraurl.Depth
	released   bool
}

// Origin returns the origin this guard protects.
func (g *Guard) Origin() atraurl.Origin { return g.origin }

// ReservedAt returns when the reservation was taken.
func (g *Guard) ReservedAt() time.Time { return g.reservedAt }

// Depth returns the smallest depth seen for this origin across every
// Reserve call that has occurred while it was unreserved.
func (g *Guard) Depth() atraurl.Depth { return g.depth }

// HasAdditionalValue reports whether u's depth is smaller than the best
// depth already recorded for this origin, meaning crawling u could still
// shorten paths through this origin.
func (g *Guard) HasAdditionalValue(u atraurl.URL) bool {
	return u.Depth().TotalDistanceToSeed < g.depth.TotalDistanceToSeed
}

// CheckForPoison returns ErrPoisoned if the origin has been poisoned since
// this guard was taken.
func (g *Guard) CheckForPoison() error {
	if g.manager.IsPoisoned(g.origin) {
		return fmt.Errorf("%w: %s", ErrPoisoned, g.origin)
	}
	return nil
}

// Release gives up the reservation. Safe to call more than once.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.manager.release(g.origin)
}
