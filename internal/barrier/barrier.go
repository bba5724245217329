// Package barrier implements the N-worker cancellation rendezvous that
// decides when a crawl is finished: workers that run out of
// work gather here, and the last arrival cancels the whole run. If the
// queue receives new entries first, every waiter is released to keep
// crawling instead.
package barrier

import (
	"context"
	"sync"

	"github.com/FranksOps/atra/internal/queue"
)

// Outcome is what WaitForIsCancelled resolved to.
type Outcome int

const (
	// Continue means the queue changed while waiting: there may be new
	// work, go poll again.
	Continue Outcome = iota
	// Cancelled means every worker arrived (or cancellation had already
	// been triggered): the crawl is over.
	Cancelled
)

// Barrier is the rendezvous shared by all workers of one crawl run.
//
// The arrival counter starts at 1 and is incremented by each waiting
// worker, so it always equals 1 + (workers currently waiting); when it
// reaches workers+1, the last arrival flips the cancellation token and
// wakes everyone. Cancellation is sticky: once flipped, every future wait
// returns Cancelled immediately.
type Barrier struct {
	workers int
	q       *queue.Queue

	mu       sync.Mutex
	arrivals int
	done     chan struct{}
	canceled bool
}

// New builds a Barrier for the given worker count over q's change
// notifications.
func New(workers int, q *queue.Queue) *Barrier {
	return &Barrier{
		workers:  workers,
		q:        q,
		arrivals: 1,
		done:     make(chan struct{}),
	}
}

// IsCancelled reports whether the barrier has already been tripped.
func (b *Barrier) IsCancelled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canceled
}

// Trigger trips the barrier directly, e.g. on an external shutdown signal,
// waking every current and future waiter with Cancelled.
func (b *Barrier) Trigger() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelLocked()
}

func (b *Barrier) cancelLocked() {
	if !b.canceled {
		b.canceled = true
		close(b.done)
	}
}

// WaitForIsCancelled blocks until either every worker has arrived (the
// last one cancels the run) or the queue changes (all waiters are released
// to continue). ctx cancellation counts as run cancellation.
func (b *Barrier) WaitForIsCancelled(ctx context.Context) Outcome {
	// Subscribe before counting the arrival: an enqueue that lands
	// between the two must still wake this waiter.
	changed := b.q.Subscribe()

	b.mu.Lock()
	if b.canceled {
		b.mu.Unlock()
		return Cancelled
	}
	b.arrivals++
	if b.arrivals == b.workers+1 {
		b.cancelLocked()
		b.mu.Unlock()
		return Cancelled
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return Cancelled
	case <-ctx.Done():
		b.Trigger()
		return Cancelled
	case <-changed:
		b.mu.Lock()
		// Raced with the last arrival: cancellation wins, the queue
		// change is moot.
		if b.canceled {
			b.mu.Unlock()
			return Cancelled
		}
		b.arrivals--
		b.mu.Unlock()
		return Continue
	}
}
