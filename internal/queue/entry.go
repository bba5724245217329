// Package queue implements the durable, aging FIFO of discovered URLs that
// feeds the crawl loop, plus the waiter-count bookkeeping the barrier uses
// to decide when the whole crawl is out of work.
package queue

import (
	"fmt"

	"github.com/FranksOps/atra/internal/atraurl"
)

// Entry is one item in the URL queue.
type Entry struct {
	// IsSeed marks entries that were given directly on the command line
	// rather than discovered by link extraction.
	IsSeed bool
	// Age counts how many times this entry has been enqueued: 1 after
	// its first enqueue, plus one for each requeue without being crawled,
	// typically because its origin was reserved by another worker. The
	// scheduler uses it to weight patience.
	Age uint32
	// HostWasInUse records whether the entry's origin was already
	// reserved the last time it was dequeued and skipped.
	HostWasInUse bool
	// Target is the URL to crawl, with its depth triple.
	Target atraurl.URL
}

// NewSeed builds a fresh seed entry at age zero.
func NewSeed(target atraurl.URL) Entry {
	return Entry{IsSeed: true, Target: target}
}

// NewDiscovered builds a fresh non-seed entry at age zero.
func NewDiscovered(target atraurl.URL) Entry {
	return Entry{Target: target}
}

// AgeByOne increments the entry's age, matching AgingQueueElement in the
// original queue: Queue.EnqueueAll calls this on every entry it appends,
// so requeuing a skipped entry raises its age by one.
func (e *Entry) AgeByOne() {
	e.Age++
}

func (e Entry) String() string {
	return fmt.Sprintf("queue.Entry(is_seed: %t, age: %d, host_was_in_use: %t, target: %s)",
		e.IsSeed, e.Age, e.HostWasInUse, e.Target.String())
}
