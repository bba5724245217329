package queue

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrIO marks file-level queue failures. These are fatal for the queue:
// the error consumer aborts the worker that hit one.
var ErrIO = errors.New("context: queue file error")

// ErrCodec marks a de/serialization failure on a specific record. Unlike
// ErrIO this is non-fatal: the affected entry is dropped and crawling
// continues.
var ErrCodec = errors.New("context: queue codec error")

// Queue is a threadsafe, optionally file-durable FIFO of Entry values: a
// process that restarts mid-crawl reloads whatever was queued but not yet
// dequeued.
//
// Durability is a snapshot on every mutating call rather than an
// append-only log with a read cursor: simpler, and the right trade-off
// here since crawl queues are bounded by the number of discovered URLs,
// not by write throughput.
type Queue struct {
	mu      sync.Mutex
	items   []Entry
	path    string
	changed chan struct{}
}

// Open creates an in-memory queue, or a file-backed one if path is
// non-empty: existing contents are loaded, and every enqueue/dequeue call
// persists the new state back to the file.
func Open(path string) (*Queue, error) {
	q := &Queue{path: path, changed: make(chan struct{})}
	if path == "" {
		return q, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return q, nil
		}
		return nil, fmt.Errorf("%w: opening %q: %w", ErrIO, path, err)
	}
	if len(data) == 0 {
		return q, nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&q.items); err != nil {
		return nil, fmt.Errorf("%w: decoding %q: %w", ErrCodec, path, err)
	}
	return q, nil
}

// Enqueue appends a single entry.
func (q *Queue) Enqueue(e Entry) error {
	return q.EnqueueAll([]Entry{e})
}

// EnqueueAll appends zero or more entries atomically and wakes subscribers.
// Every entry's age is incremented by one on the way in, so an entry's age
// counts how many times it has passed through the queue: a
// fresh seed enters at age 1, and each dequeue-then-requeue round trip
// raises it by exactly one.
func (q *Queue) EnqueueAll(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	aged := make([]Entry, len(entries))
	for i, e := range entries {
		e.AgeByOne()
		aged[i] = e
	}
	q.mu.Lock()
	q.items = append(q.items, aged...)
	err := q.persistLocked()
	q.mu.Unlock()
	if err != nil {
		return err
	}
	q.notify()
	return nil
}

// Dequeue removes and returns the oldest entry, or ok=false if empty.
func (q *Queue) Dequeue() (Entry, bool, error) {
	entries, err := q.DequeueN(1)
	if err != nil || len(entries) == 0 {
		return Entry{}, false, err
	}
	return entries[0], true, nil
}

// DequeueN removes and returns up to n of the oldest entries.
func (q *Queue) DequeueN(n int) ([]Entry, error) {
	q.mu.Lock()
	if n > len(q.items) {
		n = len(q.items)
	}
	out := append([]Entry(nil), q.items[:n]...)
	q.items = q.items[n:]
	err := q.persistLocked()
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Len reports the number of entries currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty reports whether the queue currently has no entries.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Subscribe returns a channel that is closed the next time the queue's
// contents change (an enqueue or dequeue). Callers re-subscribe after each
// wakeup: this is level-triggered, coalescing any number of changes between
// two Subscribe calls into a single wakeup, rather than a per-event
// broadcast queue that could build up unbounded backlog.
func (q *Queue) Subscribe() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.changed
}

func (q *Queue) notify() {
	q.mu.Lock()
	ch := q.changed
	q.changed = make(chan struct{})
	q.mu.Unlock()
	close(ch)
}

// persistLocked writes the current in-memory contents to the backing file.
// Must be called with q.mu held.
func (q *Queue) persistLocked() error {
	if q.path == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(q.items); err != nil {
		return fmt.Errorf("%w: encoding: %w", ErrCodec, err)
	}
	if err := os.WriteFile(q.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: persisting %q: %w", ErrIO, q.path, err)
	}
	return nil
}
