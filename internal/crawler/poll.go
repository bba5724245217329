package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/atra/internal/budget"
	"github.com/FranksOps/atra/internal/linkstate"
	"github.com/FranksOps/atra/internal/metrics"
	"github.com/FranksOps/atra/internal/originguard"
	"github.com/FranksOps/atra/internal/queue"
)

// missedCacheCapacity bounds the entries a single poll holds back before
// flushing them to the queue and continuing with an empty cache.
const missedCacheCapacity = 8

// AbortCause explains why a poll returned no URL.
type AbortCause int

const (
	// AbortQueueEmpty means there was nothing to dequeue.
	AbortQueueEmpty AbortCause = iota
	// AbortShutdown means the shutdown token flipped mid-poll.
	AbortShutdown
	// AbortNoHost means the dequeued entry's URL has no extractable
	// origin; the caller drops it with a warning.
	AbortNoHost
	// AbortTooManyMisses means more entries than the caller's miss budget
	// were skipped because their origins were busy or their states were
	// not crawlable.
	AbortTooManyMisses
	// AbortOutOfPullRetries means one full pass over the queue's current
	// length found nothing ready; the caller should yield.
	AbortOutOfPullRetries
)

func (c AbortCause) String() string {
	switch c {
	case AbortQueueEmpty:
		return "QueueEmpty"
	case AbortShutdown:
		return "Shutdown"
	case AbortNoHost:
		return "NoHost"
	case AbortTooManyMisses:
		return "TooManyMisses"
	case AbortOutOfPullRetries:
		return "OutOfPullRetries"
	default:
		return "Unknown"
	}
}

// Abort is the "no URL this time" poll outcome.
type Abort struct {
	Cause AbortCause
	// Entry is set for AbortNoHost: the entry being dropped.
	Entry *queue.Entry
}

// Provider is a successfully polled URL: the entry to crawl and the
// exclusive guard on its origin. The caller must Release the guard.
type Provider struct {
	Guard *originguard.Guard
	Entry queue.Entry
}

// pollNextFreeURL finds the next URL whose origin can be reserved right
// now: entries with busy origins or non-crawlable states are held in a
// small missed cache and requeued, aged-out entries are dropped, and the
// poll gives up with a typed Abort once its retry or miss budget is
// exhausted. maxMisses <= 0 means unlimited.
func (r *Runtime) pollNextFreeURL(ctx context.Context, maxMisses int) (*Provider, *Abort, error) {
	if r.queue.IsEmpty() {
		return nil, &Abort{Cause: AbortQueueEmpty}, nil
	}

	var missedCache []queue.Entry
	missedCount := 0
	retries := r.queue.Len()

	requeueMissed := func() {
		if len(missedCache) == 0 {
			return
		}
		if err := r.queue.EnqueueAll(missedCache); err != nil {
			r.logger.Warn("failed to requeue missed entries", "count", len(missedCache), "error", err)
		}
		missedCache = nil
	}

	for {
		if r.shutdown.IsShutdown() || ctx.Err() != nil {
			requeueMissed()
			return nil, &Abort{Cause: AbortShutdown}, nil
		}

		entry, ok, err := r.queue.Dequeue()
		if err != nil {
			requeueMissed()
			if errors.Is(err, queue.ErrCodec) {
				r.logger.Warn("skipping undecodable queue entry", "error", err)
				continue
			}
			return nil, nil, err
		}
		if !ok {
			requeueMissed()
			return nil, &Abort{Cause: AbortQueueEmpty}, nil
		}
		retries--

		if r.cfg.MaxQueueAge != 0 && entry.Age > r.cfg.MaxQueueAge {
			r.logger.Debug("dropping over-age queue entry", "url", entry.Target.String(), "age", entry.Age)
			continue
		}

		origin := r.originOf(entry.Target)
		setting := r.cfg.Budget.SettingFor(origin)

		st, exists, err := r.states.Get(ctx, entry.Target.String())
		if err != nil {
			requeueMissed()
			return nil, nil, fmt.Errorf("context: reading link state during poll: %w", err)
		}

		if exists && st.Kind.IsSignificant() && shouldDrop(st, setting) {
			missedCount++
			continue
		}
		if exists && st.Kind != linkstate.Discovered && !recrawlDue(st, setting, time.Now()) {
			entry.HostWasInUse = false
			missedCache = append(missedCache, entry)
			missedCount++
			if len(missedCache) >= missedCacheCapacity {
				requeueMissed()
			}
			if done, abort := r.pollBudgetExceeded(retries, missedCount, maxMisses, requeueMissed); done {
				return nil, abort, nil
			}
			continue
		}

		if entry.Target.Host() == "" {
			requeueMissed()
			return nil, &Abort{Cause: AbortNoHost, Entry: &entry}, nil
		}

		guard, err := r.guards.Reserve(origin, entry.Target.Depth())
		switch {
		case err == nil:
			requeueMissed()
			return &Provider{Guard: guard, Entry: entry}, nil, nil
		case errors.Is(err, originguard.ErrPoisoned):
			r.logger.Debug("dropping entry for poisoned origin", "url", entry.Target.String())
			continue
		case errors.Is(err, originguard.ErrAlreadyReserved):
			metrics.GuardContention.Inc()
			entry.HostWasInUse = true
			missedCache = append(missedCache, entry)
			missedCount++
			if len(missedCache) >= missedCacheCapacity {
				requeueMissed()
			}
			if done, abort := r.pollBudgetExceeded(retries, missedCount, maxMisses, requeueMissed); done {
				return nil, abort, nil
			}
			continue
		default:
			requeueMissed()
			return nil, nil, err
		}
	}
}

// pollBudgetExceeded handles the shared bookkeeping after a miss: flush a
// full missed cache back to the queue, and decide whether the poll is out
// of retries or misses.
func (r *Runtime) pollBudgetExceeded(retries, missedCount, maxMisses int, requeueMissed func()) (bool, *Abort) {
	if retries <= 0 {
		requeueMissed()
		return true, &Abort{Cause: AbortOutOfPullRetries}
	}
	if maxMisses > 0 && missedCount > maxMisses {
		requeueMissed()
		return true, &Abort{Cause: AbortTooManyMisses}
	}
	return false, nil
}

// shouldDrop reports whether a significant-state entry is simply not
// worth crawling: already being handled (ReservedForCrawl, Crawled),
// terminally errored this run (InternalError), or fully stored with no
// recrawl interval configured.
func shouldDrop(st linkstate.State, setting budget.Setting) bool {
	switch st.Kind {
	case linkstate.Discovered:
		return false
	case linkstate.ProcessedAndStored:
		return setting.RecrawlInterval == nil
	case linkstate.ReservedForCrawl, linkstate.Crawled, linkstate.InternalError, linkstate.Unset:
		return true
	default:
		return true
	}
}

// recrawlDue reports whether a ProcessedAndStored entry's recrawl
// interval has elapsed, making it eligible for a fresh reservation.
func recrawlDue(st linkstate.State, setting budget.Setting, now time.Time) bool {
	if st.Kind != linkstate.ProcessedAndStored || setting.RecrawlInterval == nil {
		return false
	}
	return now.Sub(st.Timestamp) >= *setting.RecrawlInterval
}
