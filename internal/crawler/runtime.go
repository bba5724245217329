// Package crawler is the heart of atra: the per-worker poll loop that
// reserves origins and picks ready URLs, the fetch-decode-extract-persist
// pipeline, and the runtime that fans workers out over the shared queue,
// link-state store and guard manager until the barrier agrees the crawl
// is done.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/atra/internal/atraurl"
	"github.com/FranksOps/atra/internal/barrier"
	"github.com/FranksOps/atra/internal/blacklist"
	"github.com/FranksOps/atra/internal/budget"
	"github.com/FranksOps/atra/internal/errconsumer"
	"github.com/FranksOps/atra/internal/gdprfilter"
	"github.com/FranksOps/atra/internal/linkstate"
	"github.com/FranksOps/atra/internal/metrics"
	"github.com/FranksOps/atra/internal/originguard"
	"github.com/FranksOps/atra/internal/queue"
	"github.com/FranksOps/atra/internal/robots"
	"github.com/FranksOps/atra/internal/runlayout"
	"github.com/FranksOps/atra/internal/sitemap"
	"github.com/FranksOps/atra/internal/storage"
	"github.com/FranksOps/atra/internal/warcstore"
	"github.com/FranksOps/atra/pkg/ratelimit"
)

// Config provides parameters for one crawl run.
type Config struct {
	// Workers is the crawl pool size; 0 defaults to the core count.
	Workers int
	// Agent is the user-agent matched against robots.txt groups.
	Agent string
	// Budget holds the default depth budget and per-origin overrides.
	Budget budget.Crawl
	// MaxQueueAge drops an entry once it has been requeued this many
	// times (0 disables aging).
	MaxQueueAge uint32
	// MaxMisses bounds skipped entries per poll (0 = unlimited).
	MaxMisses int
	// OriginPolicy selects politeness granularity.
	OriginPolicy atraurl.OriginPolicy
	// RespectRobots enables the robots.txt check before each fetch.
	RespectRobots bool
	// UseSitemaps seeds the queue from robots.txt-declared sitemaps.
	UseSitemaps bool
	// MaxExtractionDepth bounds recursive extraction inside archives.
	MaxExtractionDepth int
	// WarcMaxFileSize triggers WARC rollover (0 = never roll).
	WarcMaxFileSize int64
	// SessionName and JobID feed WARC file naming.
	SessionName string
	JobID       string
	// PerOriginDelay is the politeness gap between fetches of one origin.
	PerOriginDelay time.Duration
}

// Runtime owns the shared state of one crawl run and coordinates its
// workers.
type Runtime struct {
	cfg    Config
	logger *slog.Logger

	run         *runlayout.Run
	queue       *queue.Queue
	states      *linkstate.Store
	guards      *originguard.Manager
	auditor     *robots.Auditor
	sitemaps    *sitemap.Fetcher
	blacklist   *blacklist.Managed
	backend     storage.Backend
	fetcher     *Fetcher
	perOrigin   *ratelimit.PerOrigin
	consumer    errconsumer.Consumer
	gdpr        gdprfilter.Filter
	shutdown    *Shutdown
	barrier     *barrier.Barrier
	pollWaiters *queue.PollWaiterFactory
}

// Deps are the collaborators a Runtime is assembled from. Run, Queue,
// States and Backend are required; the rest default sensibly when nil.
type Deps struct {
	Run       *runlayout.Run
	Queue     *queue.Queue
	States    *linkstate.Store
	Backend   storage.Backend
	Fetcher   *Fetcher
	Blacklist *blacklist.Managed
	GDPR      gdprfilter.Filter
	Consumer  errconsumer.Consumer
	Logger    *slog.Logger
}

// New assembles a Runtime.
func New(cfg Config, deps Deps) (*Runtime, error) {
	if deps.Queue == nil || deps.States == nil || deps.Backend == nil || deps.Run == nil {
		return nil, fmt.Errorf("context: queue, link-state store, backend and run layout are required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.SessionName == "" {
		cfg.SessionName = "atra"
	}
	if cfg.JobID == "" {
		cfg.JobID = "job"
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fetcher := deps.Fetcher
	if fetcher == nil {
		var err error
		fetcher, err = NewFetcher(FetchConfig{})
		if err != nil {
			return nil, err
		}
	}
	bl := deps.Blacklist
	if bl == nil {
		bl = blacklist.NewManaged(blacklist.Empty(0))
	}
	consumer := deps.Consumer
	if consumer == nil {
		consumer = errconsumer.New(logger)
	}
	gdpr := deps.GDPR
	if gdpr == nil {
		gdpr = gdprfilter.Noop{}
	}

	fetch := fetcher.FetchFunc()
	return &Runtime{
		cfg:         cfg,
		logger:      logger,
		run:         deps.Run,
		queue:       deps.Queue,
		states:      deps.States,
		guards:      originguard.New(),
		auditor:     robots.New(fetch, logger),
		sitemaps:    sitemap.New(fetch, logger),
		blacklist:   bl,
		backend:     deps.Backend,
		fetcher:     fetcher,
		perOrigin:   ratelimit.NewPerOrigin(cfg.PerOriginDelay),
		consumer:    consumer,
		gdpr:        gdpr,
		shutdown:    NewShutdown(),
		pollWaiters: queue.NewPollWaiterFactory(),
	}, nil
}

// Stop triggers a cooperative shutdown: workers finish their in-flight
// page and converge at the barrier.
func (r *Runtime) Stop() { r.shutdown.Trigger() }

// originOf applies the configured politeness policy.
func (r *Runtime) originOf(u atraurl.URL) atraurl.Origin {
	return atraurl.OfURLWithPolicy(u, r.cfg.OriginPolicy)
}

// Run seeds the queue and drives cfg.Workers workers until the barrier
// cancels or ctx is done.
func (r *Runtime) Run(ctx context.Context, seeds []string) error {
	if err := r.seed(ctx, seeds); err != nil {
		return err
	}

	r.barrier = barrier.New(r.cfg.Workers, r.queue)

	stopWatch := context.AfterFunc(ctx, func() {
		r.shutdown.Trigger()
		r.barrier.Trigger()
	})
	defer stopWatch()

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Workers; i++ {
		workerID := i
		g.Go(func() error {
			return r.runWorker(gCtx, workerID)
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// seed registers the given URLs as crawl entry points and, when
// configured, expands them through their origins' declared sitemaps.
func (r *Runtime) seed(ctx context.Context, seeds []string) error {
	var entries []queue.Entry
	seen := make(map[string]struct{})
	valid := 0

	addSeed := func(raw string) {
		u, err := atraurl.FromSeed(raw)
		if err != nil {
			r.logger.Warn("skipping invalid seed", "seed", raw, "error", err)
			return
		}
		valid++
		if _, dup := seen[u.String()]; dup {
			return
		}
		seen[u.String()] = struct{}{}
		if r.registerDiscovered(ctx, u) {
			entries = append(entries, queue.NewSeed(u))
		}
	}

	for _, raw := range seeds {
		addSeed(raw)
	}

	if r.cfg.UseSitemaps {
		for _, raw := range seeds {
			u, err := atraurl.FromSeed(raw)
			if err != nil {
				continue
			}
			maps, err := r.auditor.Sitemaps(ctx, u.Origin())
			if err != nil || len(maps) == 0 {
				continue
			}
			for _, sm := range maps {
				urls, err := r.sitemaps.Discover(ctx, sm)
				if err != nil {
					r.logger.Warn("sitemap discovery failed", "sitemap", sm, "error", err)
					continue
				}
				for _, su := range urls {
					addSeed(su)
				}
			}
		}
	}

	// Already-known seeds are not an error: a resumed run may find all of
	// its seeds stored and simply have nothing left to do.
	if valid == 0 && r.queue.IsEmpty() {
		return fmt.Errorf("context: no usable seeds")
	}
	if err := r.queue.EnqueueAll(entries); err != nil {
		return fmt.Errorf("context: seeding queue: %w", err)
	}

	// A crash can leave Discovered rows in the store that never made it
	// into the durable queue. If the queue came up empty, rebuild it from
	// those rows so a resumed run picks up where it left off.
	if r.queue.IsEmpty() {
		if ok, err := r.states.HasCrawlableLinks(ctx); err == nil && ok {
			if err := r.recoverDiscovered(ctx); err != nil {
				r.logger.Warn("could not recover discovered links from store", "error", err)
			}
		}
	}

	metrics.QueueDepth.Set(float64(r.queue.Len()))
	return nil
}

// recoverDiscovered re-enqueues every Discovered URL recorded in the
// link-state store.
func (r *Runtime) recoverDiscovered(ctx context.Context) error {
	links, err := r.states.Crawlable(ctx, 0)
	if err != nil {
		return err
	}
	var entries []queue.Entry
	for _, l := range links {
		u, err := atraurl.New(l.URL, l.Depth)
		if err != nil {
			r.logger.Warn("skipping unparseable recovered link", "url", l.URL, "error", err)
			continue
		}
		entries = append(entries, queue.NewDiscovered(u))
	}
	if len(entries) == 0 {
		return nil
	}
	r.logger.Info("recovered discovered links into the queue", "count", len(entries))
	return r.queue.EnqueueAll(entries)
}

// registerDiscovered writes the Discovered state for a URL seen for the
// first time, reporting whether the URL was in fact new. Already-known
// URLs are left alone: overwriting a later kind with Discovered would
// make the scheduler recrawl pages it already stored.
func (r *Runtime) registerDiscovered(ctx context.Context, u atraurl.URL) bool {
	_, exists, err := r.states.Get(ctx, u.String())
	if err != nil {
		r.logger.Warn("link state read failed during discovery", "url", u.String(), "error", err)
		return false
	}
	if exists {
		return false
	}
	st := linkstate.New(linkstate.Discovered, time.Now(), u.Depth(), nil)
	if _, err := r.states.Upsert(ctx, u.String(), st); err != nil {
		r.logger.Warn("link state write failed during discovery", "url", u.String(), "error", err)
		return false
	}
	metrics.RecordLinkState(linkstate.Discovered)
	return true
}

// WarcFileCount reports how many WARC files the run has produced so far,
// for the end-of-run report.
func (r *Runtime) WarcFileCount() int {
	matches, err := filepath.Glob(filepath.Join(r.run.Dir, "worker_*", "*.warc"))
	if err != nil {
		return 0
	}
	return len(matches)
}

// LinkStateCounts exposes the store's per-kind counts for the report.
func (r *Runtime) LinkStateCounts(ctx context.Context) (map[linkstate.Kind]int, error) {
	return r.states.CountByKind(ctx)
}

// newWarcWriter builds the per-worker WARC writer rooted in the worker's
// session subdirectory.
func (r *Runtime) newWarcWriter(workerID int) (*warcstore.Writer, error) {
	dir, err := r.run.WorkerDir(workerID)
	if err != nil {
		return nil, err
	}
	paths := warcstore.NewFilePathProvider(dir, r.cfg.SessionName, r.cfg.JobID, fmt.Sprintf("%d", workerID))
	return warcstore.NewWriter(paths)
}
