package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/atra/internal/atraurl"
	"github.com/FranksOps/atra/internal/blacklist"
	"github.com/FranksOps/atra/internal/budget"
	"github.com/FranksOps/atra/internal/config"
	"github.com/FranksOps/atra/internal/crawler"
	"github.com/FranksOps/atra/internal/fingerprint"
	"github.com/FranksOps/atra/internal/linkstate"
	"github.com/FranksOps/atra/internal/metrics"
	"github.com/FranksOps/atra/internal/queue"
	"github.com/FranksOps/atra/internal/report"
	"github.com/FranksOps/atra/internal/runlayout"
	"github.com/FranksOps/atra/internal/storage"
	"github.com/FranksOps/atra/internal/storage/csvbackend"
	"github.com/FranksOps/atra/internal/storage/jsonbackend"
	"github.com/FranksOps/atra/internal/storage/postgres"
	"github.com/FranksOps/atra/internal/storage/sqlite"
	"github.com/FranksOps/atra/pkg/proxy"
	"github.com/FranksOps/atra/pkg/ratelimit"
	"github.com/FranksOps/atra/pkg/useragent"
)

// runCrawl is the shared body of the single and multi commands: load
// config, apply flag overrides, assemble the run context, crawl, report.
func runCrawl(cmd *cobra.Command, mode string, seedArg string, threads int) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fail(ExitConfigLoad, "loading config: %v", err)
	}
	applyFlagOverrides(cmd, &cfg, threads)

	seeds, err := ParseSeedArg(seedArg)
	if err != nil {
		return fail(ExitSeedParse, "parsing seeds: %v", err)
	}

	run, err := runlayout.New(cfg.Session.Root, mode)
	if err != nil {
		return fail(ExitRunDirectory, "creating run directory: %v", err)
	}

	logger, closeLog, err := buildLogger(cfg, run)
	if err != nil {
		return fail(ExitLogFile, "setting up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	q, err := queue.Open(run.QueueFilePath())
	if err != nil {
		return fail(ExitQueueOpen, "opening url queue: %v", err)
	}

	states, err := linkstate.Open(run.LinkStateDBPath())
	if err != nil {
		return fail(ExitLinkStateOpen, "opening link-state store: %v", err)
	}
	defer states.Close()

	backend, err := buildBackend(cmd.Context(), cfg, run)
	if err != nil {
		return fail(ExitIndexBackend, "opening index backend: %v", err)
	}
	defer backend.Close()

	fetcher, err := buildFetcher(cfg)
	if err != nil {
		return fail(ExitFetcherInit, "building fetcher: %v", err)
	}

	bl, err := blacklist.New(1, cfg.Crawl.Blacklist)
	if err != nil {
		return fail(ExitBlacklist, "compiling blacklist: %v", err)
	}

	runtime, err := crawler.New(crawlerConfig(cfg, mode), crawler.Deps{
		Run:       run,
		Queue:     q,
		States:    states,
		Backend:   backend,
		Fetcher:   fetcher,
		Blacklist: blacklist.NewManaged(bl),
		Logger:    logger,
	})
	if err != nil {
		return fail(ExitWorkerContext, "building crawl runtime: %v", err)
	}

	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.Start(cfg.Metrics.Port)
		defer metricsSrv.Stop(context.Background())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting crawl", "mode", mode, "seeds", len(seeds), "session", run.Dir)
	if err := runtime.Run(ctx, seeds); err != nil {
		return fail(ExitCrawlFailed, "crawl failed: %v", err)
	}

	writeSummary(ctx, logger, runtime, backend, run)
	return nil
}

// applyFlagOverrides lets the common flags override the loaded file.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config, threads int) {
	if v, _ := cmd.Flags().GetString("session-name"); v != "" && cmd.Flags().Changed("session-name") {
		cfg.Session.Name = v
	}
	if v, _ := cmd.Flags().GetString("agent"); v != "" {
		cfg.Crawl.Agent = v
	}
	if cmd.Flags().Changed("depth") {
		v, _ := cmd.Flags().GetUint64("depth")
		cfg.Crawl.Depth = v
	}
	if v, _ := cmd.Flags().GetBool("absolute"); v {
		cfg.Crawl.Absolute = true
	}
	if cmd.Flags().Changed("timeout") {
		v, _ := cmd.Flags().GetDuration("timeout")
		cfg.Crawl.RequestTimeout = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetBool("log-to-file"); v {
		cfg.Log.ToFile = true
	}
	if v, _ := cmd.Flags().GetString("override-log-level"); v != "" {
		cfg.Log.Level = v
	}
	if threads > 0 {
		cfg.Crawl.Workers = threads
	}
}

// crawlerConfig maps the file/flag configuration onto the runtime config.
func crawlerConfig(cfg config.Config, mode string) crawler.Config {
	def := budget.Setting{
		Kind:           budget.Normal,
		DepthOnWebsite: cfg.Crawl.DepthOnWebsite,
		Depth:          cfg.Crawl.Depth,
	}
	if cfg.Crawl.Absolute {
		def = budget.Setting{Kind: budget.Absolute, Depth: cfg.Crawl.Depth}
	}
	if cfg.Crawl.RecrawlInterval > 0 {
		interval := cfg.Crawl.RecrawlInterval
		def.RecrawlInterval = &interval
	}
	if cfg.Crawl.RequestTimeout > 0 {
		timeout := cfg.Crawl.RequestTimeout
		def.RequestTimeout = &timeout
	}

	policy := atraurl.OriginByAuthority
	if cfg.Crawl.OriginPolicy == "domain" {
		policy = atraurl.OriginByDomain
	}

	return crawler.Config{
		Workers:            cfg.Crawl.Workers,
		Agent:              cfg.Crawl.Agent,
		Budget:             budget.NewCrawl(def),
		MaxQueueAge:        cfg.Crawl.MaxQueueAge,
		OriginPolicy:       policy,
		RespectRobots:      cfg.Crawl.RespectRobots,
		UseSitemaps:        cfg.Crawl.UseSitemaps,
		MaxExtractionDepth: cfg.Crawl.MaxExtractionDepth,
		WarcMaxFileSize:    cfg.Warc.MaxFileSize,
		SessionName:        cfg.Session.Name,
		JobID:              mode,
	}
}

// buildFetcher wires the transport stack: TLS fingerprint, proxy pool,
// user-agent and the global rate limiter.
func buildFetcher(cfg config.Config) (*crawler.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(cfg.Fetch.Fingerprint)
	if err != nil {
		return nil, err
	}

	var pool *proxy.Pool
	if len(cfg.Fetch.Proxies) > 0 {
		pool = proxy.NewPool(proxy.Config{})
		if err := pool.Add(cfg.Fetch.Proxies...); err != nil {
			return nil, err
		}
	}

	var limiter *ratelimit.Limiter
	if cfg.Fetch.RequestsPerSecond > 0 {
		limiter = ratelimit.NewLimiter(cfg.Fetch.RequestsPerSecond, cfg.Fetch.Jitter)
	}

	return crawler.NewFetcher(crawler.FetchConfig{
		Timeout:      cfg.Crawl.RequestTimeout,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		UseCookieJar: cfg.Fetch.UseCookieJar,
		ProxyPool:    pool,
		UAPool:       useragent.Fixed(cfg.Crawl.Agent),
		Fingerprint:  profile,
		Limiter:      limiter,
	})
}

// buildBackend opens the configured slim-result index backend, deriving
// file paths from the session directory when no DSN is given.
func buildBackend(ctx context.Context, cfg config.Config, run *runlayout.Run) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "", "sqlite":
		return sqlite.New(run.IndexDBPath())
	case "postgres":
		return postgres.New(ctx, cfg.Storage.DSN)
	case "json":
		return jsonbackend.New(filepath.Join(run.Dir, "index.ndjson"))
	case "csv":
		return csvbackend.New(filepath.Join(run.Dir, "index.csv"))
	default:
		return nil, fmt.Errorf("context: unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildLogger configures slog per the log config, optionally teeing into
// the session directory.
func buildLogger(cfg config.Config, run *runlayout.Run) (*slog.Logger, func(), error) {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("context: unknown log level %q", cfg.Log.Level)
	}

	var w io.Writer = os.Stderr
	closeLog := func() {}
	if cfg.Log.ToFile {
		f, err := os.OpenFile(filepath.Join(run.Dir, "atra.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = io.MultiWriter(os.Stderr, f)
		closeLog = func() { _ = f.Close() }
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeLog, nil
}

// writeSummary prints the end-of-run report to stdout.
func writeSummary(ctx context.Context, logger *slog.Logger, runtime *crawler.Runtime, backend storage.Backend, run *runlayout.Run) {
	results, err := backend.Query(ctx, storage.Filter{})
	if err != nil {
		logger.Warn("could not query results for summary", "error", err)
		return
	}
	kinds, err := runtime.LinkStateCounts(ctx)
	if err != nil {
		logger.Warn("could not count link states for summary", "error", err)
		kinds = nil
	}

	summary := report.GenerateSummary(results, kinds, runtime.WarcFileCount())
	if err := report.WriteText(os.Stdout, summary); err != nil {
		logger.Warn("could not render summary", "error", err)
	}
	logger.Info("crawl finished", "session", run.Dir, "pages", summary.TotalPages,
		"duration", summary.Duration.Round(time.Millisecond))
}
