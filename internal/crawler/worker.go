package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/FranksOps/atra/internal/atraurl"
	"github.com/FranksOps/atra/internal/barrier"
	"github.com/FranksOps/atra/internal/crawlresult"
	"github.com/FranksOps/atra/internal/errconsumer"
	"github.com/FranksOps/atra/internal/extract"
	"github.com/FranksOps/atra/internal/format"
	"github.com/FranksOps/atra/internal/langdetect"
	"github.com/FranksOps/atra/internal/linkstate"
	"github.com/FranksOps/atra/internal/metrics"
	"github.com/FranksOps/atra/internal/queue"
	"github.com/FranksOps/atra/internal/warcstore"
)

// basePatience is the budget a worker burns through abort polls before
// giving up and waiting at the barrier; each abort cause debits its own
// weight.
const basePatience = 25

// patienceWeight maps an abort cause to the patience it costs.
func patienceWeight(cause AbortCause) int {
	switch cause {
	case AbortTooManyMisses:
		return 2
	case AbortOutOfPullRetries:
		return 5
	case AbortQueueEmpty:
		return 10
	default:
		return 0
	}
}

// runWorker is one worker's crawl loop: poll, crawl, repeat, until the
// shutdown token flips or the barrier cancels the run.
func (r *Runtime) runWorker(ctx context.Context, workerID int) error {
	logger := r.logger.With("worker", workerID)

	writer, err := r.newWarcWriter(workerID)
	if err != nil {
		return err
	}
	defer writer.Close()

	patience := basePatience
	for {
		if r.shutdown.IsShutdown() || ctx.Err() != nil || r.barrier.IsCancelled() {
			r.barrier.Trigger()
			logger.Debug("worker shutting down")
			return nil
		}

		provider, abort, err := r.pollNextFreeURL(ctx, r.cfg.MaxMisses)
		if err != nil {
			if r.consumer.Consume(err) == errconsumer.AbortWorker {
				r.barrier.Trigger()
				return err
			}
			continue
		}

		if abort != nil {
			switch abort.Cause {
			case AbortShutdown:
				r.barrier.Trigger()
				return nil
			case AbortNoHost:
				logger.Warn("dropping entry without an origin", "entry", abort.Entry.String())
				continue
			}

			patience -= patienceWeight(abort.Cause)
			if patience < 0 {
				waiter := r.pollWaiters.Create()
				metrics.IdleWorkers.Inc()
				logger.Debug("worker out of patience, waiting at barrier",
					"other_waiters", waiter.OtherWaiterCount())
				outcome := r.barrier.WaitForIsCancelled(ctx)
				metrics.IdleWorkers.Dec()
				waiter.Release()
				if outcome == barrier.Cancelled {
					logger.Debug("worker finished at barrier")
					return nil
				}
				patience = basePatience
			} else {
				runtime.Gosched()
			}
			continue
		}

		patience = basePatience
		if err := r.crawlOne(ctx, provider, writer, logger); err != nil {
			if r.consumer.Consume(err) == errconsumer.AbortWorker {
				r.barrier.Trigger()
				return err
			}
		}

		// A fresh writer after corruption: the old file is abandoned
		// where it broke and the worker rolls on.
		if writer.Corrupted() {
			_ = writer.Close()
			writer, err = r.newWarcWriter(workerID)
			if err != nil {
				r.barrier.Trigger()
				return err
			}
		}

		metrics.QueueDepth.Set(float64(r.queue.Len()))
	}
}

// crawlOne runs the fetch-decode-extract-persist pipeline for one polled
// URL. State transitions follow the link lifecycle; non-fatal
// pipeline failures leave the URL in InternalError with its depth intact.
func (r *Runtime) crawlOne(ctx context.Context, p *Provider, writer *warcstore.Writer, logger *slog.Logger) error {
	defer p.Guard.Release()

	target := p.Entry.Target
	rawURL := target.String()

	if r.blacklist.HasMatchFor(rawURL) {
		logger.Debug("url is blacklisted", "url", rawURL)
		return nil
	}

	// Robots is checked before any state promotion so a disallowed URL
	// never advances past Discovered.
	if r.cfg.RespectRobots && !r.auditor.IsAllowed(ctx, target, r.cfg.Agent) {
		logger.Debug("url blocked by robots.txt", "url", rawURL)
		return nil
	}

	if err := r.setState(ctx, target, linkstate.ReservedForCrawl); err != nil {
		return err
	}

	origin := r.originOf(target)
	if err := r.perOrigin.Wait(ctx, string(origin)); err != nil {
		return nil
	}

	setting := r.cfg.Budget.SettingFor(origin)
	var timeout time.Duration
	if setting.RequestTimeout != nil {
		timeout = *setting.RequestTimeout
	}

	resp, err := r.fetcher.Fetch(ctx, rawURL, timeout)
	if err != nil {
		logger.Warn("fetch failed", "url", rawURL, "error", err)
		return r.setState(ctx, target, linkstate.InternalError)
	}
	if resp.BotDetected {
		logger.Warn("bot protection challenge instead of content", "url", rawURL, "source", resp.BotSrc)
		return r.setState(ctx, target, linkstate.InternalError)
	}

	if err := r.setState(ctx, target, linkstate.Crawled); err != nil {
		return err
	}

	info := format.Detect(resp.Body, resp.Headers.Get("Content-Type"), target.Path())

	var lang langdetect.Result
	var encodingName string
	if info.IsText() || info.IsHTML() || info.IsXML() {
		decoded, derr := format.Decode(resp.Body, resp.Headers.Get("Content-Type"), tldOf(target.Host()), r.run.Dir)
		if derr == nil {
			encodingName = decoded.Charset
			if decoded.SpillPath != "" {
				defer os.Remove(decoded.SpillPath)
			} else {
				lang = langdetect.Detect(decoded.Text)
			}
		}
	}

	links := r.extractLinks(resp.Body, info, lang)
	resolved := r.resolveLinks(target, links, logger)

	hint, err := r.persistBody(target, resp, writer)
	if err != nil {
		logger.Warn("persisting body failed", "url", rawURL, "error", err)
		if serr := r.setState(ctx, target, linkstate.InternalError); serr != nil {
			return serr
		}
		return err
	}

	result := &crawlresult.Result{
		CreatedAt:      time.Now().UTC(),
		URL:            rawURL,
		StatusCode:     resp.StatusCode,
		FileInfo:       info,
		Encoding:       encodingName,
		Headers:        flattenHeaders(resp),
		FinalRedirect:  resp.FinalRedirect,
		ExtractedLinks: resolvedStrings(resolved),
		Language:       lang,
		StoredData:     hint,
	}
	if err := r.backend.Save(ctx, result); err != nil {
		if serr := r.setState(ctx, target, linkstate.InternalError); serr != nil {
			return serr
		}
		return fmt.Errorf("context: saving crawl result for %q: %w", rawURL, err)
	}

	if err := r.setState(ctx, target, linkstate.ProcessedAndStored); err != nil {
		return err
	}

	r.seedLinks(ctx, resolved, logger)
	return nil
}

// setState writes a kind transition for u, preserving its depth triple.
func (r *Runtime) setState(ctx context.Context, u atraurl.URL, kind linkstate.Kind) error {
	st := linkstate.New(kind, time.Now(), u.Depth(), nil)
	if _, err := r.states.Upsert(ctx, u.String(), st); err != nil {
		return fmt.Errorf("context: updating link state for %q: %w", u.String(), err)
	}
	metrics.RecordLinkState(kind)
	return nil
}

// extractLinks runs the extractor dispatch over the fetched body.
func (r *Runtime) extractLinks(body []byte, info format.Info, lang langdetect.Result) []extract.Link {
	cfg := extract.DefaultConfig()
	cfg.GDPRFilter = r.gdpr
	cfg.LanguageISO6391 = lang.ISO6391
	if r.cfg.MaxExtractionDepth > 0 {
		cfg.MaxExtractionDepth = r.cfg.MaxExtractionDepth
	}
	return extract.Dispatch(body, info, cfg).Links()
}

// resolveLinks turns raw extracted targets into absolute URLs with depth
// triples, filtered by budget and blacklist. Invalid links are counted
// and dropped.
func (r *Runtime) resolveLinks(page atraurl.URL, links []extract.Link, logger *slog.Logger) []atraurl.URL {
	var out []atraurl.URL
	invalid := 0
	for _, l := range links {
		u, err := page.Resolve(l.Target)
		if err != nil {
			invalid++
			continue
		}
		if u.Scheme() != "http" && u.Scheme() != "https" {
			continue
		}
		if u.Equal(page) {
			continue
		}
		if r.blacklist.HasMatchFor(u.String()) {
			continue
		}
		if !r.cfg.Budget.SettingFor(r.originOf(u)).IsInBudget(u) {
			continue
		}
		out = append(out, u)
	}
	if invalid > 0 {
		logger.Debug("dropped unresolvable links", "page", page.String(), "count", invalid)
	}
	return out
}

// seedLinks enqueues the newly discovered URLs and marks them Discovered.
// Already-known URLs are skipped: the link-state store, not the queue, is
// the dedup authority.
func (r *Runtime) seedLinks(ctx context.Context, links []atraurl.URL, logger *slog.Logger) {
	var entries []queue.Entry
	for _, u := range links {
		if r.registerDiscovered(ctx, u) {
			entries = append(entries, queue.NewDiscovered(u))
		}
	}
	if len(entries) == 0 {
		return
	}
	if err := r.queue.EnqueueAll(entries); err != nil {
		logger.Warn("failed to enqueue discovered links", "count", len(entries), "error", err)
	}
}

// persistBody writes the fetched body into the archive and returns the
// stored-data hint for the index record. Oversized bodies spill into
// big_files/ with an external-file hint record in the WARC; binary bodies
// are base64-encoded into the payload.
func (r *Runtime) persistBody(target atraurl.URL, resp *Response, writer *warcstore.Writer) (crawlresult.StoredDataHint, error) {
	if len(resp.Body) == 0 {
		return crawlresult.None(), nil
	}

	var body warcstore.Body
	externalPath := ""
	if len(resp.Body) >= format.InMemoryThreshold {
		externalPath = r.run.BigFilePath(target.String())
		if err := os.WriteFile(externalPath, resp.Body, 0o644); err != nil {
			return crawlresult.None(), fmt.Errorf("context: spilling body to %q: %w", externalPath, err)
		}
		body = warcstore.ExternalBody(externalPath)
	} else {
		body = warcstore.TextBody(resp.Body)
	}

	instr, err := writer.Append(target.String(), resp.Headers.Get("Content-Type"), body, r.cfg.WarcMaxFileSize)
	if err != nil {
		return crawlresult.None(), err
	}
	if instr.IsMulti() {
		metrics.WarcRollovers.Inc()
	}

	if externalPath != "" {
		// The WARC record itself only carries the external path; the
		// index hint points readers straight at the spilled file.
		return crawlresult.External(externalPath), nil
	}
	return crawlresult.Warc(instr), nil
}

// flattenHeaders preserves repeated response headers in order.
func flattenHeaders(resp *Response) []crawlresult.Header {
	var out []crawlresult.Header
	for name, values := range resp.Headers {
		for _, v := range values {
			out = append(out, crawlresult.Header{Name: name, Value: v})
		}
	}
	return out
}

func resolvedStrings(links []atraurl.URL) []string {
	out := make([]string, 0, len(links))
	for _, u := range links {
		out = append(out, u.String())
	}
	return out
}

// tldOf extracts the final host label as the charset-detection hint.
func tldOf(host string) string {
	host = strings.TrimSuffix(host, ".")
	if i := strings.LastIndex(host, "."); i >= 0 {
		return host[i+1:]
	}
	return ""
}
