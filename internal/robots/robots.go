// Package robots fetches, parses and caches robots.txt per origin,
// bounding memory with an LRU+TTL cache instead of the unbounded map the
// teacher's auditor used.
package robots

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/temoto/robotstxt"

	"github.com/FranksOps/atra/internal/atraurl"
)

// DefaultCacheSize and DefaultTTL bound the auditor's robots.txt cache: a
// crawl touching more origins than this evicts the least recently used
// entries rather than growing without limit, matching the LRU backing
// several other example repos use for similar fetch caches.
const (
	DefaultCacheSize = 10_000
	DefaultTTL       = 24 * time.Hour
)

// Fetch performs an HTTP GET and returns the body and status code. The
// auditor is deliberately decoupled from any specific HTTP client type
// (pkg/httpclient, the fetcher in internal/crawler, or a test double) by
// depending on this function type instead.
type Fetch func(ctx context.Context, url string) (body []byte, statusCode int, err error)

// entry caches either a parsed robots.txt or the fact that none exists.
type entry struct {
	data *robotstxt.RobotsData
}

// Auditor answers "is this URL allowed for this user agent", caching
// parsed robots.txt by origin with LRU eviction and a TTL so long runs
// pick up robots changes without unbounded memory.
type Auditor struct {
	fetch  Fetch
	logger *slog.Logger
	cache  *expirable.LRU[atraurl.Origin, entry]
}

// New builds an Auditor. logger defaults to slog.Default() if nil.
func New(fetch Fetch, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		fetch:  fetch,
		logger: logger,
		cache:  expirable.NewLRU[atraurl.Origin, entry](DefaultCacheSize, nil, DefaultTTL),
	}
}

// IsAllowed reports whether u may be crawled by userAgent according to its
// origin's robots.txt. A fetch or parse failure defaults to allow, logged
// at debug level.
func (a *Auditor) IsAllowed(ctx context.Context, u atraurl.URL, userAgent string) bool {
	data, err := a.getOrFetch(ctx, u.Origin())
	if err != nil {
		a.logger.Debug("robots.txt fetch failed, defaulting to allow", "origin", u.Origin(), "error", err)
		return true
	}
	if data == nil {
		return true
	}
	group := data.FindGroup(userAgent)
	return group.Test(u.Path())
}

// Sitemaps returns the sitemap URLs declared in origin's robots.txt, or
// nil if none are declared or the fetch failed.
func (a *Auditor) Sitemaps(ctx context.Context, origin atraurl.Origin) ([]string, error) {
	data, err := a.getOrFetch(ctx, origin)
	if err != nil || data == nil {
		return nil, nil
	}
	return data.Sitemaps, nil
}

func (a *Auditor) getOrFetch(ctx context.Context, origin atraurl.Origin) (*robotstxt.RobotsData, error) {
	if e, ok := a.cache.Get(origin); ok {
		return e.data, nil
	}

	robotsURL := fmt.Sprintf("%s/robots.txt", origin)
	body, status, err := a.fetch(ctx, robotsURL)
	if err != nil {
		a.cache.Add(origin, entry{})
		return nil, fmt.Errorf("context: fetching %s: %w", robotsURL, err)
	}
	if status >= 400 {
		a.cache.Add(origin, entry{})
		return nil, nil
	}

	parsed, err := robotstxt.FromBytes(body)
	if err != nil {
		a.cache.Add(origin, entry{})
		return nil, fmt.Errorf("context: parsing %s: %w", robotsURL, err)
	}

	a.cache.Add(origin, entry{data: parsed})
	return parsed, nil
}
