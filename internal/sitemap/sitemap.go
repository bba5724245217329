// Package sitemap discovers seed URLs by fetching and recursively parsing
// sitemap.xml/sitemap-index.xml documents.
package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/oxffaa/gopher-parse-sitemap"

	"github.com/FranksOps/atra/internal/robots"
)

// maxRecursionDepth bounds nested sitemap-index chasing so a
// pathologically self-referential sitemap can't recurse forever.
const maxRecursionDepth = 5

// Fetcher discovers URLs from a sitemap document, recursing into nested
// sitemap indexes. It tries the plain-sitemap parser first and falls back
// to the index parser, and is decoupled from any concrete HTTP client via
// robots.Fetch so the crawl loop supplies one fetch callback for both the
// robots auditor and sitemap discovery.
type Fetcher struct {
	fetch  robots.Fetch
	logger *slog.Logger
}

// New builds a Fetcher. logger defaults to slog.Default() if nil.
func New(fetch robots.Fetch, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{fetch: fetch, logger: logger}
}

// Discover fetches sitemapURL and returns every page URL it (transitively)
// lists.
func (f *Fetcher) Discover(ctx context.Context, sitemapURL string) ([]string, error) {
	return f.discover(ctx, sitemapURL, 0)
}

func (f *Fetcher) discover(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	f.logger.Debug("fetching sitemap", "url", sitemapURL, "depth", depth)

	body, status, err := f.fetch(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("context: fetching sitemap %s: %w", sitemapURL, err)
	}
	if status >= 400 {
		return nil, fmt.Errorf("context: sitemap %s returned status %d", sitemapURL, status)
	}

	var urls []string
	err = sitemap.Parse(bytes.NewReader(body), func(e sitemap.Entry) error {
		urls = append(urls, e.GetLocation())
		return nil
	})
	if err == nil && len(urls) > 0 {
		return urls, nil
	}

	var nested []string
	indexErr := sitemap.ParseIndex(bytes.NewReader(body), func(e sitemap.IndexEntry) error {
		nested = append(nested, e.GetLocation())
		return nil
	})
	if indexErr != nil || len(nested) == 0 {
		return nil, fmt.Errorf("context: %s is neither a valid sitemap nor a sitemap index: %w", sitemapURL, err)
	}

	if depth >= maxRecursionDepth {
		f.logger.Warn("sitemap index recursion depth exceeded, truncating", "url", sitemapURL, "depth", depth)
		return urls, nil
	}

	for _, nestedURL := range nested {
		nestedURLs, fetchErr := f.discover(ctx, nestedURL, depth+1)
		if fetchErr != nil {
			f.logger.Warn("failed to fetch nested sitemap", "url", nestedURL, "error", fetchErr)
			continue
		}
		urls = append(urls, nestedURLs...)
	}
	return urls, nil
}
