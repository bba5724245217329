// Package storage defines the slim-result index: the durable map from
// normalized URL to crawl result that readers consult to locate page
// bodies via WARC skip pointers. Bodies themselves never
// live here.
package storage

import (
	"context"
	"time"

	"github.com/FranksOps/atra/internal/crawlresult"
)

// Filter allows querying for specific crawl results.
type Filter struct {
	URL        string
	StatusCode *int
	// MIME matches the winning detected format, e.g. "text/html".
	MIME   string
	Since  *time.Time
	Limit  int
	Offset int
}

// Backend defines the interface for storing and querying slim crawl
// results. Save is an upsert keyed by the result's normalized URL: a
// recrawl of the same URL replaces the previous record.
type Backend interface {
	Save(ctx context.Context, result *crawlresult.Result) error
	// Get returns the record for the exact normalized URL, or nil if none
	// is stored.
	Get(ctx context.Context, url string) (*crawlresult.Result, error)
	Query(ctx context.Context, filter Filter) ([]*crawlresult.Result, error)
	Close() error
}
