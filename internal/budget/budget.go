// Package budget implements the per-host and per-crawl depth limits that
// decide whether a discovered URL is worth enqueueing at all.
package budget

import (
	"time"

	"github.com/FranksOps/atra/internal/atraurl"
)

// Kind selects which of the three budget shapes a Setting represents.
type Kind int

const (
	// SeedOnly crawls only the seed's own origin, bounded by
	// DepthOnWebsite (0 means unbounded).
	SeedOnly Kind = iota
	// Normal crawls the seed and follows cross-origin links, bounded by
	// both DepthOnWebsite and Depth.
	Normal
	// Absolute bounds only the total hop count from the seed
	// (DepthOnWebsite is ignored), 0 meaning unbounded.
	Absolute
)

// Setting is one budget configuration.
type Setting struct {
	Kind Kind
	// DepthOnWebsite caps same-origin hops. 0 means unbounded. Used by
	// SeedOnly and Normal.
	DepthOnWebsite uint64
	// Depth caps hops from the seed: origin changes (DistanceToSeed) for
	// Normal, every hop (TotalDistanceToSeed) for Absolute. 0 means
	// unbounded.
	Depth uint64
	// RecrawlInterval, if set, allows a URL to be recrawled after this
	// much time has passed since it was last Crawled. Nil means crawl
	// once only.
	RecrawlInterval *time.Duration
	// RequestTimeout bounds fetches of URLs governed by this setting. It
	// can shorten the crawl-wide fetch timeout but not extend it. Nil
	// disables it.
	RequestTimeout *time.Duration
}

// DefaultSetting is the budget applied when nothing is configured:
// Normal with depth_on_website=20, depth=3, 15s request timeout.
func DefaultSetting() Setting {
	timeout := 15 * time.Second
	return Setting{
		Kind:           Normal,
		DepthOnWebsite: 20,
		Depth:          3,
		RequestTimeout: &timeout,
	}
}

// IsInBudget reports whether u's depth triple satisfies this setting.
func (s Setting) IsInBudget(u atraurl.URL) bool {
	d := u.Depth()
	switch s.Kind {
	case SeedOnly:
		return d.DistanceToSeed == 0 &&
			(s.DepthOnWebsite == 0 || d.DepthOnWebsite < s.DepthOnWebsite)
	case Normal:
		return (s.DepthOnWebsite == 0 || d.DepthOnWebsite < s.DepthOnWebsite) &&
			(s.Depth == 0 || d.DistanceToSeed <= s.Depth)
	case Absolute:
		return s.Depth == 0 || d.TotalDistanceToSeed < s.Depth
	default:
		return false
	}
}

// Crawl is the crawl-wide budget: a default Setting plus optional
// per-origin overrides, matching CrawlBudget.
type Crawl struct {
	Default Setting
	PerHost map[atraurl.Origin]Setting
}

// NewCrawl returns a Crawl with the given default and no per-host
// overrides.
func NewCrawl(def Setting) Crawl {
	return Crawl{Default: def, PerHost: make(map[atraurl.Origin]Setting)}
}

// SettingFor returns the effective Setting for origin: its override if one
// is configured, else the crawl-wide default.
func (c Crawl) SettingFor(origin atraurl.Origin) Setting {
	if s, ok := c.PerHost[origin]; ok {
		return s
	}
	return c.Default
}

// IsInBudget reports whether u is within budget for its own origin.
func (c Crawl) IsInBudget(u atraurl.URL) bool {
	return c.SettingFor(u.Origin()).IsInBudget(u)
}
