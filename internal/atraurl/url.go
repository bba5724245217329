// Package atraurl provides the normalized URL-with-depth model shared by
// the queue, link-state store and crawl loop.
package atraurl

import (
	"fmt"
	"net/url"
	"strings"
)

// Depth is the triple of counters atra tracks for every discovered URL.
type Depth struct {
	// DepthOnWebsite is the number of same-origin hops from the seed that
	// started this branch of the crawl.
	DepthOnWebsite uint64
	// DistanceToSeed is the number of origin changes between this URL and
	// its seed.
	DistanceToSeed uint64
	// TotalDistanceToSeed is the total number of hops (same- or
	// cross-origin) between this URL and its seed.
	TotalDistanceToSeed uint64
}

// SeedDepth is the depth triple assigned to every seed URL.
var SeedDepth = Depth{}

// Next computes the depth triple for a link found on a page with depth d,
// given whether the link is same-origin as that page.
func (d Depth) Next(sameOrigin bool) Depth {
	next := Depth{
		DistanceToSeed:      d.DistanceToSeed,
		TotalDistanceToSeed: d.TotalDistanceToSeed + 1,
	}
	if sameOrigin {
		next.DepthOnWebsite = d.DepthOnWebsite + 1
	} else {
		next.DepthOnWebsite = 0
		next.DistanceToSeed = d.DistanceToSeed + 1
	}
	return next
}

// URL is a normalized absolute URL carrying its depth triple. Equality and
// hashing are defined purely on the normalized URL string: two URLs that
// normalize to the same string are the same crawl target regardless of
// depth bookkeeping.
type URL struct {
	raw   *url.URL
	norm  string
	depth Depth
}

// New normalizes rawURL and attaches the given depth.
func New(rawURL string, depth Depth) (URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return URL{}, fmt.Errorf("context: invalid url %q: %w", rawURL, err)
	}
	if !u.IsAbs() {
		return URL{}, fmt.Errorf("context: url %q is not absolute", rawURL)
	}
	return fromParsed(u, depth), nil
}

// FromSeed builds a seed URL: depth triple is the zero value.
func FromSeed(rawURL string) (URL, error) {
	return New(rawURL, SeedDepth)
}

// Resolve parses href relative to the receiver (which is treated as the
// page the link was found on) and computes the child's depth triple.
func (u URL) Resolve(href string) (URL, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return URL{}, fmt.Errorf("context: invalid href %q: %w", href, err)
	}
	resolved := u.raw.ResolveReference(ref)
	if !resolved.IsAbs() {
		return URL{}, fmt.Errorf("context: href %q does not resolve to an absolute url", href)
	}
	resolvedURL := fromParsed(resolved, u.depth)
	sameOrigin := resolvedURL.Origin() == u.Origin()
	return fromParsed(resolved, u.depth.Next(sameOrigin)), nil
}

func fromParsed(u *url.URL, depth Depth) URL {
	normalized := normalize(u)
	parsedNorm, _ := url.Parse(normalized)
	return URL{raw: parsedNorm, norm: normalized, depth: depth}
}

// normalize lower-cases scheme and host, strips the fragment and default
// ports, and collapses an empty path to "/".
func normalize(u *url.URL) string {
	n := *u
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	n.Fragment = ""
	n.RawFragment = ""
	if n.Path == "" {
		n.Path = "/"
	}
	switch {
	case n.Scheme == "http" && strings.HasSuffix(n.Host, ":80"):
		n.Host = strings.TrimSuffix(n.Host, ":80")
	case n.Scheme == "https" && strings.HasSuffix(n.Host, ":443"):
		n.Host = strings.TrimSuffix(n.Host, ":443")
	}
	return n.String()
}

// String returns the normalized URL.
func (u URL) String() string { return u.norm }

// Depth returns the depth triple.
func (u URL) Depth() Depth { return u.depth }

// WithDepth returns a copy of u carrying a different depth triple. Used
// when the link-state merge needs to preserve the smallest depth seen.
func (u URL) WithDepth(d Depth) URL {
	u.depth = d
	return u
}

// IsSeed reports whether this URL's depth triple is the seed zero value.
func (u URL) IsSeed() bool { return u.depth == SeedDepth }

// Scheme, Host, Path expose the parsed components for callers (robots,
// extractors) that need them without re-parsing.
func (u URL) Scheme() string { return u.raw.Scheme }
func (u URL) Host() string   { return u.raw.Host }
func (u URL) Path() string   { return u.raw.Path }

// Bytes returns the byte representation used as a store key.
func (u URL) Bytes() []byte { return []byte(u.norm) }

// Equal reports whether two URLs share the same normalized form.
func (u URL) Equal(other URL) bool { return u.norm == other.norm }
