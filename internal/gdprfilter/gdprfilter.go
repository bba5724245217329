// Package gdprfilter defines the pluggable content-filter hook the HTML
// extractor calls before extracting links. The SVM-based classifier that
// recognizes GDPR/cookie-consent notices lives outside this repo; this
// package only defines the seam a real classifier would plug into.
package gdprfilter

import "github.com/PuerkitoBio/goquery"

// Filter removes subtrees of doc it judges to be GDPR/cookie-consent
// boilerplate for the given language. Implementations mutate doc in
// place and report how many nodes they removed.
type Filter interface {
	RemoveNotices(doc *goquery.Document, languageISO6391 string) (removed int)
}

// Noop is the default Filter: it never touches the document. Used when
// no classifier is configured (extraction continues unfiltered).
type Noop struct{}

func (Noop) RemoveNotices(*goquery.Document, string) int { return 0 }
