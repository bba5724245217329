package extract

import (
	"bytes"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/atra/internal/gdprfilter"
)

// hrefLocationMatcher recognizes the common onclick handoff pattern
// location.href='...'.
var hrefLocationMatcher = regexp.MustCompile(`location\s*\.\s*href\s*=\s*'\s*([^']*)\s*'\s*;?`)

// HTMLOptions toggles the optional extraction passes.
type HTMLOptions struct {
	RespectNofollow       bool
	CrawlEmbeddedData     bool
	CrawlForms            bool
	CrawlJavaScript       bool
	CrawlOnClickHeuristic bool
	ApplyGDPRFilter       bool
}

// DefaultHTMLOptions enables every pass except the GDPR filter: nofollow
// respected, forms, embedded data, inline script and onclick heuristics
// all crawled; ApplyGDPRFilter stays off.
func DefaultHTMLOptions() HTMLOptions {
	return HTMLOptions{
		RespectNofollow:       true,
		CrawlEmbeddedData:     true,
		CrawlForms:            true,
		CrawlJavaScript:       true,
		CrawlOnClickHeuristic: true,
	}
}

// extractHTML parses body as HTML and emits links per HTMLOptions. It
// returns ok=false when a meta[robots=nofollow] tag is present and
// RespectNofollow is set, signaling the caller to abort extraction for
// this page entirely (not just skip this extractor).
func extractHTML(body []byte, opts HTMLOptions, filter gdprfilter.Filter, languageISO6391 string, result *Result) (ok bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}

	if opts.ApplyGDPRFilter && filter != nil {
		filter.RemoveNotices(doc, languageISO6391)
	}

	if opts.RespectNofollow {
		if doc.Find(`meta[name="robots"][content="nofollow"]`).Length() > 0 {
			return false
		}
	}

	doc.Find("a,area,link").Each(func(_ int, s *goquery.Selection) {
		if opts.RespectNofollow {
			if rel, exists := s.Attr("rel"); exists && rel == "nofollow" {
				return
			}
		}
		if href, exists := s.Attr("href"); exists {
			result.Add(Link{Target: href, Origin: OriginHref})
		}
	})

	if opts.CrawlEmbeddedData {
		doc.Find("audio,embed,iframe,img,input,source,track,video").Each(func(_ int, s *goquery.Selection) {
			if src, exists := s.Attr("src"); exists {
				result.Add(Link{Target: src, Origin: OriginEmbedded})
			}
		})
	}

	if opts.CrawlForms {
		doc.Find("form[action]").Each(func(_ int, s *goquery.Selection) {
			if action, exists := s.Attr("action"); exists {
				result.Add(Link{Target: action, Origin: OriginForm})
			}
		})
	}

	if opts.CrawlJavaScript {
		doc.Find("script").Each(func(_ int, s *goquery.Selection) {
			if src, exists := s.Attr("src"); exists {
				result.Add(Link{Target: src, Origin: OriginJavaScript})
				return
			}
			for _, link := range extractJSLinks(s.Text()) {
				result.Add(Link{Target: link, Origin: OriginJavaScriptInline})
			}
		})
	}

	if opts.CrawlOnClickHeuristic {
		doc.Find("[onclick]").Each(func(_ int, s *goquery.Selection) {
			onclick, exists := s.Attr("onclick")
			if !exists {
				return
			}
			if m := hrefLocationMatcher.FindStringSubmatch(onclick); m != nil {
				result.Add(Link{Target: m[1], Origin: OriginOnClick})
			}
		})
	}

	return true
}
