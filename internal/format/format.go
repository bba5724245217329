// Package format infers the content format of a fetched page by combining
// magic-byte sniffing, the HTTP Content-Type header, and the URL's file
// extension, then decodes the body to text.
package format

import (
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Info describes the inferred format of a fetched body.
type Info struct {
	// MIME is the winning MIME type, e.g. "text/html".
	MIME string
	// Ambiguous holds the runner-up MIME types when two or more signals
	// tied for first place with different results.
	Ambiguous []string
}

// IsHTML, IsXML, IsText report coarse format families extractors dispatch
// on.
func (i Info) IsHTML() bool { return i.MIME == "text/html" || i.MIME == "application/xhtml+xml" }
func (i Info) IsXML() bool {
	return i.MIME == "text/xml" || i.MIME == "application/xml" || strings.HasSuffix(i.MIME, "+xml")
}
func (i Info) IsJavaScript() bool {
	return i.MIME == "text/javascript" || i.MIME == "application/javascript" || i.MIME == "application/x-javascript"
}
func (i Info) IsZip() bool {
	return i.MIME == "application/zip" || i.MIME == "application/x-zip-compressed"
}
func (i Info) IsText() bool { return strings.HasPrefix(i.MIME, "text/") }

// Detect combines magic-byte sniffing, the Content-Type header, and the
// URL path extension into a single winning Info: the highest-voted format
// wins, and ties record every runner-up in Ambiguous. An empty body casts
// no sniffing vote; with no vote at all the result is
// application/octet-stream.
func Detect(body []byte, contentType string, urlPath string) Info {
	votes := make(map[string]int)

	if sniffed := mimetype.Detect(body); len(body) > 0 && sniffed != nil {
		votes[normalize(sniffed.String())]++
	}

	for _, ct := range splitContentTypeValues(contentType) {
		if m, _, err := mime.ParseMediaType(ct); err == nil {
			votes[normalize(m)]++
		}
	}

	if ext := strings.ToLower(path.Ext(urlPath)); ext != "" {
		if m := mime.TypeByExtension(ext); m != "" {
			if parsed, _, err := mime.ParseMediaType(m); err == nil {
				votes[normalize(parsed)]++
			}
		}
	}

	return tally(votes)
}

func tally(votes map[string]int) Info {
	best := 0
	var winners []string
	for m, w := range votes {
		switch {
		case w > best:
			best = w
			winners = []string{m}
		case w == best:
			winners = append(winners, m)
		}
	}
	if len(winners) == 0 {
		return Info{MIME: "application/octet-stream"}
	}
	if len(winners) == 1 {
		return Info{MIME: winners[0]}
	}
	runnersUp := append([]string(nil), winners[1:]...)
	return Info{MIME: winners[0], Ambiguous: runnersUp}
}

// normalize strips parameters (e.g. "; charset=utf-8") so votes for the
// same base type from different signals coalesce.
func normalize(m string) string {
	if i := strings.Index(m, ";"); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}

// splitContentTypeValues handles the "multi-value parsed" requirement: a
// Content-Type header can legally (if unusually) repeat, and proxies
// sometimes fold repeated headers with a comma.
func splitContentTypeValues(contentType string) []string {
	if contentType == "" {
		return nil
	}
	parts := strings.Split(contentType, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
