package warcstore

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// warcVersion is the line every WARC record starts with.
const warcVersion = "WARC/1.1"

// Header is the named-field block of one WARC record, matching the
// warc-fields grammar: version CRLF, then "Name: Value" lines, then a
// blank line separating the header from the body.
type Header struct {
	RecordID      string
	RecordType    string // e.g. "response", "resource", "metadata", "continuation"
	Date          time.Time
	TargetURI     string
	ContentType   string
	ContentLength uint64
	// Extra carries additional named fields (WARC-IP-Address,
	// WARC-Segment-Number, WARC-Segment-Origin-ID,
	// WARC-Segment-Total-Length, ...) beyond the common ones above.
	Extra map[string]string
}

// render serializes h into the wire bytes written before the body,
// including the trailing CRLF that separates header from body.
func (h Header) render() []byte {
	var b strings.Builder
	b.WriteString(warcVersion)
	b.WriteString("\r\n")

	writeField(&b, "WARC-Record-ID", fmt.Sprintf("<urn:uuid:%s>", h.RecordID))
	writeField(&b, "WARC-Date", h.Date.UTC().Format(time.RFC3339Nano))
	writeField(&b, "WARC-Type", h.RecordType)
	if h.TargetURI != "" {
		writeField(&b, "WARC-Target-URI", h.TargetURI)
	}
	writeField(&b, "Content-Length", fmt.Sprintf("%d", h.ContentLength))
	if h.ContentType != "" {
		writeField(&b, "Content-Type", h.ContentType)
	}

	keys := make([]string, 0, len(h.Extra))
	for k := range h.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeField(&b, k, h.Extra[k])
	}

	b.WriteString("\r\n")
	return []byte(b.String())
}

func writeField(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}

// continuationHeader builds the header for one segment of a body that
// spans more than one WARC file (a supported, if rare, case). Segment
// numbering and WARC-Segment-* fields follow WARC/1.1's own
// segmented-record convention rather than inventing a new one.
func continuationHeader(originID string, segmentNumber int, date time.Time, contentLength uint64, last bool, total uint64) Header {
	h := Header{
		RecordID:      fmt.Sprintf("%s-seg%d", originID, segmentNumber),
		RecordType:    "continuation",
		Date:          date,
		ContentLength: contentLength,
		Extra: map[string]string{
			"WARC-Segment-Number":     fmt.Sprintf("%d", segmentNumber),
			"WARC-Segment-Origin-ID":  fmt.Sprintf("<urn:uuid:%s>", originID),
		},
	}
	if last {
		h.Extra["WARC-Segment-Total-Length"] = fmt.Sprintf("%d", total)
	}
	return h
}
