// Package crawlresult defines the slim per-URL record persisted in the
// index database: everything about a fetch except the body itself,
// which lives in a WARC file, an external file, or (for the smallest
// pages) inline.
package crawlresult

import (
	"time"

	"github.com/FranksOps/atra/internal/format"
	"github.com/FranksOps/atra/internal/langdetect"
	"github.com/FranksOps/atra/internal/warcstore"
)

// HintKind tags which of StoredDataHint's variants is populated.
type HintKind uint8

const (
	// HintNone means no body was persisted (e.g. a fetch that failed before
	// any body arrived).
	HintNone HintKind = iota
	// HintExternal means the body lives in a file outside the WARC archive,
	// referenced by path.
	HintExternal
	// HintWarc means the body lives in a WARC record, located by skip
	// pointer.
	HintWarc
	// HintInMemory means the body is small enough to embed directly in the
	// index record.
	HintInMemory
)

// StoredDataHint tells a reader where to find the body for a Result: an
// external file, a WARC record, an inline copy, or nothing, as a tagged
// union.
type StoredDataHint struct {
	Kind         HintKind
	ExternalPath string
	WarcSkip     warcstore.SkipInstruction
	InMemory     []byte
}

// External builds a hint pointing at a file outside the WARC archive.
func External(path string) StoredDataHint {
	return StoredDataHint{Kind: HintExternal, ExternalPath: path}
}

// Warc builds a hint pointing at a WARC record via its skip instruction.
func Warc(instr warcstore.SkipInstruction) StoredDataHint {
	return StoredDataHint{Kind: HintWarc, WarcSkip: instr}
}

// InMemory builds a hint embedding the body directly in the index record.
func InMemory(data []byte) StoredDataHint {
	return StoredDataHint{Kind: HintInMemory, InMemory: data}
}

// None builds a hint for a Result with no stored body at all.
func None() StoredDataHint { return StoredDataHint{Kind: HintNone} }

// Header is one HTTP response header pair, preserving repeats (a header
// name may appear more than once).
type Header struct {
	Name  string
	Value string
}

// Result is the slim crawl result stored in the index: every
// field a consumer needs to know about a fetch, with the actual body
// content left out of the struct entirely.
type Result struct {
	CreatedAt      time.Time
	URL            string
	StatusCode     int
	FileInfo       format.Info
	Encoding       string
	Headers        []Header
	FinalRedirect  string
	ExtractedLinks []string
	Language       langdetect.Result
	StoredData     StoredDataHint
}
