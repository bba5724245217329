// Package warcstore implements the append-only WARC record writer and its
// skip-pointer index. Records are appended to a rolling set of
// files; every stored page gets back a precise byte-range pointer so the
// index DB can reference its body without embedding it.
package warcstore

import "fmt"

// SkipPointer locates one WARC record's body within a specific file,
// without needing to re-parse the header to find it.
type SkipPointer struct {
	// Path is the WARC file this pointer's record lives in.
	Path string
	// Position is the byte offset, from the start of Path, to the start
	// of the WARC header.
	Position int64
	// WarcHeaderOffset is the size of the WARC header in bytes.
	WarcHeaderOffset uint32
	// BodyOctetCount is the number of body bytes, excluding the four-byte
	// CRLFCRLF trailer.
	BodyOctetCount uint64
}

// BodyRange returns the absolute [start, end) byte range of the body
// within Path.
func (p SkipPointer) BodyRange() (start, end int64) {
	start = p.Position + int64(p.WarcHeaderOffset)
	return start, start + int64(p.BodyOctetCount)
}

func (p SkipPointer) String() string {
	return fmt.Sprintf("%s@%d+%d(header=%d)", p.Path, p.Position, p.BodyOctetCount, p.WarcHeaderOffset)
}

// InstructionKind selects how the body payload is encoded in the WARC
// record that a SkipInstruction points at.
type InstructionKind int

const (
	// Normal means the body is stored UTF-8-decodable and embedded as-is.
	Normal InstructionKind = iota
	// Base64 means the body is binary content, base64-encoded into the
	// WARC payload.
	Base64
	// ExternalFileHint means the body was spilled to disk separately; the
	// WARC record only carries a reference to that external file.
	ExternalFileHint
	// NoData means no body was persisted at all (e.g. a fetch error).
	NoData
)

func (k InstructionKind) String() string {
	switch k {
	case Normal:
		return "Normal"
	case Base64:
		return "Base64"
	case ExternalFileHint:
		return "ExternalFileHint"
	case NoData:
		return "NoData"
	default:
		return "Unknown"
	}
}

// SkipInstruction locates a stored body, either as a single pointer or, for
// bodies that spanned a file rollover mid-write, an ordered list of
// pointers to be concatenated. Only the first segment's HeaderOctetCount is
// meaningful; continuation segments are pure body bytes.
type SkipInstruction struct {
	Pointers         []SkipPointer
	HeaderOctetCount uint32
	Kind             InstructionKind
}

// NewSingle builds a single-pointer instruction.
func NewSingle(pointer SkipPointer, headerOctetCount uint32, kind InstructionKind) SkipInstruction {
	return SkipInstruction{Pointers: []SkipPointer{pointer}, HeaderOctetCount: headerOctetCount, Kind: kind}
}

// NewMulti builds a multi-pointer instruction for a body that spans more
// than one file, e.g. due to a rollover mid-write. kind is always Normal or
// Base64: a body split across files still had to fit in memory to be
// written, so ExternalFileHint/NoData never apply here.
func NewMulti(pointers []SkipPointer, headerOctetCount uint32, base64 bool) SkipInstruction {
	kind := Normal
	if base64 {
		kind = Base64
	}
	return SkipInstruction{Pointers: pointers, HeaderOctetCount: headerOctetCount, Kind: kind}
}

// IsMulti reports whether this instruction spans more than one file.
func (i SkipInstruction) IsMulti() bool { return len(i.Pointers) > 1 }

// IsExternalHint reports whether this instruction only references an
// externally-stored file rather than embedding the body in the WARC
// record.
func (i SkipInstruction) IsExternalHint() bool {
	return len(i.Pointers) == 1 && i.Kind == ExternalFileHint
}
