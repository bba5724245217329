package warcstore

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"time"
	"unicode/utf8"
)

// Body is the already-decided payload for one record: the encoding choice
// is made by the caller (the crawl loop), not this package.
type Body struct {
	Kind InstructionKind
	// Data holds the bytes to embed for Normal/Base64 (already base64-text
	// for Kind == Base64). Unused for ExternalFileHint/NoData.
	Data []byte
	// ExternalPath names the file holding the body when Kind ==
	// ExternalFileHint.
	ExternalPath string
}

// TextBody chooses Normal for UTF-8-decodable content.
func TextBody(data []byte) Body {
	if utf8.Valid(data) {
		return Body{Kind: Normal, Data: data}
	}
	return Body{Kind: Base64, Data: []byte(base64.StdEncoding.EncodeToString(data))}
}

// ExternalBody references content already spilled to an external file
// outside the WARC archive.
func ExternalBody(path string) Body {
	return Body{Kind: ExternalFileHint, ExternalPath: path}
}

// NoBody marks a record with no stored payload (e.g. a fetch that failed
// before any body was received).
func NoBody() Body { return Body{Kind: NoData} }

// Append writes one complete WARC record (header + body + trailer) for
// targetURI, rolling to a fresh file first if maxFileSize has been
// reached, and returns the SkipInstruction the index should store for it.
func (w *Writer) Append(targetURI, contentType string, body Body, maxFileSize int64) (SkipInstruction, error) {
	if _, err := w.ForwardIfFilesize(maxFileSize); err != nil {
		return SkipInstruction{}, err
	}

	path, pos, err := w.GetSkipPointer()
	if err != nil {
		return SkipInstruction{}, err
	}

	recordID := NewRecordID()
	h := Header{
		RecordID:      recordID,
		RecordType:    "response",
		Date:          time.Now(),
		TargetURI:     targetURI,
		ContentType:   contentType,
		ContentLength: uint64(len(body.Data)),
	}
	if body.Kind == ExternalFileHint {
		h.ContentLength = 0
		h.Extra = map[string]string{"WARC-External-Bin-File": body.ExternalPath}
	}

	headerOctets, err := w.WriteHeader(h)
	if err != nil {
		return SkipInstruction{}, err
	}

	segments, _, err := w.WriteBody(recordID, body.Data, maxFileSize)
	if err != nil {
		return SkipInstruction{}, err
	}
	if len(segments) == 0 {
		segments = []SkipPointer{{Path: path, Position: pos}}
	}
	segments[0].Path = path
	segments[0].Position = pos
	segments[0].WarcHeaderOffset = headerOctets

	if len(segments) > 1 {
		return NewMulti(segments, headerOctets, body.Kind == Base64), nil
	}
	return SkipInstruction{Pointers: segments, HeaderOctetCount: headerOctets, Kind: body.Kind}, nil
}

// Read reconstructs the body bytes a SkipInstruction points at,
// concatenating segments in order and undoing base64 where applicable.
func Read(instr SkipInstruction) ([]byte, error) {
	if instr.Kind == NoData || len(instr.Pointers) == 0 {
		return nil, nil
	}
	if instr.IsExternalHint() {
		return nil, fmt.Errorf("context: warc record is an external-file hint; read the body from the path recorded alongside it instead")
	}

	var collected []byte
	for i, ptr := range instr.Pointers {
		headerOffset := uint32(0)
		if i == 0 {
			headerOffset = instr.HeaderOctetCount
		}
		chunk, err := readRange(ptr, headerOffset)
		if err != nil {
			return nil, err
		}
		collected = append(collected, chunk...)
	}

	if instr.Kind == Base64 {
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(collected)))
		n, err := base64.StdEncoding.Decode(decoded, collected)
		if err != nil {
			return nil, fmt.Errorf("context: base64-decoding warc body: %w", err)
		}
		return decoded[:n], nil
	}
	return collected, nil
}

func readRange(ptr SkipPointer, headerOffset uint32) ([]byte, error) {
	f, err := os.Open(ptr.Path)
	if err != nil {
		return nil, fmt.Errorf("context: opening warc file %q: %w", ptr.Path, err)
	}
	defer f.Close()

	start := ptr.Position + int64(headerOffset)
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("context: seeking warc file %q: %w", ptr.Path, err)
	}
	buf := make([]byte, ptr.BodyOctetCount)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("context: reading warc body from %q: %w", ptr.Path, err)
	}
	return buf, nil
}
