package warcstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// bodyTrailer is the four-byte separator written after every record
// body, excluded from SkipPointer.BodyOctetCount.
var bodyTrailer = []byte("\r\n\r\n")

// state is the writer's two-phase state machine.
type state int

const (
	expectHeader state = iota
	expectBody
)

// ErrWrongState is returned when a call is made out of sequence, e.g.
// WriteBody before WriteHeader.
var ErrWrongState = errors.New("context: warc writer is in the wrong state")

// ErrCorrupt is returned by every operation once a prior I/O failure has
// set the sticky corrupt flag: once corrupt, the writer refuses further
// operations.
var ErrCorrupt = errors.New("context: warc writer is corrupt")

// Writer appends WARC records to a rolling set of files, handing back a
// precise SkipPointer/SkipInstruction for every record so the index DB can
// locate bodies without re-parsing headers.
type Writer struct {
	mu           sync.Mutex
	paths        *FilePathProvider
	f            *os.File
	path         string
	bytesWritten int64
	st           state
	corrupt      bool
}

// NewWriter opens the first file from paths and returns a ready Writer.
func NewWriter(paths *FilePathProvider) (*Writer, error) {
	w := &Writer{paths: paths, st: expectHeader}
	if err := w.openNext(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) openNext() error {
	path, err := w.paths.Next()
	if err != nil {
		return fmt.Errorf("context: allocating warc file path: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("context: opening warc file %q: %w", path, err)
	}
	w.f = f
	w.path = path
	w.bytesWritten = 0
	return nil
}

// Close flushes and closes the current underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	return w.f.Close()
}

// GetSkipPointer returns the path and offset a record written right now
// would start at. Valid only in the ExpectHeader phase.
func (w *Writer) GetSkipPointer() (path string, position int64, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkState(expectHeader); err != nil {
		return "", 0, err
	}
	return w.path, w.bytesWritten, nil
}

// ForwardIfFilesize closes the current file and opens a fresh one via the
// FilePathProvider when the current file's size has reached max. Valid
// only in the ExpectHeader phase. Returns the path that was closed, or ""
// if no rollover happened.
func (w *Writer) ForwardIfFilesize(max int64) (closedPath string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkState(expectHeader); err != nil {
		return "", err
	}
	if max <= 0 || w.bytesWritten < max {
		return "", nil
	}
	closed := w.path
	if err := w.f.Close(); err != nil {
		w.corrupt = true
		return "", fmt.Errorf("context: closing warc file %q for rollover: %w", closed, err)
	}
	if err := w.openNext(); err != nil {
		w.corrupt = true
		return "", err
	}
	return closed, nil
}

// WriteHeader writes h's fields and transitions to ExpectBody. On I/O
// failure the writer becomes sticky-corrupt.
func (w *Writer) WriteHeader(h Header) (headerOctets uint32, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkState(expectHeader); err != nil {
		return 0, err
	}
	raw := h.render()
	if _, err := w.f.Write(raw); err != nil {
		w.corrupt = true
		return 0, fmt.Errorf("context: writing warc header: %w", err)
	}
	w.bytesWritten += int64(len(raw))
	w.st = expectBody
	return uint32(len(raw)), nil
}

// WriteBody writes body (already the final encoded payload: base64 text
// for binary content, or the raw UTF-8 bytes) followed by the body
// trailer, then transitions back to ExpectHeader. Must follow WriteHeader.
//
// maxFileSize bounds individual files; if body would overflow the current
// file, the writer rolls to fresh files mid-body using WARC/1.1's own
// segmented-record fields, and returns the ordered list of segment
// pointers a caller folds into a multi-pointer SkipInstruction. Typical
// rollover policy avoids triggering this, but it is fully supported.
func (w *Writer) WriteBody(recordID string, body []byte, maxFileSize int64) (segments []SkipPointer, bodyOctets uint64, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkState(expectBody); err != nil {
		return nil, 0, err
	}

	// The header was already written before this call, so the body's
	// first segment starts exactly where the header left off.
	segStart := w.bytesWritten

	remaining := body
	segNum := 0
	var written uint64

	for {
		space := remaining
		if maxFileSize > 0 {
			avail := maxFileSize - w.bytesWritten
			if avail < 0 {
				avail = 0
			}
			if int64(len(remaining)) > avail && avail > 0 {
				space = remaining[:avail]
			}
		}

		if err := w.writeRaw(space); err != nil {
			return nil, 0, err
		}
		written += uint64(len(space))

		ptr := SkipPointer{Path: w.path, Position: segStart, BodyOctetCount: uint64(len(space))}
		segments = append(segments, ptr)

		remaining = remaining[len(space):]
		if len(remaining) == 0 {
			break
		}

		// Overflowed: close this file, open the next, write a
		// continuation header, and keep going.
		segNum++
		if err := w.f.Close(); err != nil {
			w.corrupt = true
			return nil, 0, fmt.Errorf("context: closing warc file mid-body: %w", err)
		}
		if err := w.openNext(); err != nil {
			w.corrupt = true
			return nil, 0, err
		}
		cont := continuationHeader(recordID, segNum, time.Now(), 0, false, 0)
		raw := cont.render()
		if err := w.writeRaw(raw); err != nil {
			return nil, 0, err
		}
		segStart = w.bytesWritten
	}

	if err := w.writeRaw(bodyTrailer); err != nil {
		return nil, 0, err
	}
	w.st = expectHeader
	return segments, written, nil
}

func (w *Writer) writeRaw(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if _, err := w.f.Write(b); err != nil {
		w.corrupt = true
		return fmt.Errorf("context: writing warc body: %w", err)
	}
	w.bytesWritten += int64(len(b))
	return nil
}

// WriteBodyReader is a convenience for callers holding a streaming body
// (e.g. a spilled-to-disk decode) rather than an in-memory slice.
func (w *Writer) WriteBodyReader(recordID string, r io.Reader, maxFileSize int64) (segments []SkipPointer, bodyOctets uint64, err error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("context: reading body for warc write: %w", err)
	}
	return w.WriteBody(recordID, body, maxFileSize)
}

func (w *Writer) checkState(expected state) error {
	if w.corrupt {
		return ErrCorrupt
	}
	if w.st != expected {
		return fmt.Errorf("%w: have %d, want %d", ErrWrongState, w.st, expected)
	}
	return nil
}

// Corrupted reports whether the sticky corruption flag has been set.
func (w *Writer) Corrupted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.corrupt
}

// NewRecordID mints a fresh WARC-Record-ID for a record about to be
// written.
func NewRecordID() string { return uuid.NewString() }
