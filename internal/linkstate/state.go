package linkstate

import (
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/atra/internal/atraurl"
)

// Fixed byte offsets for the on-disk layout:
// [kind:1][last_significant_kind:1][timestamp:16][depth:24][payload:*]
const (
	kindPos             = 0
	lastSignificantPos  = 1
	offsetTimestamp     = lastSignificantPos + 1
	offsetDepth         = offsetTimestamp + 16
	offsetPayload       = offsetDepth + 24
	minimumRecordLength = offsetPayload
)

// ErrBufferTooSmall is returned when a stored record is truncated below the
// fixed-prefix length; such entries are corrupt and must be logged+skipped,
// never treated as fatal.
var ErrBufferTooSmall = errors.New("context: link-state buffer too small")

// ErrEmptyBuffer is returned by ReadKind on a zero-length record.
var ErrEmptyBuffer = errors.New("context: link-state buffer is empty")

// State is the durable per-URL lifecycle record.
type State struct {
	Kind                Kind
	LastSignificantKind Kind
	Timestamp           time.Time
	Depth               atraurl.Depth
	Payload             []byte
}

// New builds a fresh state with the given kind and timestamp. Payload may
// be nil. LastSignificantKind starts at Unset: the merge rule fills it in
// once an existing record is found.
func New(kind Kind, timestamp time.Time, depth atraurl.Depth, payload []byte) State {
	return State{
		Kind:                kind,
		LastSignificantKind: Unset,
		Timestamp:           timestamp,
		Depth:               depth,
		Payload:             payload,
	}
}

// Encode serializes s into the fixed-prefix + payload layout.
func (s State) Encode() []byte {
	buf := make([]byte, offsetPayload+len(s.Payload))
	buf[kindPos] = byte(s.Kind)
	buf[lastSignificantPos] = byte(s.LastSignificantKind)
	writeTimestamp(buf[offsetTimestamp:offsetDepth], s.Timestamp)
	writeDepth(buf[offsetDepth:offsetPayload], s.Depth)
	copy(buf[offsetPayload:], s.Payload)
	return buf
}

// Decode parses the fixed-prefix + payload layout produced by Encode.
func Decode(buf []byte) (State, error) {
	kind, err := ReadKind(buf)
	if err != nil {
		return State{}, err
	}
	if len(buf) < minimumRecordLength {
		return State{}, fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, minimumRecordLength, len(buf))
	}
	last := Kind(buf[lastSignificantPos])
	ts := readTimestamp(buf[offsetTimestamp:offsetDepth])
	depth := readDepth(buf[offsetDepth:offsetPayload])
	var payload []byte
	if len(buf) > offsetPayload {
		payload = append([]byte(nil), buf[offsetPayload:]...)
	}
	return State{
		Kind:                kind,
		LastSignificantKind: last,
		Timestamp:           ts,
		Depth:               depth,
		Payload:             payload,
	}, nil
}

// ReadKind reads only the leading kind byte, used by callers that want to
// fail fast on an empty record without decoding the rest.
func ReadKind(buf []byte) (Kind, error) {
	if len(buf) == 0 {
		return 0, ErrEmptyBuffer
	}
	return Kind(buf[kindPos]), nil
}

func writeTimestamp(dst []byte, t time.Time) {
	// 128-bit big-endian signed nanosecond count, sign-extended from the
	// int64 that time.UnixNano() gives us (valid until year 2262, and the
	// wire format stays forward-compatible with a true 128-bit producer).
	ns := t.UnixNano()
	var hi byte
	if ns < 0 {
		hi = 0xFF
	}
	for i := 0; i < 8; i++ {
		dst[i] = hi
	}
	for i := 0; i < 8; i++ {
		dst[15-i] = byte(ns >> (8 * i))
	}
}

func readTimestamp(src []byte) time.Time {
	var ns int64
	for i := 0; i < 8; i++ {
		ns = ns<<8 | int64(src[8+i])
	}
	return time.Unix(0, ns).UTC()
}

func writeDepth(dst []byte, d atraurl.Depth) {
	putU64(dst[0:8], d.DepthOnWebsite)
	putU64(dst[8:16], d.DistanceToSeed)
	putU64(dst[16:24], d.TotalDistanceToSeed)
}

func readDepth(src []byte) atraurl.Depth {
	return atraurl.Depth{
		DepthOnWebsite:      getU64(src[0:8]),
		DistanceToSeed:      getU64(src[8:16]),
		TotalDistanceToSeed: getU64(src[16:24]),
	}
}

func putU64(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[7-i] = byte(v >> (8 * i))
	}
}

func getU64(src []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(src[i])
	}
	return v
}
