package crawlresult

import (
	"fmt"
	"math"
	"time"

	"github.com/FranksOps/atra/internal/format"
	"github.com/FranksOps/atra/internal/langdetect"
)

// encoder accumulates bytes for Encode using fixed-width integers and
// length-prefixed strings/slices, matching the manual big-endian style
// internal/linkstate uses for its own on-disk records.
type encoder struct {
	buf []byte
}

func (e *encoder) putU8(v uint8) { e.buf = append(e.buf, v) }

func (e *encoder) putU32(v uint32) {
	e.buf = append(e.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (e *encoder) putU64(v uint64) {
	for i := 7; i >= 0; i-- {
		e.buf = append(e.buf, byte(v>>(8*i)))
	}
}

func (e *encoder) putI64(v int64) { e.putU64(uint64(v)) }

func (e *encoder) putF64(v float64) { e.putU64(math.Float64bits(v)) }

func (e *encoder) putBytes(v []byte) {
	e.putU32(uint32(len(v)))
	e.buf = append(e.buf, v...)
}

func (e *encoder) putString(v string) { e.putBytes([]byte(v)) }

func (e *encoder) putStringSlice(v []string) {
	e.putU32(uint32(len(v)))
	for _, s := range v {
		e.putString(s)
	}
}

// decoder walks a buffer produced by encoder, failing with
// ErrBufferTooSmall rather than panicking on truncated input: corrupt
// index entries are logged and skipped, never fatal.
type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) need(n int) error {
	if len(d.buf)-d.pos < n {
		return fmt.Errorf("%w: need %d more bytes at offset %d, have %d", ErrBufferTooSmall, n, d.pos, len(d.buf)-d.pos)
	}
	return nil
}

func (d *decoder) u8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := uint32(d.buf[d.pos])<<24 | uint32(d.buf[d.pos+1])<<16 | uint32(d.buf[d.pos+2])<<8 | uint32(d.buf[d.pos+3])
	d.pos += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(d.buf[d.pos+i])
	}
	d.pos += 8
	return v, nil
}

func (d *decoder) i64() (int64, error) {
	v, err := d.u64()
	return int64(v), err
}

func (d *decoder) f64() (float64, error) {
	v, err := d.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	v := append([]byte(nil), d.buf[d.pos:d.pos+int(n)]...)
	d.pos += int(n)
	return v, nil
}

func (d *decoder) str() (string, error) {
	b, err := d.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) strSlice() ([]string, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := d.str()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func unixNanoTime(ns int64) time.Time { return time.Unix(0, ns).UTC() }

func fileInfo(mime string, ambiguous []string) format.Info {
	return format.Info{MIME: mime, Ambiguous: ambiguous}
}

func languageResult(iso6391 string, confidence float64) langdetect.Result {
	return langdetect.Result{ISO6391: iso6391, Confidence: confidence}
}
