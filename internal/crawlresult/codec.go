package crawlresult

import (
	"errors"
	"fmt"

	"github.com/FranksOps/atra/internal/warcstore"
)

// ErrBufferTooSmall is returned when a stored record is truncated before a
// length prefix can be satisfied; such entries are corrupt and should be
// logged and skipped rather than treated as fatal.
var ErrBufferTooSmall = errors.New("context: crawl result buffer too small")

// codecVersion guards against silently misreading a future layout change.
const codecVersion = 1

// Encode serializes r into the deterministic binary layout the
// slim-result index requires: fixed field order, headers and extracted
// links as length-prefixed repeated entries.
func (r Result) Encode() []byte {
	var b encoder
	b.putU8(codecVersion)
	b.putI64(r.CreatedAt.UnixNano())
	b.putString(r.URL)
	b.putI64(int64(r.StatusCode))
	b.putString(r.FileInfo.MIME)
	b.putStringSlice(r.FileInfo.Ambiguous)
	b.putString(r.Encoding)
	b.putU32(uint32(len(r.Headers)))
	for _, h := range r.Headers {
		b.putString(h.Name)
		b.putString(h.Value)
	}
	b.putString(r.FinalRedirect)
	b.putStringSlice(r.ExtractedLinks)
	b.putString(r.Language.ISO6391)
	b.putF64(r.Language.Confidence)
	encodeStoredDataHint(&b, r.StoredData)
	return b.buf
}

// Decode parses the layout produced by Encode.
func Decode(buf []byte) (Result, error) {
	d := decoder{buf: buf}
	version, err := d.u8()
	if err != nil {
		return Result{}, err
	}
	if version != codecVersion {
		return Result{}, fmt.Errorf("context: crawl result has unsupported codec version %d", version)
	}

	createdAtNs, err := d.i64()
	if err != nil {
		return Result{}, err
	}
	url, err := d.str()
	if err != nil {
		return Result{}, err
	}
	statusCode, err := d.i64()
	if err != nil {
		return Result{}, err
	}
	mimeType, err := d.str()
	if err != nil {
		return Result{}, err
	}
	ambiguous, err := d.strSlice()
	if err != nil {
		return Result{}, err
	}
	encoding, err := d.str()
	if err != nil {
		return Result{}, err
	}
	headerCount, err := d.u32()
	if err != nil {
		return Result{}, err
	}
	headers := make([]Header, 0, headerCount)
	for i := uint32(0); i < headerCount; i++ {
		name, err := d.str()
		if err != nil {
			return Result{}, err
		}
		value, err := d.str()
		if err != nil {
			return Result{}, err
		}
		headers = append(headers, Header{Name: name, Value: value})
	}
	finalRedirect, err := d.str()
	if err != nil {
		return Result{}, err
	}
	extractedLinks, err := d.strSlice()
	if err != nil {
		return Result{}, err
	}
	langISO, err := d.str()
	if err != nil {
		return Result{}, err
	}
	langConfidence, err := d.f64()
	if err != nil {
		return Result{}, err
	}
	hint, err := decodeStoredDataHint(&d)
	if err != nil {
		return Result{}, err
	}

	return Result{
		CreatedAt:      unixNanoTime(createdAtNs),
		URL:            url,
		StatusCode:     int(statusCode),
		FileInfo:       fileInfo(mimeType, ambiguous),
		Encoding:       encoding,
		Headers:        headers,
		FinalRedirect:  finalRedirect,
		ExtractedLinks: extractedLinks,
		Language:       languageResult(langISO, langConfidence),
		StoredData:     hint,
	}, nil
}

func encodeStoredDataHint(b *encoder, h StoredDataHint) {
	b.putU8(uint8(h.Kind))
	switch h.Kind {
	case HintExternal:
		b.putString(h.ExternalPath)
	case HintWarc:
		encodeSkipInstruction(b, h.WarcSkip)
	case HintInMemory:
		b.putBytes(h.InMemory)
	}
}

func decodeStoredDataHint(d *decoder) (StoredDataHint, error) {
	kind, err := d.u8()
	if err != nil {
		return StoredDataHint{}, err
	}
	switch HintKind(kind) {
	case HintExternal:
		path, err := d.str()
		if err != nil {
			return StoredDataHint{}, err
		}
		return External(path), nil
	case HintWarc:
		instr, err := decodeSkipInstruction(d)
		if err != nil {
			return StoredDataHint{}, err
		}
		return Warc(instr), nil
	case HintInMemory:
		data, err := d.bytes()
		if err != nil {
			return StoredDataHint{}, err
		}
		return InMemory(data), nil
	case HintNone:
		return None(), nil
	default:
		return StoredDataHint{}, fmt.Errorf("context: unknown stored-data-hint kind %d", kind)
	}
}

func encodeSkipInstruction(b *encoder, instr warcstore.SkipInstruction) {
	b.putU8(uint8(instr.Kind))
	b.putU32(instr.HeaderOctetCount)
	b.putU32(uint32(len(instr.Pointers)))
	for _, p := range instr.Pointers {
		b.putString(p.Path)
		b.putI64(p.Position)
		b.putU32(p.WarcHeaderOffset)
		b.putU64(p.BodyOctetCount)
	}
}

func decodeSkipInstruction(d *decoder) (warcstore.SkipInstruction, error) {
	kind, err := d.u8()
	if err != nil {
		return warcstore.SkipInstruction{}, err
	}
	headerOctets, err := d.u32()
	if err != nil {
		return warcstore.SkipInstruction{}, err
	}
	count, err := d.u32()
	if err != nil {
		return warcstore.SkipInstruction{}, err
	}
	pointers := make([]warcstore.SkipPointer, 0, count)
	for i := uint32(0); i < count; i++ {
		path, err := d.str()
		if err != nil {
			return warcstore.SkipInstruction{}, err
		}
		position, err := d.i64()
		if err != nil {
			return warcstore.SkipInstruction{}, err
		}
		headerOffset, err := d.u32()
		if err != nil {
			return warcstore.SkipInstruction{}, err
		}
		bodyOctets, err := d.u64()
		if err != nil {
			return warcstore.SkipInstruction{}, err
		}
		pointers = append(pointers, warcstore.SkipPointer{
			Path:             path,
			Position:         position,
			WarcHeaderOffset: headerOffset,
			BodyOctetCount:   bodyOctets,
		})
	}
	return warcstore.SkipInstruction{
		Pointers:         pointers,
		HeaderOctetCount: headerOctets,
		Kind:             warcstore.InstructionKind(kind),
	}, nil
}
