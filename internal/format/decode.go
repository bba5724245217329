package format

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// InMemoryThreshold is the body size above which Decode spills the decoded
// text to a temp file instead of returning it in memory.
const InMemoryThreshold = 8 << 20 // 8 MiB

// Decoded is the result of decoding a fetched body to text.
type Decoded struct {
	// Text holds the decoded content when it fit in memory (len(Text)
	// bytes < InMemoryThreshold). Empty when SpillPath is set.
	Text string
	// SpillPath is set instead of Text when the decoded content exceeded
	// InMemoryThreshold; the caller is responsible for removing the file
	// once done with it.
	SpillPath string
	// Charset is the encoding name used to decode the body.
	Charset string
}

// Decode converts body to UTF-8 text. A BOM wins outright; next a charset
// named explicitly in the Content-Type header; last comes charset
// detection hinted by the registrable domain's TLD (e.g. ".ru" nudges
// toward Windows-1251). A charset declared only in an HTML meta tag is
// reported as uncertain by DetermineEncoding, so such bodies go through
// detection as well.
func Decode(body []byte, contentType, tldHint, tempDir string) (Decoded, error) {
	if enc, name, rest, ok := sniffBOM(body); ok {
		return decodeWith(enc, name, rest, tempDir)
	}

	if enc, name, certain := charset.DetermineEncoding(body, contentType); certain {
		return decodeWith(enc, name, body, tempDir)
	}

	name := detectCharset(body, tldHint)
	enc, err := htmlindex.Get(name)
	if err != nil {
		// Fall back to treating it as already UTF-8: better to emit
		// possibly-mojibake text than to fail the whole page.
		return decodeWith(encoding.Nop, "utf-8", body, tempDir)
	}
	return decodeWith(enc, name, body, tempDir)
}

func sniffBOM(body []byte) (encoding.Encoding, string, []byte, bool) {
	switch {
	case bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}):
		return encoding.Nop, "utf-8", body[3:], true
	case bytes.HasPrefix(body, []byte{0xFF, 0xFE}):
		enc, _ := htmlindex.Get("utf-16le")
		return enc, "utf-16le", body[2:], true
	case bytes.HasPrefix(body, []byte{0xFE, 0xFF}):
		enc, _ := htmlindex.Get("utf-16be")
		return enc, "utf-16be", body[2:], true
	default:
		return nil, "", nil, false
	}
}

// detectCharset runs chardet and breaks ties with tldHint: if chardet
// reports low confidence and tldHint names a region with a well-known
// legacy encoding, that wins instead.
func detectCharset(body []byte, tldHint string) string {
	result, err := chardet.NewTextDetector().DetectBest(body)
	if err == nil && result != nil && result.Confidence > 30 {
		return strings.ToLower(result.Charset)
	}
	if enc, ok := tldEncodingHints[strings.ToLower(tldHint)]; ok {
		return enc
	}
	return "utf-8"
}

// tldEncodingHints is a small, explicitly-scoped table: a full
// TLD-to-legacy-encoding map is out of scope, this covers the common
// historical cases a charset detector alone tends to guess wrong.
var tldEncodingHints = map[string]string{
	"ru": "windows-1251",
	"ua": "windows-1251",
	"jp": "shift_jis",
	"kr": "euc-kr",
	"cn": "gbk",
	"tw": "big5",
	"gr": "windows-1253",
	"il": "windows-1255",
	"tr": "windows-1254",
}

func decodeWith(enc encoding.Encoding, name string, body []byte, tempDir string) (Decoded, error) {
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return Decoded{}, fmt.Errorf("context: decoding body as %s: %w", name, err)
	}

	if len(decoded) < InMemoryThreshold {
		return Decoded{Text: string(decoded), Charset: name}, nil
	}

	f, err := os.CreateTemp(tempDir, "atra-decoded-*.txt")
	if err != nil {
		return Decoded{}, fmt.Errorf("context: spilling decoded body to disk: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(decoded); err != nil {
		return Decoded{}, fmt.Errorf("context: writing spilled body: %w", err)
	}
	return Decoded{SpillPath: f.Name(), Charset: name}, nil
}
