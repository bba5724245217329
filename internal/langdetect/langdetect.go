// Package langdetect identifies the natural language of extracted page
// text, feeding the "language" field of the slim crawl result.
package langdetect

import (
	"strings"

	"github.com/RadhiFadlillah/whatlanggo"
)

// MinConfidence is the whatlanggo confidence below which a detection is
// treated as unreliable and reported as unknown rather than guessed.
const MinConfidence = 0.3

// Result is the outcome of detecting a text's language.
type Result struct {
	// ISO6391 is the two-letter language code, e.g. "en". Empty when the
	// language could not be determined reliably.
	ISO6391 string
	// Confidence is whatlanggo's own confidence score in [0, 1].
	Confidence float64
}

// Unknown reports whether detection failed to produce a reliable result.
func (r Result) Unknown() bool { return r.ISO6391 == "" }

// Detect guesses the language of text. Very short or mostly non-linguistic
// text (boilerplate, nav menus) tends to confuse whatlanggo, so results
// below MinConfidence are folded into Unknown rather than reported as a
// low-confidence guess.
func Detect(text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() || info.Confidence < MinConfidence {
		return Result{Confidence: info.Confidence}
	}

	return Result{
		ISO6391:    info.Lang.Iso6391(),
		Confidence: info.Confidence,
	}
}
