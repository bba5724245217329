package extract

import (
	"github.com/FranksOps/atra/internal/format"
	"github.com/FranksOps/atra/internal/gdprfilter"
)

// Config bundles everything a dispatch pass needs, threaded unchanged
// through recursive calls made by the Zip extractor.
type Config struct {
	HTML               HTMLOptions
	GDPRFilter         gdprfilter.Filter
	LanguageISO6391    string
	Commands           []Command
	MaxExtractionDepth int // 0 means unbounded
}

// DefaultConfig pairs DefaultCommands with DefaultHTMLOptions and a
// conservative recursion bound for archive extraction.
func DefaultConfig() Config {
	return Config{
		HTML:               DefaultHTMLOptions(),
		Commands:           DefaultCommands(),
		MaxExtractionDepth: 5,
	}
}

// Dispatch runs cfg's extractor commands against body/info in two passes:
// first every non-fallback command compatible with the detected format,
// then, only if that pass produced zero links, every fallback command
// unconditionally. Links accumulate deduplicated across both passes.
func Dispatch(body []byte, info format.Info, cfg Config) *Result {
	return dispatch(0, body, info, cfg)
}

func dispatch(nesting int, body []byte, info format.Info, cfg Config) *Result {
	result := newResult()
	if cfg.MaxExtractionDepth > 0 && nesting > cfg.MaxExtractionDepth {
		return result
	}

	if runPass(nesting, body, info, cfg, result, false) {
		return result
	}
	if result.NoExtractorApplied() || result.IsEmpty() {
		runPass(nesting, body, info, cfg, result, true)
	}
	return result
}

// runPass reports whether extraction for the page should stop entirely,
// set when extractHTML finds a nofollow directive.
func runPass(nesting int, body []byte, info format.Info, cfg Config, result *Result, fallback bool) bool {
	for _, cmd := range cfg.Commands {
		if cmd.IsFallback() != fallback {
			continue
		}
		if !fallback && !cmd.CanApply(info) {
			continue
		}
		if !result.MarkApplied(cmd.Method) {
			continue
		}
		if !runExtractor(nesting, cmd.Method, body, info, cfg, result) {
			return true
		}
	}
	return false
}

func runExtractor(nesting int, method Method, body []byte, info format.Info, cfg Config, result *Result) (ok bool) {
	switch method {
	case MethodHTML:
		return extractHTML(body, cfg.HTML, cfg.GDPRFilter, cfg.LanguageISO6391, result)
	case MethodXML:
		return extractXML(body, result)
	case MethodJavaScript:
		extractJavaScript(body, result)
	case MethodZip:
		extractZip(nesting, body, cfg, result)
	case MethodRaw:
		extractRaw(string(body), result)
	case MethodBinaryHeuristic:
		extractBinaryHeuristic(body, result)
	}
	return true
}
