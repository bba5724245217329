// Package extract dispatches a fetched, decoded page to the set of
// extractors compatible with its detected format and collects the links
// they find.
package extract

import "github.com/FranksOps/atra/internal/format"

// Method names one of the concrete extractors a Command can dispatch to.
type Method string

const (
	MethodHTML            Method = "HtmlV1"
	MethodJavaScript      Method = "JavaScript"
	MethodXML             Method = "Xml"
	MethodRaw             Method = "RawV1"
	MethodBinaryHeuristic Method = "BinaryHeuristic"
	MethodZip             Method = "Zip"
)

// ApplyWhen controls which dispatch pass a Command runs in.
type ApplyWhen int

const (
	// Always runs in the primary pass regardless of is_suitable.
	Always ApplyWhen = iota
	// IfSuitable runs in the primary pass only when IsSuitable(info) holds.
	IfSuitable
	// Fallback runs only in the second pass, and only if the primary pass
	// produced zero links.
	Fallback
)

// IsSuitable reports whether info's detected format is compatible with
// method. ZIP matches the zip MIME types, Raw matches any text/* type, and
// BinaryHeuristic matches every format (DefaultCommands runs it only as a
// fallback).
func (m Method) IsSuitable(info format.Info) bool {
	switch m {
	case MethodHTML:
		return info.IsHTML()
	case MethodXML:
		return info.IsXML()
	case MethodJavaScript:
		return info.IsJavaScript()
	case MethodZip:
		return info.IsZip()
	case MethodRaw:
		return info.IsText()
	case MethodBinaryHeuristic:
		return true
	default:
		return false
	}
}

// Command pairs a Method with the pass it runs in.
type Command struct {
	Method    Method
	ApplyWhen ApplyWhen
}

// CanApply reports whether this command's extractor is compatible with
// info in the primary (non-fallback) pass.
func (c Command) CanApply(info format.Info) bool {
	switch c.ApplyWhen {
	case Always:
		return true
	case IfSuitable:
		return c.Method.IsSuitable(info)
	default:
		return false
	}
}

// IsFallback reports whether this command only runs in the fallback pass.
func (c Command) IsFallback() bool { return c.ApplyWhen == Fallback }

// DefaultCommands is the extractor set wired in by default: HTML, XML and
// JavaScript apply when suitable; raw URL scanning and the binary
// heuristic extractor are fallbacks of last resort. ZIP is suitability-
// gated like HTML/XML since archive bodies are unambiguous by signature.
func DefaultCommands() []Command {
	return []Command{
		{Method: MethodHTML, ApplyWhen: IfSuitable},
		{Method: MethodXML, ApplyWhen: IfSuitable},
		{Method: MethodJavaScript, ApplyWhen: IfSuitable},
		{Method: MethodZip, ApplyWhen: IfSuitable},
		{Method: MethodRaw, ApplyWhen: Fallback},
		{Method: MethodBinaryHeuristic, ApplyWhen: Fallback},
	}
}
