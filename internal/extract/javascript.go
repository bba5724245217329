package extract

import "regexp"

// jsStringLiteral matches single- or double-quoted string literals that
// look like a URL or an absolute/relative path, a coarse heuristic for
// scanning script bodies rather than parsing a full JS AST.
var jsStringLiteral = regexp.MustCompile(`['"]((?:https?:)?//[^'"\s]{3,}|/[A-Za-z0-9][^'"\s]*\.[A-Za-z0-9]{1,6}(?:[?#][^'"\s]*)?)['"]`)

// extractJSLinks scans raw JavaScript source text for string literals that
// look like URLs, used both for inline <script> bodies (html.go) and for
// standalone .js files dispatched to MethodJavaScript directly.
func extractJSLinks(src string) []string {
	matches := jsStringLiteral.FindAllStringSubmatch(src, -1)
	if len(matches) == 0 {
		return nil
	}
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		links = append(links, m[1])
	}
	return links
}

// extractJavaScript dispatches a standalone JavaScript file body (as
// opposed to an inline <script> tag found by extractHTML) through the same
// string-literal heuristic.
func extractJavaScript(body []byte, result *Result) {
	for _, link := range extractJSLinks(string(body)) {
		result.Add(Link{Target: link, Origin: OriginJavaScript})
	}
}
