package extract

import "regexp"

// rawURLMatcher finds bare http(s) URLs anywhere in a text body, the
// last-resort fallback extractor for formats no structured extractor
// claimed.
var rawURLMatcher = regexp.MustCompile(`https?://[^\s"'<>\\^` + "`" + `{|}]+`)

// extractRaw scans arbitrary decoded text for bare URLs, trimming common
// trailing punctuation a sentence would leave attached to a link.
func extractRaw(text string, result *Result) {
	for _, match := range rawURLMatcher.FindAllString(text, -1) {
		result.Add(Link{Target: trimTrailingPunctuation(match), Origin: OriginRaw})
	}
}

func trimTrailingPunctuation(s string) string {
	for len(s) > 0 {
		switch s[len(s)-1] {
		case '.', ',', ';', ':', ')', ']', '!', '?':
			s = s[:len(s)-1]
			continue
		}
		break
	}
	return s
}
