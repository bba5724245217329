package extract

// minPrintableRun is the shortest printable-ASCII run worth considering,
// mirroring the Unix strings(1) default of four characters.
const minPrintableRun = 4

// extractBinaryHeuristic is the extractor of last resort for bodies no
// format-specific extractor handled: it runs a strings(1)-style scan over
// the raw bytes for printable runs, then applies the same bare-URL regex
// extractRaw uses on each run. It claims every format, so it only ever
// fires as a Fallback.
func extractBinaryHeuristic(body []byte, result *Result) {
	start := -1
	flush := func(end int) {
		if start < 0 || end-start < minPrintableRun {
			start = -1
			return
		}
		extractRaw(string(body[start:end]), result)
		start = -1
	}
	for i, b := range body {
		if isPrintableASCII(b) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(body))
}

func isPrintableASCII(b byte) bool { return b >= 0x20 && b < 0x7f }
