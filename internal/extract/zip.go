package extract

import (
	"archive/zip"
	"bytes"
	"io"

	"github.com/FranksOps/atra/internal/format"
)

// maxZipEntryBytes bounds how much of a single archive member is read into
// memory for re-dispatch; oversized members are skipped rather than risking
// an unbounded allocation from a hostile or mislabeled archive.
const maxZipEntryBytes = 64 << 20

// extractZip walks a ZIP archive's entries and re-dispatches each member's
// content through the full extractor set at nesting+1, bounded by
// cfg.MaxExtractionDepth. Links found in any member are folded into the
// caller's result; the member's own path is recorded as a link so the
// crawl can decide whether to treat it as a distinct resource.
func extractZip(nesting int, body []byte, cfg Config, result *Result) {
	r, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		result.Add(Link{Target: f.Name, Origin: OriginEmbedded})

		if f.UncompressedSize64 > maxZipEntryBytes {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxZipEntryBytes))
		rc.Close()
		if err != nil || len(data) == 0 {
			continue
		}

		info := format.Detect(data, "", f.Name)
		sub := dispatch(nesting+1, data, info, cfg)
		for _, link := range sub.Links() {
			result.Add(link)
		}
	}
}
