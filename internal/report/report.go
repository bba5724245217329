// Package report renders an end-of-run summary of one crawl session from
// the slim-result index and the link-state store.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/atra/internal/crawlresult"
	"github.com/FranksOps/atra/internal/linkstate"
)

// Summary contains aggregated metrics about a crawl session.
type Summary struct {
	TotalPages     int
	TotalLinks     int
	StatusCodes    map[int]int
	Formats        map[string]int
	Languages      map[string]int
	LinkStateKinds map[string]int
	WarcFiles      int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}

// GenerateSummary aggregates the stored crawl results, the link-state
// kind counts and the number of WARC files the run produced.
func GenerateSummary(results []*crawlresult.Result, kinds map[linkstate.Kind]int, warcFiles int) Summary {
	s := Summary{
		StatusCodes:    make(map[int]int),
		Formats:        make(map[string]int),
		Languages:      make(map[string]int),
		LinkStateKinds: make(map[string]int),
		WarcFiles:      warcFiles,
	}

	for kind, count := range kinds {
		s.LinkStateKinds[kind.String()] = count
	}

	if len(results) == 0 {
		return s
	}

	s.StartTime = results[0].CreatedAt
	s.EndTime = results[0].CreatedAt

	for _, r := range results {
		s.TotalPages++
		s.TotalLinks += len(r.ExtractedLinks)
		if r.StatusCode > 0 {
			s.StatusCodes[r.StatusCode]++
		}
		if r.FileInfo.MIME != "" {
			s.Formats[r.FileInfo.MIME]++
		}
		if r.Language.ISO6391 != "" {
			s.Languages[r.Language.ISO6391]++
		}

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Atra Crawl Summary
------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Pages Stored:  {{.TotalPages}}
Links Found:   {{.TotalLinks}}
WARC Files:    {{.WarcFiles}}

Status Codes:
{{- range $code, $count := .StatusCodes}}
  {{$code}}: {{$count}}
{{- else}}
  None
{{- end}}

Formats:
{{- range $mime, $count := .Formats}}
  {{$mime}}: {{$count}}
{{- else}}
  None
{{- end}}

Link States:
{{- range $kind, $count := .LinkStateKinds}}
  {{$kind}}: {{$count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("context: %w", err)
	}

	return nil
}

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Atra Crawl Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Atra Crawl Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Pages Stored</div>
    <div class="stat-val">{{.TotalPages}}</div>
  </div>
  <div class="stat-card">
    <div>Links Found</div>
    <div class="stat-val">{{.TotalLinks}}</div>
  </div>
  <div class="stat-card">
    <div>WARC Files</div>
    <div class="stat-val">{{.WarcFiles}}</div>
  </div>

  <h3>Status Codes</h3>
  <table>
    <tr><th>Code</th><th>Count</th></tr>
    {{- range $code, $count := .StatusCodes}}
    <tr><td>{{$code}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Formats</h3>
  <table>
    <tr><th>MIME</th><th>Count</th></tr>
    {{- range $mime, $count := .Formats}}
    <tr><td>{{$mime}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Link States</h3>
  <table>
    <tr><th>Kind</th><th>Count</th></tr>
    {{- range $kind, $count := .LinkStateKinds}}
    <tr><td>{{$kind}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := template.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("context: %w", err)
	}

	return nil
}
