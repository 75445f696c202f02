// Package report summarises the fetch log.
package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/internsift/internal/storage"
)

// SourceSummary aggregates the fetches of one source.
type SourceSummary struct {
	Fetches       int
	Fetched       int
	Matched       int
	Outcomes      map[string]int
	TotalDuration time.Duration
}

// AvgDuration is the mean fetch duration.
func (s SourceSummary) AvgDuration() time.Duration {
	if s.Fetches == 0 {
		return 0
	}
	return (s.TotalDuration / time.Duration(s.Fetches)).Round(time.Millisecond)
}

// MatchRate is the share of fetched listings that matched, in percent.
func (s SourceSummary) MatchRate() float64 {
	if s.Fetched == 0 {
		return 0
	}
	return 100 * float64(s.Matched) / float64(s.Fetched)
}

// Summary contains aggregated figures over a set of fetch records.
type Summary struct {
	TotalFetches    int
	TotalRuns       int
	TotalFetched    int
	TotalMatched    int
	TotalErrors     int
	TotalDetections int
	Outcomes        map[string]int
	StatusCodes     map[int]int
	DetectionsBySrc map[string]int
	Sources         map[string]*SourceSummary
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// GenerateSummary aggregates records.
func GenerateSummary(records []*storage.FetchRecord) Summary {
	s := Summary{
		Outcomes:        make(map[string]int),
		StatusCodes:     make(map[int]int),
		DetectionsBySrc: make(map[string]int),
		Sources:         make(map[string]*SourceSummary),
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt
	runs := make(map[string]struct{})

	for _, r := range records {
		s.TotalFetches++
		s.TotalFetched += r.Fetched
		s.TotalMatched += r.Matched
		s.Outcomes[r.Outcome]++
		if r.RunID != "" {
			runs[r.RunID] = struct{}{}
		}
		if r.Error != "" {
			s.TotalErrors++
		}
		if r.DetectedBot {
			s.TotalDetections++
			s.DetectionsBySrc[r.DetectionSrc]++
		}
		if r.StatusCode > 0 {
			s.StatusCodes[r.StatusCode]++
		}

		src, ok := s.Sources[r.Source]
		if !ok {
			src = &SourceSummary{Outcomes: make(map[string]int)}
			s.Sources[r.Source] = src
		}
		src.Fetches++
		src.Fetched += r.Fetched
		src.Matched += r.Matched
		src.Outcomes[r.Outcome]++
		src.TotalDuration += r.Duration

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	s.TotalRuns = len(runs)
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

const textTmpl = `internsift fetch summary
------------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Runs:          {{.TotalRuns}}
Fetches:       {{.TotalFetches}}
Listings:      {{.TotalFetched}} fetched, {{.TotalMatched}} matched
Errors:        {{.TotalErrors}}

Outcomes:
{{- range $outcome, $count := .Outcomes}}
  {{$outcome}}: {{$count}}
{{- else}}
  None
{{- end}}

Sources:
{{- range $name, $src := .Sources}}
  {{$name}}: {{$src.Fetches}} fetches, {{$src.Fetched}} fetched, {{$src.Matched}} matched ({{printf "%.0f" $src.MatchRate}}%), avg {{$src.AvgDuration}}
{{- else}}
  None
{{- end}}

Status Codes:
{{- range $code, $count := .StatusCodes}}
  {{$code}}: {{$count}}
{{- else}}
  None
{{- end}}

Detections: {{.TotalDetections}}
{{- range $src, $count := .DetectionsBySrc}}
  {{$src}}: {{$count}}
{{- else}}
  None
{{- end}}
`

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parse text template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>internsift fetch report</title>
<style>
  body { font: 14px/1.4 system-ui, sans-serif; max-width: 960px; margin: 2em auto; color: #222; }
  header { display: flex; justify-content: space-between; align-items: baseline; }
  dl.totals { display: grid; grid-template-columns: repeat(4, 1fr); gap: 1em; }
  dl.totals div { border: 1px solid #ddd; border-radius: 4px; padding: .75em; }
  dt { color: #666; font-size: 12px; text-transform: uppercase; }
  dd { margin: 0; font-size: 22px; font-weight: 600; }
  .warn { color: #b00; }
  table { width: 100%; border-collapse: collapse; margin: 1em 0 2em; }
  th, td { padding: 4px 8px; border-bottom: 1px solid #eee; text-align: left; }
  td.n { text-align: right; font-variant-numeric: tabular-nums; }
</style>
</head>
<body>
<header>
  <h1>internsift fetch report</h1>
  <span>{{.StartTime.Format "2006-01-02 15:04"}} to {{.EndTime.Format "2006-01-02 15:04"}}, {{.TotalRuns}} run(s)</span>
</header>

<dl class="totals">
  <div><dt>Fetches</dt><dd>{{.TotalFetches}}</dd></div>
  <div><dt>Matched / fetched</dt><dd>{{.TotalMatched}} / {{.TotalFetched}}</dd></div>
  <div><dt>Errors</dt><dd{{if .TotalErrors}} class="warn"{{end}}>{{.TotalErrors}}</dd></div>
  <div><dt>Bot detections</dt><dd{{if .TotalDetections}} class="warn"{{end}}>{{.TotalDetections}}</dd></div>
</dl>

<h2>By source</h2>
<table>
  <thead><tr><th>Source</th><th>Fetches</th><th>Fetched</th><th>Matched</th><th>Match rate</th><th>Avg duration</th><th>Outcomes</th></tr></thead>
  <tbody>
  {{- range $name, $src := .Sources}}
    <tr>
      <td>{{$name}}</td>
      <td class="n">{{$src.Fetches}}</td>
      <td class="n">{{$src.Fetched}}</td>
      <td class="n">{{$src.Matched}}</td>
      <td class="n">{{printf "%.0f%%" $src.MatchRate}}</td>
      <td class="n">{{$src.AvgDuration}}</td>
      <td>{{range $o, $n := $src.Outcomes}}{{$o}}={{$n}} {{end}}</td>
    </tr>
  {{- else}}
    <tr><td colspan="7">No fetches recorded.</td></tr>
  {{- end}}
  </tbody>
</table>

<h2>Bot detections</h2>
<table>
  <thead><tr><th>Vendor</th><th>Count</th></tr></thead>
  <tbody>
  {{- range $vendor, $n := .DetectionsBySrc}}
    <tr><td>{{$vendor}}</td><td class="n">{{$n}}</td></tr>
  {{- else}}
    <tr><td colspan="2">None.</td></tr>
  {{- end}}
  </tbody>
</table>

<h2>Status codes</h2>
<table>
  <thead><tr><th>Status</th><th>Count</th></tr></thead>
  <tbody>
  {{- range $code, $n := .StatusCodes}}
    <tr><td>{{$code}}</td><td class="n">{{$n}}</td></tr>
  {{- else}}
    <tr><td colspan="2">None.</td></tr>
  {{- end}}
  </tbody>
</table>
</body>
</html>
`

// WriteHTML writes an HTML report to the provided writer. Values are
// escaped since record fields come from remote sources.
func WriteHTML(w io.Writer, summary Summary) error {
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: parse html template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}

// Write renders summary in format, which is "text", "json" or "html".
func Write(w io.Writer, format string, summary Summary) error {
	switch format {
	case "", "text":
		return WriteText(w, summary)
	case "json":
		return WriteJSON(w, summary)
	case "html":
		return WriteHTML(w, summary)
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}
