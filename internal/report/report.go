// Package report renders a benchmark run as a standalone HTML page.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/nixlim/fa-top/internal/aggregate"
	"github.com/nixlim/fa-top/internal/api"
)

// Renderer turns run details into HTML. Model responses are Markdown and
// are sanitized after conversion.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	tmpl   *template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
	tmpl, err := template.New("run").Funcs(r.funcs()).Parse(runTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

type scoreRow struct {
	Metric string
	Value  float64
}

type pageData struct {
	Run       api.BenchRunDetail
	Overall   string
	Scores    []scoreRow
	Generated time.Time
}

// Render writes the page for run to w.
func (r *Renderer) Render(w io.Writer, run api.BenchRunDetail, now time.Time) error {
	data := pageData{Run: run, Generated: now, Overall: "-"}
	if v, ok := run.Summary.Overall(); ok {
		data.Overall = formatScore(v)
	}

	names := make([]string, 0, len(run.Scores))
	for k := range run.Scores {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		data.Scores = append(data.Scores, scoreRow{Metric: aggregate.MetricLabel(k), Value: run.Scores[k]})
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render run %s: %w", run.ID, err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (r *Renderer) markdown(s string) template.HTML {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"markdown":   r.markdown,
		"formatTime": formatTime,
		"score":      formatScore,
		"latency":    formatLatency,
		"deref":      deref,
		"comma":      humanize.Comma,
		"len64":      func(n int) int64 { return int64(n) },
	}
}

func formatTime(t api.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatLatency(ms *float64) string {
	if ms == nil {
		return "-"
	}
	return humanize.FormatFloat("#,###.", *ms) + " ms"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

const runTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{if .Run.Title}}{{.Run.Title}}{{else}}{{.Run.ID}}{{end}} · fa-top bench</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; max-width: 960px; margin: 2em auto; color: #222; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; vertical-align: top; }
.meta td:first-child { font-weight: bold; }
.turn, .probe { border-left: 3px solid #888; padding-left: 1em; margin: 1em 0; }
.response { background: #f6f6f6; padding: 0.5em 1em; }
.muted { color: #888; }
</style>
</head>
<body>
<h1>{{if .Run.Title}}{{.Run.Title}}{{else}}{{.Run.ID}}{{end}}</h1>
<table class="meta">
<tr><td>Run</td><td>{{.Run.ID}}</td></tr>
<tr><td>Scenario</td><td>{{.Run.ScenarioID}}</td></tr>
<tr><td>Provider</td><td>{{.Run.Provider}} / {{.Run.Model}}</td></tr>
<tr><td>Started</td><td>{{formatTime .Run.StartedAt}}</td></tr>
<tr><td>Ended</td><td>{{formatTime .Run.EndedAt}}</td></tr>
<tr><td>Overall</td><td>{{.Overall}}</td></tr>
</table>
{{with .Run.Notes}}<p>{{deref .}}</p>{{end}}

{{if .Scores}}
<h2>Scores</h2>
<table>
<tr><th>Metric</th><th>Score</th></tr>
{{range .Scores}}<tr><td>{{.Metric}}</td><td>{{score .Value}}</td></tr>
{{end}}</table>
{{end}}

<h2>Probes ({{comma (len64 (len .Run.Probes))}})</h2>
{{range .Run.Probes}}
<div class="probe">
<h3>#{{.Idx}} {{.ProbeID}} <span class="muted">{{.ProbeType}} · score {{score .Score}}</span></h3>
<p><strong>Q:</strong> {{.Question}}</p>
<div class="response">{{markdown .Response}}</div>
</div>
{{else}}<p class="muted">No probes recorded.</p>
{{end}}

<h2>Turns ({{comma (len64 (len .Run.Turns))}})</h2>
{{range .Run.Turns}}
<div class="turn">
<h3>#{{.Idx}} {{.Role}} <span class="muted">{{latency .LatencyMS}}</span></h3>
<div>{{markdown .Content}}</div>
{{with .Response}}<div class="response">{{markdown (deref .)}}</div>{{end}}
</div>
{{else}}<p class="muted">No turns recorded.</p>
{{end}}

<p class="muted">Generated {{.Generated.Format "2006-01-02 15:04:05"}} by fa-top.</p>
</body>
</html>
`
