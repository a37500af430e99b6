package bench

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"
)

// Report renders a benchmark batch as a self-contained HTML document.
type Report struct {
	tmpl *template.Template
}

// NewReport constructs a Report, parsing the inline template once.
func NewReport() (*Report, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"ms":   func(d time.Duration) string { return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000) },
		"mulf": func(a, b float64) float64 { return a * b },
	}).Parse(reportTemplate)
	if err != nil {
		return nil, err
	}
	return &Report{tmpl: tmpl}, nil
}

// reportData is the template's view model.
type reportData struct {
	Title            string
	Summary          Summary
	Results          []RunResult
	LatencySparkline template.HTML
	TokenSparkline   template.HTML
}

// Write renders results into w as an HTML report titled title.
func (r *Report) Write(w io.Writer, title string, results []RunResult) error {
	summary := NewAggregator().Summarize(results)

	latencies := make([]float64, 0, len(results))
	tokens := make([]float64, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		latencies = append(latencies, float64(res.Duration.Milliseconds()))
		tokens = append(tokens, float64(res.TokenUsage.TotalTokens))
	}

	data := reportData{
		Title:            title,
		Summary:          summary,
		Results:          results,
		LatencySparkline: sparkline(latencies, "#2563eb"),
		TokenSparkline:   sparkline(tokens, "#16a34a"),
	}

	return r.tmpl.Execute(w, data)
}

// sparkline hand-computes a minimal inline SVG polyline for values; no
// charting/plotting dependency appears anywhere in the retrieval pack's
// go.mod files, so a few dozen lines of direct SVG generation is preferred
// over introducing one for a handful of points.
func sparkline(values []float64, color string) template.HTML {
	const width, height = 240, 40
	if len(values) == 0 {
		return template.HTML(fmt.Sprintf(`<svg width="%d" height="%d"></svg>`, width, height))
	}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	spread := max - min
	if spread == 0 {
		spread = 1
	}

	var points strings.Builder
	denom := len(values) - 1
	if denom < 1 {
		denom = 1
	}
	step := float64(width) / float64(denom)
	for i, v := range values {
		x := float64(i) * step
		y := height - ((v-min)/spread)*float64(height)
		if i > 0 {
			points.WriteString(" ")
		}
		fmt.Fprintf(&points, "%.1f,%.1f", x, y)
	}

	return template.HTML(fmt.Sprintf(
		`<svg width="%d" height="%d" viewBox="0 0 %d %d"><polyline fill="none" stroke="%s" stroke-width="2" points="%s"/></svg>`,
		width, height, width, height, color, points.String(),
	))
}

const reportTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #1f2937; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th, td { border: 1px solid #d1d5db; padding: 0.4rem 0.6rem; text-align: left; font-size: 0.9rem; }
th { background: #f3f4f6; }
.pass { color: #16a34a; }
.fail { color: #dc2626; }
.summary-grid { display: grid; grid-template-columns: repeat(4, auto); gap: 1rem 2rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="summary-grid">
<div><strong>Total</strong><br>{{.Summary.Total}}</div>
<div><strong>Passed</strong><br>{{.Summary.Passed}}</div>
<div><strong>Failed</strong><br>{{.Summary.Failed}}</div>
<div><strong>Errored</strong><br>{{.Summary.Errored}}</div>
<div><strong>Pass rate</strong><br>{{printf "%.1f%%" (mulf .Summary.PassRate 100)}}</div>
<div><strong>Mean latency</strong><br>{{ms .Summary.MeanLatency}}</div>
<div><strong>P95 latency</strong><br>{{ms .Summary.P95Latency}}</div>
<div><strong>Mean tokens</strong><br>{{printf "%.0f" .Summary.MeanTokens}}</div>
</div>
<h2>Latency</h2>
{{.LatencySparkline}}
<h2>Tokens</h2>
{{.TokenSparkline}}
<h2>Runs</h2>
<table>
<tr><th>#</th><th>Result</th><th>Iterations</th><th>Sub-calls</th><th>Tokens</th><th>Duration</th><th>Error</th></tr>
{{range $i, $r := .Results}}
<tr>
<td>{{$i}}</td>
<td class="{{if $r.Err}}fail{{else if $r.Passed}}pass{{else}}fail{{end}}">{{if $r.Err}}error{{else if $r.Passed}}pass{{else}}fail{{end}}</td>
<td>{{$r.Iterations}}</td>
<td>{{$r.SubCalls}}</td>
<td>{{$r.TokenUsage.TotalTokens}}</td>
<td>{{ms $r.Duration}}</td>
<td>{{if $r.Err}}{{$r.Err}}{{end}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`
