package report

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/datadesk/datadesk/internal/dataset"
)

// Document is a generated report: the rendered standalone HTML plus the
// profile it was built from.
type Document struct {
	HTML    []byte
	Profile *Profile
}

// Generate profiles the table and renders the result as a self-contained
// HTML document in memory.
func Generate(t *dataset.Table, opts Options) (*Document, error) {
	opts = opts.withDefaults()

	profile, err := buildProfile(t, opts)
	if err != nil {
		return nil, err
	}

	return &Document{HTML: renderHTML(profile), Profile: profile}, nil
}

// renderHTML writes the profile as one HTML page with inline styling so the
// document stays viewable when saved on its own.
func renderHTML(p *Profile) []byte {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Data Report</title>
<style>
  * { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
         background: #f5f5f5; color: #333; line-height: 1.6; padding: 20px; }
  .container { max-width: 1100px; margin: 0 auto; }
  h1 { color: #2c3e50; margin-bottom: 6px; }
  h2 { color: #2c3e50; margin: 24px 0 10px; }
  .meta { color: #666; margin-bottom: 24px; }
  .cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 16px; margin-bottom: 24px; }
  .card { background: white; padding: 16px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
  .card h3 { color: #666; font-size: 0.85em; text-transform: uppercase; margin-bottom: 6px; }
  .card .value { font-size: 1.8em; font-weight: bold; color: #2c3e50; }
  table { width: 100%; border-collapse: collapse; background: white; border-radius: 8px;
          overflow: hidden; box-shadow: 0 2px 4px rgba(0,0,0,0.1); margin-bottom: 20px; }
  th, td { padding: 10px 12px; text-align: left; border-bottom: 1px solid #eee; }
  th { background: #2c3e50; color: white; font-weight: 600; }
  td.num { text-align: right; font-variant-numeric: tabular-nums; }
  .missing { color: #e74c3c; }
  .corr-pos { background: #eaf7ee; }
  .corr-neg { background: #fdf0ef; }
</style>
</head>
<body>
<div class="container">
`)

	fmt.Fprintf(&b, "<h1>Data Report: %s</h1>\n", html.EscapeString(p.SourceName))
	fmt.Fprintf(&b, `<div class="meta">Generated %s</div>`+"\n", p.GeneratedAt.Format("2006-01-02 15:04:05"))

	totalMissing := 0
	numericCols := 0
	for _, c := range p.Columns {
		totalMissing += c.Missing
		if c.Kind == "numeric" {
			numericCols++
		}
	}

	b.WriteString(`<div class="cards">` + "\n")
	writeCard(&b, "Rows", fmt.Sprintf("%d", p.Rows))
	writeCard(&b, "Columns", fmt.Sprintf("%d", p.Cols))
	writeCard(&b, "Numeric columns", fmt.Sprintf("%d", numericCols))
	writeCard(&b, "Missing values", fmt.Sprintf("%d", totalMissing))
	b.WriteString("</div>\n")

	writeNumericSection(&b, p)
	writeCategoricalSection(&b, p)
	writeMissingSection(&b, p)
	writeCorrelationSection(&b, p)

	b.WriteString("</div>\n</body>\n</html>\n")
	return []byte(b.String())
}

func writeCard(b *strings.Builder, title, value string) {
	fmt.Fprintf(b, `<div class="card"><h3>%s</h3><div class="value">%s</div></div>`+"\n",
		html.EscapeString(title), html.EscapeString(value))
}

func writeNumericSection(b *strings.Builder, p *Profile) {
	var rows []ColumnProfile
	for _, c := range p.Columns {
		if c.Kind == "numeric" {
			rows = append(rows, c)
		}
	}
	if len(rows) == 0 {
		return
	}

	b.WriteString("<h2>Numeric columns</h2>\n<table>\n<tr><th>Column</th><th>Count</th><th>Mean</th><th>Std Dev</th><th>Min</th><th>Q1</th><th>Median</th><th>Q3</th><th>Max</th></tr>\n")
	for _, c := range rows {
		if c.Numeric == nil {
			fmt.Fprintf(b, "<tr><td>%s</td><td colspan=\"8\">all values missing</td></tr>\n", html.EscapeString(c.Name))
			continue
		}
		n := c.Numeric
		fmt.Fprintf(b, "<tr><td>%s</td><td class=\"num\">%d</td>%s%s%s%s%s%s%s</tr>\n",
			html.EscapeString(c.Name), n.Count,
			numCell(n.Mean), numCell(n.StdDev), numCell(n.Min),
			numCell(n.Q1), numCell(n.Median), numCell(n.Q3), numCell(n.Max))
	}
	b.WriteString("</table>\n")
}

func writeCategoricalSection(b *strings.Builder, p *Profile) {
	var rows []ColumnProfile
	for _, c := range p.Columns {
		if c.Kind == "text" && c.Categorical != nil {
			rows = append(rows, c)
		}
	}
	if len(rows) == 0 {
		return
	}

	b.WriteString("<h2>Text columns</h2>\n<table>\n<tr><th>Column</th><th>Unique</th><th>Most frequent</th></tr>\n")
	for _, c := range rows {
		var top []string
		for _, f := range c.Categorical.Top {
			top = append(top, fmt.Sprintf("%s (%d)", html.EscapeString(f.Value), f.Count))
		}
		fmt.Fprintf(b, "<tr><td>%s</td><td class=\"num\">%d</td><td>%s</td></tr>\n",
			html.EscapeString(c.Name), c.Categorical.Unique, strings.Join(top, ", "))
	}
	b.WriteString("</table>\n")
}

func writeMissingSection(b *strings.Builder, p *Profile) {
	b.WriteString("<h2>Missing values</h2>\n<table>\n<tr><th>Column</th><th>Type</th><th>Missing</th><th>Missing %</th></tr>\n")
	for _, c := range p.Columns {
		pct := 0.0
		if p.Rows > 0 {
			pct = 100 * float64(c.Missing) / float64(p.Rows)
		}
		class := ""
		if c.Missing > 0 {
			class = ` class="missing"`
		}
		fmt.Fprintf(b, "<tr><td>%s</td><td>%s</td><td class=\"num\"%s>%d</td><td class=\"num\"%s>%.1f%%</td></tr>\n",
			html.EscapeString(c.Name), c.Kind, class, c.Missing, class, pct)
	}
	b.WriteString("</table>\n")
}

func writeCorrelationSection(b *strings.Builder, p *Profile) {
	if p.Correlation == nil {
		return
	}
	corr := p.Correlation

	b.WriteString("<h2>Correlations (Pearson)</h2>\n<table>\n<tr><th></th>")
	for _, name := range corr.Columns {
		fmt.Fprintf(b, "<th>%s</th>", html.EscapeString(name))
	}
	b.WriteString("</tr>\n")

	for i, name := range corr.Columns {
		fmt.Fprintf(b, "<tr><th>%s</th>", html.EscapeString(name))
		for _, v := range corr.Values[i] {
			switch {
			case math.IsNaN(v):
				b.WriteString(`<td class="num">n/a</td>`)
			case v >= 0.5:
				fmt.Fprintf(b, `<td class="num corr-pos">%.2f</td>`, v)
			case v <= -0.5:
				fmt.Fprintf(b, `<td class="num corr-neg">%.2f</td>`, v)
			default:
				fmt.Fprintf(b, `<td class="num">%.2f</td>`, v)
			}
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n")
}

// numCell formats a float table cell, trimming noise digits.
func numCell(v float64) string {
	if math.IsNaN(v) {
		return `<td class="num">n/a</td>`
	}
	return fmt.Sprintf(`<td class="num">%s</td>`, formatFloat(v))
}

// formatFloat renders a float compactly for display.
func formatFloat(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
