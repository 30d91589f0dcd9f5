// Package visualize maps a chart kind plus axis column selections onto a
// rendered chart. Validation happens before construction: a selection that
// cannot satisfy the chart kind's numeric-column preconditions produces a
// user-visible PreconditionError and no chart. Rendering never mutates the
// table.
package visualize

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/datadesk/datadesk/internal/dataset"
)

// Kind identifies one of the supported chart types.
type Kind string

const (
	Bar       Kind = "bar"
	Scatter   Kind = "scatter"
	Line      Kind = "line"
	Histogram Kind = "histogram"
)

// ParseKind converts user input into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Bar, Scatter, Line, Histogram:
		return k, nil
	default:
		return "", fmt.Errorf("unknown chart kind %q (want bar, scatter, line or histogram)", s)
	}
}

// axisColumns returns how many numeric axis columns a kind requires.
func (k Kind) axisColumns() int {
	if k == Histogram {
		return 1
	}
	return 2
}

// Spec is a validated chart request: a kind plus 1-2 axis column names.
type Spec struct {
	Kind Kind   `json:"kind"`
	X    string `json:"x"`
	Y    string `json:"y,omitempty"`
}

// Chart is a renderable chart description plus its PNG encoding.
type Chart struct {
	Kind   Kind   `json:"kind"`
	Title  string `json:"title"`
	XLabel string `json:"x_label"`
	YLabel string `json:"y_label,omitempty"`
	PNG    []byte `json:"-"`
}

// PreconditionError reports a chart request the current table cannot satisfy.
// It is a user-facing message, not an internal failure.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

// maxBars caps bar chart categories so giant tables stay renderable.
const maxBars = 50

// Render validates spec against the table and renders the chart as a PNG of
// the given dimensions.
func Render(t *dataset.Table, spec Spec, width, height int) (*Chart, error) {
	if err := validate(t, spec); err != nil {
		return nil, err
	}

	switch spec.Kind {
	case Histogram:
		return renderHistogram(t, spec, width, height)
	case Bar:
		return renderBar(t, spec, width, height)
	case Scatter, Line:
		return renderXY(t, spec, width, height)
	default:
		return nil, fmt.Errorf("unknown chart kind %q", spec.Kind)
	}
}

// validate checks the spec's column preconditions against the table.
func validate(t *dataset.Table, spec Spec) error {
	need := spec.Kind.axisColumns()
	if numeric := t.NumericColumns(); len(numeric) < need {
		return &PreconditionError{Reason: fmt.Sprintf(
			"a %s chart needs at least %d numeric column(s), the table has %d", spec.Kind, need, len(numeric))}
	}

	axes := []string{spec.X}
	if need == 2 {
		axes = append(axes, spec.Y)
	}
	for _, col := range axes {
		if col == "" {
			return &PreconditionError{Reason: fmt.Sprintf("a %s chart needs %d axis column(s)", spec.Kind, need)}
		}
		if !t.HasColumn(col) {
			return &dataset.UnknownColumnError{Column: col}
		}
		if !t.IsNumeric(col) {
			return &PreconditionError{Reason: fmt.Sprintf("column %q is not numeric", col)}
		}
	}
	return nil
}

// renderXY renders scatter and line charts from two numeric columns. Rows
// with a missing value on either axis are dropped; line charts are sorted by
// x so the path reads left to right.
func renderXY(t *dataset.Table, spec Spec, width, height int) (*Chart, error) {
	xvals, err := t.Floats(spec.X)
	if err != nil {
		return nil, err
	}
	yvals, err := t.Floats(spec.Y)
	if err != nil {
		return nil, err
	}

	type point struct{ x, y float64 }
	points := make([]point, 0, len(xvals))
	for i := range xvals {
		if dataset.IsMissing(xvals[i]) || dataset.IsMissing(yvals[i]) {
			continue
		}
		points = append(points, point{xvals[i], yvals[i]})
	}
	if len(points) < 2 {
		return nil, &PreconditionError{Reason: fmt.Sprintf(
			"a %s chart needs at least 2 rows with values in both %q and %q", spec.Kind, spec.X, spec.Y)}
	}

	if spec.Kind == Line {
		sort.Slice(points, func(i, j int) bool { return points[i].x < points[j].x })
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.x
		ys[i] = p.y
	}

	style := chart.Style{}
	if spec.Kind == Scatter {
		style = chart.Style{StrokeWidth: chart.Disabled, DotWidth: 4}
	}

	title := fmt.Sprintf("%s vs %s", spec.Y, spec.X)
	graph := chart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		XAxis:  chart.XAxis{Name: spec.X},
		YAxis:  chart.YAxis{Name: spec.Y},
		Series: []chart.Series{
			chart.ContinuousSeries{Name: spec.Y, XValues: xs, YValues: ys, Style: style},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render %s chart: %w", spec.Kind, err)
	}

	return &Chart{Kind: spec.Kind, Title: title, XLabel: spec.X, YLabel: spec.Y, PNG: buf.Bytes()}, nil
}

// renderBar renders one bar per row using x as the category value and y as
// the bar height, capped at maxBars rows.
func renderBar(t *dataset.Table, spec Spec, width, height int) (*Chart, error) {
	labels, err := t.Strings(spec.X)
	if err != nil {
		return nil, err
	}
	yvals, err := t.Floats(spec.Y)
	if err != nil {
		return nil, err
	}

	bars := make([]chart.Value, 0, maxBars)
	for i := range yvals {
		if dataset.IsMissing(yvals[i]) {
			continue
		}
		bars = append(bars, chart.Value{Label: labels[i], Value: yvals[i]})
		if len(bars) == maxBars {
			break
		}
	}
	if len(bars) == 0 {
		return nil, &PreconditionError{Reason: fmt.Sprintf("column %q has no values to plot", spec.Y)}
	}

	title := fmt.Sprintf("%s by %s", spec.Y, spec.X)
	graph := chart.BarChart{
		Title:    title,
		Width:    width,
		Height:   height,
		BarWidth: barWidth(width, len(bars)),
		YAxis:    chart.YAxis{Range: valueRange(bars)},
		Bars:     bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render bar chart: %w", err)
	}

	return &Chart{Kind: Bar, Title: title, XLabel: spec.X, YLabel: spec.Y, PNG: buf.Bytes()}, nil
}

// renderHistogram bins one numeric column (Sturges' rule) and renders the bin
// counts as bars.
func renderHistogram(t *dataset.Table, spec Spec, width, height int) (*Chart, error) {
	vals, err := t.Floats(spec.X)
	if err != nil {
		return nil, err
	}

	present := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !dataset.IsMissing(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return nil, &PreconditionError{Reason: fmt.Sprintf("column %q has no values to plot", spec.X)}
	}

	lo, hi := present[0], present[0]
	for _, v := range present {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	binCount := int(math.Ceil(math.Log2(float64(len(present))))) + 1
	if binCount < 1 || hi == lo {
		binCount = 1
	}
	span := hi - lo

	counts := make([]int, binCount)
	for _, v := range present {
		idx := 0
		if span > 0 {
			idx = int(float64(binCount) * (v - lo) / span)
			if idx == binCount {
				idx-- // v == hi lands in the last bin
			}
		}
		counts[idx]++
	}

	bars := make([]chart.Value, binCount)
	for i, c := range counts {
		binLo := lo + span*float64(i)/float64(binCount)
		binHi := lo + span*float64(i+1)/float64(binCount)
		bars[i] = chart.Value{
			Label: fmt.Sprintf("%.3g to %.3g", binLo, binHi),
			Value: float64(c),
		}
	}

	title := fmt.Sprintf("Distribution of %s", spec.X)
	graph := chart.BarChart{
		Title:    title,
		Width:    width,
		Height:   height,
		BarWidth: barWidth(width, binCount),
		YAxis:    chart.YAxis{Range: valueRange(bars)},
		Bars:     bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render histogram: %w", err)
	}

	return &Chart{Kind: Histogram, Title: title, XLabel: spec.X, YLabel: "count", PNG: buf.Bytes()}, nil
}

// valueRange returns an explicit value-axis range anchored at zero. go-chart
// rejects zero-span ranges, so a constant column (all bars the same height)
// must not rely on the derived range.
func valueRange(bars []chart.Value) *chart.ContinuousRange {
	lo, hi := bars[0].Value, bars[0].Value
	for _, b := range bars[1:] {
		if b.Value < lo {
			lo = b.Value
		}
		if b.Value > hi {
			hi = b.Value
		}
	}
	if lo > 0 {
		lo = 0
	}
	if hi < 0 {
		hi = 0
	}
	if hi == lo {
		hi = lo + 1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

// barWidth sizes bars to fill roughly two thirds of the plot area.
func barWidth(chartWidth, bars int) int {
	w := (chartWidth * 2) / (3 * bars)
	if w < 4 {
		w = 4
	}
	if w > 80 {
		w = 80
	}
	return w
}
