// Package report produces a self-contained descriptive-statistics document
// for a table: per-column type and missing-value summaries, numeric moments
// and quartiles, categorical frequencies, and a Pearson correlation matrix.
// The document is generated straight into an in-memory buffer; there is no
// temp-file round trip.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/datadesk/datadesk/internal/dataset"
)

// GenerationError wraps a profiling failure so callers can surface a
// user-visible message without aborting the session.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("report generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Options tunes report generation.
type Options struct {
	// TopCategories is how many most-frequent values to list per text column.
	TopCategories int
	// MaxCorrelationColumns caps the correlation matrix size.
	MaxCorrelationColumns int
}

// defaults for zero-valued Options fields.
const (
	defaultTopCategories         = 5
	defaultMaxCorrelationColumns = 12
)

func (o Options) withDefaults() Options {
	if o.TopCategories <= 0 {
		o.TopCategories = defaultTopCategories
	}
	if o.MaxCorrelationColumns <= 0 {
		o.MaxCorrelationColumns = defaultMaxCorrelationColumns
	}
	return o
}

// Profile is the computed statistics behind a report document.
type Profile struct {
	SourceName  string          `json:"source_name"`
	Rows        int             `json:"rows"`
	Cols        int             `json:"cols"`
	Columns     []ColumnProfile `json:"columns"`
	Correlation *Correlation    `json:"correlation,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// ColumnProfile describes one column.
type ColumnProfile struct {
	Name        string              `json:"name"`
	Kind        string              `json:"kind"` // numeric or text
	Missing     int                 `json:"missing"`
	Numeric     *NumericSummary     `json:"numeric,omitempty"`
	Categorical *CategoricalSummary `json:"categorical,omitempty"`
}

// NumericSummary holds the descriptive statistics of a numeric column,
// computed over non-missing values.
type NumericSummary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
}

// CategoricalSummary holds the value distribution of a text column.
type CategoricalSummary struct {
	Unique int         `json:"unique"`
	Top    []Frequency `json:"top"`
}

// Frequency is one value and its occurrence count.
type Frequency struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Correlation is a Pearson correlation matrix over numeric columns.
// Values[i][j] correlates Columns[i] with Columns[j].
type Correlation struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// buildProfile computes the full profile for a table.
func buildProfile(t *dataset.Table, opts Options) (*Profile, error) {
	if t.Nrow() == 0 || t.Ncol() == 0 {
		return nil, &GenerationError{Err: fmt.Errorf("table %q is empty", t.SourceName)}
	}

	p := &Profile{
		SourceName:  t.SourceName,
		Rows:        t.Nrow(),
		Cols:        t.Ncol(),
		GeneratedAt: time.Now(),
	}

	for _, name := range t.Columns() {
		cp := ColumnProfile{Name: name}
		missing, err := t.MissingCount(name)
		if err != nil {
			return nil, &GenerationError{Err: err}
		}
		cp.Missing = missing

		if t.IsNumeric(name) {
			cp.Kind = "numeric"
			vals, err := t.Floats(name)
			if err != nil {
				return nil, &GenerationError{Err: err}
			}
			cp.Numeric = summarizeNumeric(vals)
		} else {
			cp.Kind = "text"
			vals, err := t.Strings(name)
			if err != nil {
				return nil, &GenerationError{Err: err}
			}
			cp.Categorical = summarizeCategorical(vals, opts.TopCategories)
		}
		p.Columns = append(p.Columns, cp)
	}

	p.Correlation = correlate(t, opts.MaxCorrelationColumns)
	return p, nil
}

// summarizeNumeric computes moments and quartiles over non-missing values.
// Returns nil when the column is entirely missing.
func summarizeNumeric(vals []float64) *NumericSummary {
	present := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !dataset.IsMissing(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return nil
	}
	sort.Float64s(present)

	return &NumericSummary{
		Count:  len(present),
		Min:    present[0],
		Max:    present[len(present)-1],
		Mean:   stat.Mean(present, nil),
		Median: median(present),
		StdDev: stat.StdDev(present, nil),
		Q1:     stat.Quantile(0.25, stat.Empirical, present, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, present, nil),
	}
}

// median of sorted values, averaging the two middle values for even counts.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// summarizeCategorical counts distinct values and the top-k most frequent.
// Missing cells (empty strings) are excluded from the distribution.
func summarizeCategorical(vals []string, topK int) *CategoricalSummary {
	counts := make(map[string]int)
	for _, v := range vals {
		if v == "" {
			continue
		}
		counts[v]++
	}

	freqs := make([]Frequency, 0, len(counts))
	for v, c := range counts {
		freqs = append(freqs, Frequency{Value: v, Count: c})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].Count != freqs[j].Count {
			return freqs[i].Count > freqs[j].Count
		}
		return freqs[i].Value < freqs[j].Value
	})
	if len(freqs) > topK {
		freqs = freqs[:topK]
	}

	return &CategoricalSummary{Unique: len(counts), Top: freqs}
}

// correlate builds the pairwise Pearson correlation matrix over the first
// maxCols numeric columns. Pairs with fewer than two complete rows get NaN.
// Returns nil when fewer than two numeric columns exist.
func correlate(t *dataset.Table, maxCols int) *Correlation {
	numeric := t.NumericColumns()
	if len(numeric) < 2 {
		return nil
	}
	if len(numeric) > maxCols {
		numeric = numeric[:maxCols]
	}

	cols := make([][]float64, len(numeric))
	for i, name := range numeric {
		vals, err := t.Floats(name)
		if err != nil {
			return nil
		}
		cols[i] = vals
	}

	values := make([][]float64, len(numeric))
	for i := range numeric {
		values[i] = make([]float64, len(numeric))
		for j := range numeric {
			values[i][j] = pairCorrelation(cols[i], cols[j])
		}
	}

	return &Correlation{Columns: numeric, Values: values}
}

// pairCorrelation computes Pearson correlation over rows where both columns
// are present.
func pairCorrelation(a, b []float64) float64 {
	xs := make([]float64, 0, len(a))
	ys := make([]float64, 0, len(b))
	for i := range a {
		if dataset.IsMissing(a[i]) || dataset.IsMissing(b[i]) {
			continue
		}
		xs = append(xs, a[i])
		ys = append(ys, b[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}
