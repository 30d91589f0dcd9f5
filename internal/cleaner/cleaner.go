// Package cleaner implements the user-invoked table cleaning operations:
// duplicate-row removal, mean imputation of missing numeric values, and
// numeric column scaling. Every operation mutates the table in place, reports
// what it changed, and is idempotent when reapplied to data already in the
// target state.
package cleaner

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/datadesk/datadesk/internal/dataset"
)

// DedupeResult reports the outcome of a Deduplicate call.
type DedupeResult struct {
	RowsBefore int `json:"rows_before"`
	RowsAfter  int `json:"rows_after"`
	Removed    int `json:"removed"`
}

// ImputeResult reports the outcome of an Impute call.
type ImputeResult struct {
	Filled  int      `json:"filled"`
	Columns []string `json:"columns,omitempty"` // columns that received imputed values
	Skipped []string `json:"skipped,omitempty"` // entirely-missing columns left unchanged
	Warning string   `json:"warning,omitempty"`
}

// ScaleResult reports the outcome of a Scale call.
type ScaleResult struct {
	Strategy Strategy `json:"strategy"`
	Scaled   []string `json:"scaled,omitempty"`
	Skipped  []string `json:"skipped,omitempty"` // degenerate columns left unchanged
	Warning  string   `json:"warning,omitempty"`
}

// rowSep joins row cells into a dedupe key. Unit separator keeps cells whose
// content contains commas or tabs from colliding.
const rowSep = "\x1f"

// Deduplicate removes rows that are exact duplicates of an earlier row across
// all columns, retaining the first occurrence. Row order is otherwise
// preserved.
func Deduplicate(t *dataset.Table) (DedupeResult, error) {
	rows := t.Rows()
	res := DedupeResult{RowsBefore: len(rows), RowsAfter: len(rows)}
	if len(rows) == 0 {
		return res, nil
	}

	seen := make(map[string]bool, len(rows))
	keep := make([]int, 0, len(rows))
	for i, row := range rows {
		key := strings.Join(row, rowSep)
		if seen[key] {
			continue
		}
		seen[key] = true
		keep = append(keep, i)
	}

	if len(keep) == len(rows) {
		return res, nil
	}
	if err := t.KeepRows(keep); err != nil {
		return res, fmt.Errorf("deduplicate: %w", err)
	}

	res.RowsAfter = len(keep)
	res.Removed = res.RowsBefore - res.RowsAfter
	return res, nil
}

// Impute replaces missing values in every numeric column with that column's
// arithmetic mean over its non-missing values at the time of the call.
// Entirely-missing columns have no defined mean; they are left unchanged and
// reported as skipped rather than counted as imputed.
func Impute(t *dataset.Table) (ImputeResult, error) {
	var res ImputeResult

	numeric := t.NumericColumns()
	if t.Nrow() == 0 || len(numeric) == 0 {
		res.Warning = "no numeric columns to impute"
		return res, nil
	}

	for _, name := range numeric {
		vals, err := t.Floats(name)
		if err != nil {
			return res, fmt.Errorf("impute %q: %w", name, err)
		}

		present := nonMissing(vals)
		missing := len(vals) - len(present)
		if missing == 0 {
			continue
		}
		if len(present) == 0 {
			res.Skipped = append(res.Skipped, name)
			continue
		}

		mean := stat.Mean(present, nil)
		filled := make([]float64, len(vals))
		for i, v := range vals {
			if dataset.IsMissing(v) {
				filled[i] = mean
			} else {
				filled[i] = v
			}
		}
		if err := t.ReplaceFloats(name, filled); err != nil {
			return res, fmt.Errorf("impute %q: %w", name, err)
		}
		res.Filled += missing
		res.Columns = append(res.Columns, name)
	}

	return res, nil
}

// Strategy selects the numeric rescaling transform.
type Strategy string

const (
	// MinMax rescales each column linearly onto [0,1] using its min and max.
	MinMax Strategy = "minmax"
	// Standard rescales each column to zero mean and unit variance.
	Standard Strategy = "standard"
)

// ParseStrategy converts user input into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minmax", "min-max", "min_max":
		return MinMax, nil
	case "standard", "zscore", "z-score":
		return Standard, nil
	default:
		return "", fmt.Errorf("unknown scaling strategy %q (want minmax or standard)", s)
	}
}

// Scale rescales every numeric column in place using the chosen strategy.
// Missing cells stay missing. Columns with a zero denominator (zero range for
// min-max, zero standard deviation for standard) are left unchanged and
// reported as skipped; scaling them has no meaningful answer and failing the
// whole table for one constant column would be worse.
func Scale(t *dataset.Table, strategy Strategy) (ScaleResult, error) {
	res := ScaleResult{Strategy: strategy}

	numeric := t.NumericColumns()
	if t.Nrow() == 0 || len(numeric) == 0 {
		res.Warning = "no numeric columns to scale"
		return res, nil
	}

	for _, name := range numeric {
		vals, err := t.Floats(name)
		if err != nil {
			return res, fmt.Errorf("scale %q: %w", name, err)
		}

		present := nonMissing(vals)
		if len(present) == 0 {
			res.Skipped = append(res.Skipped, name)
			continue
		}

		var transform func(float64) float64
		switch strategy {
		case MinMax:
			lo, hi := minMax(present)
			if hi == lo {
				res.Skipped = append(res.Skipped, name)
				continue
			}
			span := hi - lo
			transform = func(v float64) float64 { return (v - lo) / span }

		case Standard:
			mean := stat.Mean(present, nil)
			stddev := stat.StdDev(present, nil)
			if stddev == 0 || math.IsNaN(stddev) {
				res.Skipped = append(res.Skipped, name)
				continue
			}
			transform = func(v float64) float64 { return (v - mean) / stddev }

		default:
			return res, fmt.Errorf("unknown scaling strategy %q", strategy)
		}

		scaled := make([]float64, len(vals))
		for i, v := range vals {
			if dataset.IsMissing(v) {
				scaled[i] = v
			} else {
				scaled[i] = transform(v)
			}
		}
		if err := t.ReplaceFloats(name, scaled); err != nil {
			return res, fmt.Errorf("scale %q: %w", name, err)
		}
		res.Scaled = append(res.Scaled, name)
	}

	return res, nil
}

// nonMissing filters NaN cells out of a column's values.
func nonMissing(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !dataset.IsMissing(v) {
			out = append(out, v)
		}
	}
	return out
}

// minMax returns the minimum and maximum of a non-empty slice.
func minMax(vals []float64) (lo, hi float64) {
	lo, hi = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
