package dataset

import (
	"fmt"
	"math"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// SourceFile is one uploaded file as received from the upload boundary.
// Immutable once created; consumed exactly once by the Loader.
type SourceFile struct {
	Name string
	Size int64
	Data []byte
}

// Table wraps a gota dataframe together with the metadata of the file it was
// loaded from. All pipeline stages operate on this type.
type Table struct {
	df         dataframe.DataFrame
	SourceName string
	SourceSize int64
}

// fromFrame wraps a dataframe, propagating any deferred gota error.
func fromFrame(df dataframe.DataFrame, name string, size int64) (*Table, error) {
	if df.Err != nil {
		return nil, &ParseError{Name: name, Err: df.Err}
	}
	return &Table{df: df, SourceName: name, SourceSize: size}, nil
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return t.df.Names()
}

// Nrow returns the number of data rows.
func (t *Table) Nrow() int {
	return t.df.Nrow()
}

// Ncol returns the number of columns.
func (t *Table) Ncol() int {
	return t.df.Ncol()
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.df.Names() {
		if c == name {
			return true
		}
	}
	return false
}

// IsNumeric reports whether the named column holds int or float values.
func (t *Table) IsNumeric(name string) bool {
	names := t.df.Names()
	types := t.df.Types()
	for i, c := range names {
		if c == name {
			return types[i] == series.Int || types[i] == series.Float
		}
	}
	return false
}

// NumericColumns returns the names of all numeric columns, in table order.
func (t *Table) NumericColumns() []string {
	names := t.df.Names()
	types := t.df.Types()
	var numeric []string
	for i, c := range names {
		if types[i] == series.Int || types[i] == series.Float {
			numeric = append(numeric, c)
		}
	}
	return numeric
}

// Floats returns the named column as float64 values. Missing or non-numeric
// cells are NaN.
func (t *Table) Floats(name string) ([]float64, error) {
	if !t.HasColumn(name) {
		return nil, &UnknownColumnError{Column: name}
	}
	return t.df.Col(name).Float(), nil
}

// Strings returns the named column's cells as display strings. Missing cells
// are returned as the empty string.
func (t *Table) Strings(name string) ([]string, error) {
	if !t.HasColumn(name) {
		return nil, &UnknownColumnError{Column: name}
	}
	return columnStrings(t.df.Col(name)), nil
}

// columnStrings renders one column as display strings: missing cells become
// the empty string and floats use the shortest exact representation instead
// of gota's fixed six decimals.
func columnStrings(col series.Series) []string {
	recs := col.Records()
	nan := col.IsNaN()
	if col.Type() == series.Float {
		vals := col.Float()
		for i := range recs {
			if !nan[i] {
				recs[i] = strconv.FormatFloat(vals[i], 'g', -1, 64)
			}
		}
	}
	for i := range recs {
		if nan[i] {
			recs[i] = ""
		}
	}
	return recs
}

// MissingCount returns the number of missing cells in the named column.
func (t *Table) MissingCount(name string) (int, error) {
	if !t.HasColumn(name) {
		return 0, &UnknownColumnError{Column: name}
	}
	n := 0
	for _, isNaN := range t.df.Col(name).IsNaN() {
		if isNaN {
			n++
		}
	}
	return n, nil
}

// Rows returns all data rows as display strings, positionally aligned with
// Columns. The header row is not included; missing cells are empty strings.
func (t *Table) Rows() [][]string {
	nrow := t.df.Nrow()
	if nrow == 0 {
		return nil
	}
	names := t.df.Names()
	cols := make([][]string, len(names))
	for i, name := range names {
		cols[i] = columnStrings(t.df.Col(name))
	}
	rows := make([][]string, nrow)
	for r := 0; r < nrow; r++ {
		row := make([]string, len(cols))
		for c := range cols {
			row[c] = cols[c][r]
		}
		rows[r] = row
	}
	return rows
}

// Preview returns up to n leading data rows for display.
func (t *Table) Preview(n int) [][]string {
	rows := t.Rows()
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// ReplaceFloats swaps the named column's values for vals, converting the
// column to float type. Used by the cleaner for imputation and scaling.
// vals must have exactly Nrow entries.
func (t *Table) ReplaceFloats(name string, vals []float64) error {
	if !t.HasColumn(name) {
		return &UnknownColumnError{Column: name}
	}
	if len(vals) != t.df.Nrow() {
		return fmt.Errorf("replace column %q: got %d values, table has %d rows", name, len(vals), t.df.Nrow())
	}
	mutated := t.df.Mutate(series.New(vals, series.Float, name))
	if mutated.Err != nil {
		return fmt.Errorf("replace column %q: %w", name, mutated.Err)
	}
	t.df = mutated
	return nil
}

// KeepRows restricts the table to the rows at the given positional indexes,
// in the order given. Used by the cleaner for deduplication.
func (t *Table) KeepRows(indexes []int) error {
	sub := t.df.Subset(indexes)
	if sub.Err != nil {
		return fmt.Errorf("subset rows: %w", sub.Err)
	}
	t.df = sub
	return nil
}

// Project returns a new Table containing exactly the selected columns, in the
// order given, with row count and alignment preserved. The source table is
// not modified.
func (t *Table) Project(columns []string) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("empty column selection")
	}
	for _, c := range columns {
		if !t.HasColumn(c) {
			return nil, &UnknownColumnError{Column: c}
		}
	}
	selected := t.df.Select(columns)
	if selected.Err != nil {
		return nil, fmt.Errorf("select columns: %w", selected.Err)
	}
	return &Table{df: selected, SourceName: t.SourceName, SourceSize: t.SourceSize}, nil
}

// IsMissing reports whether a float cell value represents a missing value.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}
