// Package export serializes a table into a downloadable byte buffer in the
// requested target format. The output carries a file name derived from the
// source file (extension swapped) and the correct MIME type for the format.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/datadesk/datadesk/internal/dataset"
)

// Format is a supported target format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// MIME types for download responses.
const (
	MIMECSV  = "text/csv"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ParseFormat converts user input into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "xlsx", "excel":
		return XLSX, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv or xlsx)", s)
	}
}

// Error wraps a serialization failure with the format that failed, keeping
// the underlying cause for logging.
type Error struct {
	Format Format
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export to %s failed: %v", e.Format, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Artifact is one finished export: an immutable byte buffer plus the derived
// download name and MIME type.
type Artifact struct {
	FileName string
	MIME     string
	Data     []byte
}

// Export serializes the table snapshot into the target format.
func Export(t *dataset.Table, format Format) (*Artifact, error) {
	var (
		data []byte
		err  error
		mime string
	)

	switch format {
	case CSV:
		data, err = writeCSV(t)
		mime = MIMECSV
	case XLSX:
		data, err = writeXLSX(t)
		mime = MIMEXLSX
	default:
		return nil, &Error{Format: format, Err: fmt.Errorf("unsupported format")}
	}
	if err != nil {
		return nil, &Error{Format: format, Err: err}
	}

	return &Artifact{
		FileName: deriveFileName(t.SourceName, format),
		MIME:     mime,
		Data:     data,
	}, nil
}

// writeCSV encodes the table as comma-delimited text with a header row and no
// index column. A UTF-8 BOM is prepended so Excel opens the file correctly.
func writeCSV(t *dataset.Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write([]byte{0xEF, 0xBB, 0xBF})

	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns()); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows() {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeXLSX encodes the table as a single-worksheet workbook with a header
// row and no index column. Numeric cells are written as numbers so the
// spreadsheet stays computable after download.
func writeXLSX(t *dataset.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("create stream writer: %w", err)
	}

	columns := t.Columns()
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	cell, err := excelize.CoordinatesToCellName(1, 1)
	if err != nil {
		return nil, err
	}
	if err := sw.SetRow(cell, header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	numeric := make([]bool, len(columns))
	for i, c := range columns {
		numeric[i] = t.IsNumeric(c)
	}

	for rowIdx, row := range t.Rows() {
		values := make([]interface{}, len(row))
		for colIdx, v := range row {
			values[colIdx] = cellValue(v, numeric[colIdx])
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", rowIdx+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush worksheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// cellValue converts a record string into the typed cell to write. Missing
// numeric cells become empty cells, not zeroes.
func cellValue(v string, isNumeric bool) interface{} {
	if !isNumeric {
		return v
	}
	if v == "" || v == "NaN" {
		return nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

// deriveFileName swaps the source file's extension for the target format's.
func deriveFileName(source string, format Format) string {
	base := source
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	if base == "" {
		base = "export"
	}
	return base + "." + string(format)
}
