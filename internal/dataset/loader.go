package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// nanMarkers are cell values treated as missing when parsing.
var nanMarkers = []string{"", "NA", "N/A", "NaN", "nan", "null"}

// utf8BOM is the byte order mark Excel (and our own CSV exporter) prepends to
// CSV files. It must not leak into the first column name.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load parses an uploaded file into a Table, dispatching on the file
// extension (case-insensitive). Unknown extensions fail with
// UnsupportedFormatError; malformed content fails with ParseError. A failure
// here must be reported per file so the rest of an upload batch can continue.
func Load(file SourceFile) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(file.Name))

	switch ext {
	case ".csv":
		return loadCSV(file)
	case ".xlsx":
		return loadXLSX(file)
	default:
		return nil, &UnsupportedFormatError{Ext: ext}
	}
}

// loadCSV parses comma-delimited text into a Table with detected column types.
func loadCSV(file SourceFile) (*Table, error) {
	data := sanitizeUTF8(bytes.TrimPrefix(file.Data, utf8BOM))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Name: file.Name, Err: errors.New("empty file")}
	}

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nanMarkers),
		dataframe.WithLazyQuotes(true),
	)
	return fromFrame(df, file.Name, file.Size)
}

// loadXLSX parses the first worksheet of a spreadsheet into a Table.
func loadXLSX(file SourceFile) (*Table, error) {
	xf, err := excelize.OpenReader(bytes.NewReader(file.Data))
	if err != nil {
		return nil, &ParseError{Name: file.Name, Err: err}
	}
	defer xf.Close()

	sheets := xf.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Name: file.Name, Err: errors.New("workbook has no sheets")}
	}

	rows, err := xf.GetRows(sheets[0])
	if err != nil {
		return nil, &ParseError{Name: file.Name, Err: fmt.Errorf("read sheet %q: %w", sheets[0], err)}
	}
	if len(rows) == 0 {
		return nil, &ParseError{Name: file.Name, Err: errors.New("empty sheet")}
	}

	// Excel drops trailing empty cells, so pad every row to header width.
	width := len(rows[0])
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		} else if len(row) > width {
			row = row[:width]
		}
		records = append(records, row)
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nanMarkers),
	)
	return fromFrame(df, file.Name, file.Size)
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the replacement rune so
// downstream parsing never chokes on mixed encodings.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
