package dataset

import "fmt"

// UnsupportedFormatError is returned when an uploaded file's extension is not
// one of the accepted tabular formats.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q (accepted: .csv, .xlsx)", e.Ext)
}

// ParseError is returned when file content cannot be parsed into a Table.
// It preserves the underlying cause for logging.
type ParseError struct {
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Name, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UnknownColumnError is returned when a column selection references a column
// that does not exist in the table.
type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Column)
}
