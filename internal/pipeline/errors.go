// Package pipeline orchestrates the processing flow for uploaded tabular
// files: ingestion, cleaning, projection, visualization, reporting, and
// export, each operating on a per-file session.
//
// # Error Codes Reference
//
// This file maps technical errors to user-friendly messages with codes for
// support reference. Codes are grouped by category:
//
//	FILE001 - File too large
//	FILE002 - Unsupported format (extension not .csv/.xlsx)
//	FILE003 - Parse failure (malformed content)
//	FILE004 - No file provided
//	COL001  - Unknown column in selection
//	CHT001  - Chart precondition not met
//	RPT001  - Report generation failed
//	EXP001  - Export serialization failed
//	SES001  - Session not found or expired
//	SES002  - Session capacity reached
//	UPL001  - System busy with other uploads
//	UPL002  - Request cancelled
//	UPL003  - Request timed out
//	ERR000  - Fallback for unexpected errors
//
// Typed errors from the domain packages are matched first via errors.As;
// the string pattern table only backstops errors that cross a boundary as
// plain text.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/datadesk/datadesk/internal/dataset"
	"github.com/datadesk/datadesk/internal/export"
	"github.com/datadesk/datadesk/internal/report"
	"github.com/datadesk/datadesk/internal/session"
	"github.com/datadesk/datadesk/internal/visualize"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// MapError converts a technical error to a user-friendly message. Typed
// domain errors are matched first; unmatched errors fall back to the pattern
// table and finally to the generic ERR000 message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var unsupported *dataset.UnsupportedFormatError
	if errors.As(err, &unsupported) {
		return UserMessage{
			Message: fmt.Sprintf("Unsupported file type: %s", unsupported.Ext),
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FILE002",
		}
	}

	var parse *dataset.ParseError
	if errors.As(err, &parse) {
		return UserMessage{
			Message: fmt.Sprintf("Could not read %s: the file content is malformed", parse.Name),
			Action:  "Check the file opens correctly in a spreadsheet tool and re-export it",
			Code:    "FILE003",
		}
	}

	var unknownCol *dataset.UnknownColumnError
	if errors.As(err, &unknownCol) {
		return UserMessage{
			Message: fmt.Sprintf("Column %q does not exist in this table", unknownCol.Column),
			Action:  "Refresh the column list and select again",
			Code:    "COL001",
		}
	}

	var precond *visualize.PreconditionError
	if errors.As(err, &precond) {
		return UserMessage{
			Message: "Could not create chart: " + precond.Reason,
			Action:  "Ensure the selected data has enough numeric columns for this chart type",
			Code:    "CHT001",
		}
	}

	var reportErr *report.GenerationError
	if errors.As(err, &reportErr) {
		return UserMessage{
			Message: "Report generation failed",
			Action:  "Ensure the table has at least one row and one column",
			Code:    "RPT001",
		}
	}

	var exportErr *export.Error
	if errors.As(err, &exportErr) {
		return UserMessage{
			Message: fmt.Sprintf("Could not convert the table to %s", exportErr.Format),
			Action:  "Try the other format, or re-upload the file",
			Code:    "EXP001",
		}
	}

	switch {
	case errors.Is(err, session.ErrNotFound):
		return UserMessage{
			Message: "Session not found",
			Action:  "The session may have expired. Upload the file again",
			Code:    "SES001",
		}
	case errors.Is(err, session.ErrRegistryFull):
		return UserMessage{
			Message: "Too many open files",
			Action:  "Remove a file you are done with and retry",
			Code:    "SES002",
		}
	case errors.Is(err, ErrTooManyUploads):
		return UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL001",
		}
	case errors.Is(err, context.Canceled):
		return UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL002",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL003",
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error substrings (case-insensitive) to user
// messages. The first matching pattern wins, so specific patterns come before
// general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or Excel file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with data rows",
			Code:    "FILE003",
		},
	},
	{
		pattern: "empty column selection",
		msg: UserMessage{
			Message: "No columns selected",
			Action:  "Select at least one column to keep",
			Code:    "COL001",
		},
	},
	{
		pattern: "unknown scaling strategy",
		msg: UserMessage{
			Message: "Unknown scaling strategy",
			Action:  "Choose min-max or standard scaling",
			Code:    "ERR000",
		},
	},
	{
		pattern: "unknown chart kind",
		msg: UserMessage{
			Message: "Unknown chart type",
			Action:  "Choose bar, scatter, line or histogram",
			Code:    "CHT001",
		},
	},
	{
		pattern: "unknown export format",
		msg: UserMessage{
			Message: "Unknown export format",
			Action:  "Choose CSV or Excel",
			Code:    "EXP001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check the logs for the original technical error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}
