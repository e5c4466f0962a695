// Package core provides the table model, file history and task registry
// behind the cleaning workspace.
//
// # Error Codes Reference
//
// Errors shown to researchers carry a short code they can quote when asking
// for help. Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the configured size limit
//	          Patterns: "file too large"
//	FILE002 - Invalid CSV: File could not be parsed as delimited text
//	          Patterns: "invalid csv"
//	FILE003 - Encoding error: Unsupported or invalid text encoding
//	          Patterns: "encoding error"
//	FILE004 - No file: No file was selected
//	          Patterns: "no file provided"
//	FILE005 - Empty file: The uploaded file has no records
//	          Patterns: "empty file"
//	FILE006 - File not found: The named file is not in this session
//	          Patterns: "file not found"
//	FILE007 - Fetch failed: A remote file could not be downloaded
//	          Patterns: "fetch failed"
//	FILE008 - Too many files: The session file limit was reached
//	          Patterns: "too many files"
//
// # Column Errors (COL001-COL099)
//
//	COL001 - Column not found
//	         Patterns: "column not found"
//	COL002 - Duplicate column name
//	         Patterns: "duplicate column"
//	COL003 - Name count mismatch: new names do not match the column count
//	         Patterns: "names length mismatch"
//	COL004 - Empty column name
//	         Patterns: "empty column name"
//
// # Date Errors (DATE001-DATE099)
//
//	DATE001 - Invalid date: a value could not be read as a date
//	          Patterns: "invalid date"
//	DATE002 - Invalid time: a value could not be read as a time of day
//	          Patterns: "invalid time"
//
// # Task Errors (TASK001-TASK099)
//
//	TASK001 - Unknown task
//	          Patterns: "unknown task"
//	TASK002 - Invalid parameters
//	          Patterns: "invalid params"
//	TASK003 - Wrong number of files for the task
//	          Patterns: "requires"
//	TASK004 - Value could not be converted to the requested type
//	          Patterns: "cannot convert"
//	TASK005 - Invalid recipe document
//	          Patterns: "invalid recipe"
//
// # History Errors (HIST001-HIST099)
//
//	HIST001 - Nothing to undo
//	          Patterns: "nothing to undo"
//	HIST002 - Nothing to redo
//	          Patterns: "nothing to redo"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found or expired
//	         Patterns: "session not found"
//	SES002 - Recipe not found
//	         Patterns: "recipe not found"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy: Too many uploads in progress
//	         Patterns: "too many uploads"
//	UPL002 - Request cancelled
//	         Patterns: "context canceled"
//	UPL003 - Request timeout
//	         Patterns: "context deadline exceeded"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Publishing disabled: no database configured
//	        Patterns: "publishing disabled"
//	DB002 - Connection refused
//	        Patterns: "connection refused"
//	DB003 - Table does not exist
//	        Patterns: "does not exist"
//	DB004 - Duplicate key
//	        Patterns: "duplicate key"
//	DB005 - Cells do not match their column types
//	        Patterns: "validation failed"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//	          Patterns: "rate limit"
//
// # Request Errors (REQ001)
//
//	REQ001 - Malformed API request body or query
//	         Patterns: "invalid request"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the server log for the technical
// error that produced it.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
var errorPatterns = []errorPattern{
	// File errors
	{"file too large", UserMessage{"File exceeds the maximum upload size", "Split the file or trim unused rows before uploading", "FILE001"}},
	{"invalid csv", UserMessage{"File could not be read as CSV or TXT", "Check the delimiter and quoting, or choose the delimiter explicitly", "FILE002"}},
	{"encoding error", UserMessage{"File uses an unsupported text encoding", "Choose UTF-8, Latin-1 or Windows-1252", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a CSV or TXT file to upload", "FILE004"}},
	{"empty file", UserMessage{"The uploaded file is empty", "Upload a file containing a header and data rows", "FILE005"}},
	{"file not found", UserMessage{"That file is not loaded in this session", "Upload the file again", "FILE006"}},
	{"fetch failed", UserMessage{"The remote file could not be downloaded", "Check the URL is public and returns CSV text", "FILE007"}},
	{"too many files", UserMessage{"This session already holds the maximum number of files", "Remove a file before uploading another", "FILE008"}},

	// Column errors
	{"column not found", UserMessage{"A selected column does not exist", "Refresh the column list and select again", "COL001"}},
	{"duplicate column", UserMessage{"Two columns would have the same name", "Choose unique column names", "COL002"}},
	{"names length mismatch", UserMessage{"The number of new names does not match the number of columns", "Provide exactly one name per column", "COL003"}},
	{"empty column name", UserMessage{"A column name is empty", "Provide a name for every column", "COL004"}},

	// Typed-cell validation quotes the cell error, which may be a date error
	{"validation failed", UserMessage{"Some cells do not match their column types", "Fix the listed cells or set those columns back to string", "DB005"}},

	// Date errors
	{"invalid date", UserMessage{"A value could not be read as a date", "Use YYYY-MM-DD, DD/MM/YYYY or MM/DD/YYYY", "DATE001"}},
	{"invalid time", UserMessage{"A value could not be read as a time of day", "Use HH:MM or HH:MM:SS", "DATE002"}},

	// History errors, before task errors so "nothing to undo" is not swallowed
	{"nothing to undo", UserMessage{"There is nothing to undo", "Apply a task first", "HIST001"}},
	{"nothing to redo", UserMessage{"There is nothing to redo", "Undo a task first", "HIST002"}},

	// Task errors; a recipe error may quote an unknown task
	{"invalid recipe", UserMessage{"The recipe could not be read", "Check the recipe is valid YAML or JSON with a steps list", "TASK005"}},
	{"unknown task", UserMessage{"That operation does not exist", "Pick an operation from the task list", "TASK001"}},
	{"invalid params", UserMessage{"The operation settings are invalid", "Review the highlighted settings and try again", "TASK002"}},
	{"cannot convert", UserMessage{"Some values could not be converted to the requested type", "Use errors=coerce to blank them, or clean the values first", "TASK004"}},

	// Session errors
	{"session not found", UserMessage{"Your session has expired", "Start a new session and upload your files again", "SES001"}},
	{"recipe not found", UserMessage{"That recipe does not exist", "Refresh the recipe list", "SES002"}},

	// Upload errors
	{"too many uploads", UserMessage{"System is busy processing other uploads", "Please wait a moment and try again", "UPL001"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "UPL002"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or check your connection", "UPL003"}},

	// Database errors
	{"publishing disabled", UserMessage{"Publishing to a database is not configured", "Ask an administrator to set DATABASE_URL", "DB001"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB002"}},
	{"does not exist", UserMessage{"The target table does not exist", "Create the table or check its name", "DB003"}},
	{"duplicate key", UserMessage{"A row with this key already exists", "Remove duplicate rows before publishing", "DB004"}},

	// Task arity, last since "requires" is generic
	{"requires", UserMessage{"Wrong number of files for this operation", "Select the files the operation needs", "TASK003"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},

	// Malformed API requests
	{"invalid request", UserMessage{"The request could not be understood", "Check the request body and query parameters", "REQ001"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// The first matching pattern wins; ERR000 is returned when none match.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
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

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
