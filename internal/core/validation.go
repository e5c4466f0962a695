package core

// validation.go checks that a table's cells agree with the kinds assigned to
// its columns before the table leaves the workspace (database publish,
// typed spreadsheet export).
//
// Empty cells are always valid; they become NULL or blank cells. Validation
// can collect every problem (for the preview UI) or stop at a limit.

import (
	"fmt"
	"strings"
)

// ValidationError represents a single invalid cell.
type ValidationError struct {
	Row     int    `json:"row"`   // 1-based data row
	Field   string `json:"field"` // Column name
	Value   string `json:"value"` // The invalid value
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d, %s: %s", e.Row, e.Field, e.Message)
	}
	return e.Message
}

// ValidationResult contains the result of validating a table.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Errors    []ValidationError `json:"errors,omitempty"`
	Truncated bool              `json:"truncated,omitempty"` // more errors exist than were collected
}

// Err summarises the result as one error, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	var more string
	switch {
	case r.Truncated:
		more = " (and more)"
	case len(r.Errors) > 1:
		more = fmt.Sprintf(" (and %d more)", len(r.Errors)-1)
	}
	return fmt.Errorf("validation failed: %s%s", r.Errors[0].Error(), more)
}

// ValidateTable checks every non-string cell against its column kind.
// maxErrors <= 0 collects every error.
func ValidateTable(t *Table, maxErrors int) ValidationResult {
	result := ValidationResult{Valid: true}

	for r, row := range t.Rows {
		for c, v := range row {
			kind := t.KindOf(c)
			if kind == KindString {
				continue
			}
			if err := ValidateCell(v, kind); err != nil {
				result.Valid = false
				if maxErrors > 0 && len(result.Errors) == maxErrors {
					result.Truncated = true
					return result
				}
				result.Errors = append(result.Errors, ValidationError{
					Row:     r + 1,
					Field:   t.Columns[c],
					Value:   v,
					Message: err.Error(),
				})
			}
		}
	}
	return result
}

// ValidateCell validates a single cell value against a column kind.
// Returns nil if valid, or an error describing the problem.
func ValidateCell(value string, kind Kind) error {
	value = CleanCell(value)
	if value == "" {
		return nil
	}

	switch kind {
	case KindInt:
		if _, ok := ParseInt(value); !ok {
			return fmt.Errorf("invalid integer")
		}
	case KindFloat:
		if _, ok := ParseNumber(value); !ok {
			return fmt.Errorf("invalid number format")
		}
	case KindBool:
		if _, ok := ParseBool(value); !ok {
			return fmt.Errorf("must be yes/no, true/false, or 1/0")
		}
	case KindDatetime:
		switch _, status := ResolveDateTime(value, AmbiguityFlag); status {
		case DateAmbiguous:
			return fmt.Errorf("ambiguous date: reads differently day-first and month-first")
		case DateUnparsed:
			return fmt.Errorf("invalid date format (use YYYY-MM-DD or similar)")
		}
	}
	return nil
}

// ValidateHeaders checks that every required column exists, ignoring case.
func ValidateHeaders(headers []string, required []string) error {
	have := make(map[string]bool, len(headers))
	for _, h := range headers {
		have[strings.ToLower(strings.TrimSpace(h))] = true
	}

	var missing []string
	for _, name := range required {
		if !have[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}
