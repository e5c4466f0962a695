package core

import (
	"context"
	"fmt"
	"time"
)

// Arity tells whether a task works on one file or combines several.
type Arity string

const (
	AritySingle Arity = "single"
	ArityMulti  Arity = "multi"
)

// TaskInfo contains display information about a task.
type TaskInfo struct {
	Key         string `json:"key"`         // Unique identifier: "clean_headers"
	Group       string `json:"group"`       // Menu section: "Columns", "Dates", "Quality"
	Label       string `json:"label"`       // Display name: "Clean headers"
	Description string `json:"description"` // One-line help text
	Arity       Arity  `json:"arity"`
}

// NamedTable pairs a table with the file it came from.
type NamedTable struct {
	Name  string
	Table *Table
}

// Inputs are the tables handed to a task.
// Single-file tasks always receive exactly one entry.
type Inputs []NamedTable

// First returns the first input table.
func (in Inputs) First() *Table {
	if len(in) == 0 {
		return nil
	}
	return in[0].Table
}

// Result is what a task produces: the new table and a human summary.
type Result struct {
	Table    *Table            `json:"-"`
	Summary  string            `json:"summary"`
	Warnings []string          `json:"warnings,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	// Output names the file a multi-file task writes to.
	Output string `json:"output,omitempty"`
}

// Warnf appends a formatted warning.
func (r *Result) Warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// NewParamsFunc returns a pointer to a zero params struct with defaults applied.
type NewParamsFunc func() any

// ApplyFunc runs a task. Implementations must not mutate the input tables.
type ApplyFunc func(ctx context.Context, in Inputs, params any) (Result, error)

// TaskDefinition contains everything needed to run a task.
type TaskDefinition struct {
	Info   TaskInfo
	Params NewParamsFunc
	Apply  ApplyFunc
}

// AppliedTask is one entry of a file's history.
type AppliedTask struct {
	Task      string         `json:"task" yaml:"task"`
	Files     []string       `json:"files,omitempty" yaml:"files,omitempty"`
	Params    map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Summary   string         `json:"summary" yaml:"-"`
	AppliedAt time.Time      `json:"appliedAt" yaml:"-"`
}

// ApplyOutcome is returned by Service.Apply.
type ApplyOutcome struct {
	File     string            `json:"file"`
	Summary  string            `json:"summary"`
	Warnings []string          `json:"warnings,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Rows     int               `json:"rows"`
	Columns  int               `json:"columns"`
	Duration time.Duration     `json:"duration"`
}
