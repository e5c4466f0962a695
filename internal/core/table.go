package core

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is the data type assigned to a column.
// Cells are always stored as strings; Kind drives coercion and typed export.
type Kind string

const (
	KindString   Kind = "string"
	KindInt      Kind = "int"
	KindFloat    Kind = "float"
	KindBool     Kind = "bool"
	KindDatetime Kind = "datetime"
)

// ParseKind converts a user-supplied type name to a Kind.
// Accepts a few common aliases (str, integer, number, date, ...).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "string", "str", "text", "object":
		return KindString, nil
	case "int", "integer", "int64":
		return KindInt, nil
	case "float", "double", "number", "numeric", "float64", "decimal":
		return KindFloat, nil
	case "bool", "boolean":
		return KindBool, nil
	case "datetime", "date", "timestamp", "time":
		return KindDatetime, nil
	default:
		return "", fmt.Errorf("unknown data type: %q", s)
	}
}

// Table is an ordered collection of named columns.
// Every row holds exactly len(Columns) cells.
type Table struct {
	Columns []string   `json:"columns"`
	Kinds   []Kind     `json:"kinds"`
	Rows    [][]string `json:"rows"`
}

// NewTable builds a table from a header and rows.
// Rows are padded or truncated to the header width; all kinds start as string.
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{
		Columns: slices.Clone(columns),
		Kinds:   make([]Kind, len(columns)),
		Rows:    make([][]string, 0, len(rows)),
	}
	for i := range t.Kinds {
		t.Kinds[i] = KindString
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, fitRow(r, len(columns)))
	}
	return t
}

// fitRow returns a copy of r with exactly width cells.
func fitRow(r []string, width int) []string {
	out := make([]string, width)
	copy(out, r)
	return out
}

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.Columns) }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Clone returns a deep copy. Mutating the clone never affects t.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	c := &Table{
		Columns: slices.Clone(t.Columns),
		Kinds:   slices.Clone(t.Kinds),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, r := range t.Rows {
		c.Rows[i] = slices.Clone(r)
	}
	return c
}

// Equal reports whether two tables have identical columns, kinds and cells.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !slices.Equal(t.Columns, o.Columns) || !slices.Equal(t.Kinds, o.Kinds) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Rows {
		if !slices.Equal(t.Rows[i], o.Rows[i]) {
			return false
		}
	}
	return true
}

// KindOf returns the kind of column i, defaulting to string.
func (t *Table) KindOf(i int) Kind {
	if i < 0 || i >= len(t.Kinds) || t.Kinds[i] == "" {
		return KindString
	}
	return t.Kinds[i]
}

// Index returns the position of a column, or -1.
// An exact match wins; otherwise a trimmed case-insensitive match is accepted.
func (t *Table) Index(name string) int {
	if i := slices.Index(t.Columns, name); i >= 0 {
		return i
	}
	want := strings.TrimSpace(name)
	for i, c := range t.Columns {
		if strings.EqualFold(strings.TrimSpace(c), want) {
			return i
		}
	}
	return -1
}

// Indexes resolves several column names at once.
func (t *Table) Indexes(names []string) ([]int, error) {
	out := make([]int, 0, len(names))
	for _, n := range names {
		i := t.Index(n)
		if i < 0 {
			return nil, fmt.Errorf("column not found: %q", n)
		}
		out = append(out, i)
	}
	return out, nil
}

// Column returns a copy of the values of the named column.
func (t *Table) Column(name string) ([]string, error) {
	i := t.Index(name)
	if i < 0 {
		return nil, fmt.Errorf("column not found: %q", name)
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// AddColumn inserts a column at pos (clamped to the table width).
// values may be nil for an empty column; otherwise its length must match Len.
func (t *Table) AddColumn(pos int, name string, kind Kind, values []string) error {
	if slices.Contains(t.Columns, name) {
		return fmt.Errorf("duplicate column name: %q", name)
	}
	if values != nil && len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values for %d rows", name, len(values), len(t.Rows))
	}
	if pos < 0 || pos > len(t.Columns) {
		pos = len(t.Columns)
	}
	if kind == "" {
		kind = KindString
	}
	t.Columns = slices.Insert(t.Columns, pos, name)
	t.Kinds = slices.Insert(t.Kinds, pos, kind)
	for r := range t.Rows {
		v := ""
		if values != nil {
			v = values[r]
		}
		t.Rows[r] = slices.Insert(t.Rows[r], pos, v)
	}
	return nil
}

// DropColumns removes the named columns.
func (t *Table) DropColumns(names ...string) error {
	idx, err := t.Indexes(names)
	if err != nil {
		return err
	}
	drop := make(map[int]bool, len(idx))
	for _, i := range idx {
		drop[i] = true
	}
	keep := make([]int, 0, len(t.Columns))
	for i := range t.Columns {
		if !drop[i] {
			keep = append(keep, i)
		}
	}
	*t = *t.Select(keep)
	return nil
}

// Select returns a new table containing the given column positions in order.
func (t *Table) Select(idx []int) *Table {
	out := &Table{
		Columns: make([]string, len(idx)),
		Kinds:   make([]Kind, len(idx)),
		Rows:    make([][]string, len(t.Rows)),
	}
	for j, i := range idx {
		out.Columns[j] = t.Columns[i]
		out.Kinds[j] = t.KindOf(i)
	}
	for r, row := range t.Rows {
		nr := make([]string, len(idx))
		for j, i := range idx {
			nr[j] = row[i]
		}
		out.Rows[r] = nr
	}
	return out
}

// Records returns the header followed by all rows, as written to CSV.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, slices.Clone(t.Columns))
	for _, r := range t.Rows {
		out = append(out, slices.Clone(r))
	}
	return out
}
