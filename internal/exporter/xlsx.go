package exporter

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tidycsv/internal/core"
)

const (
	maxSheetName   = 31
	maxColumnWidth = 60
	minColumnWidth = 8
	headerFill     = "DCE6F1"
)

// ErrNoTables is returned when there is nothing to export.
var ErrNoTables = errors.New("no tables to export")

// WriteXLSX writes one worksheet per table, in order.
func WriteXLSX(w io.Writer, tables []core.NamedTable) error {
	if len(tables) == 0 {
		return ErrNoTables
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "7F7F7F", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	used := make(map[string]bool, len(tables))
	defaultSheet := f.GetSheetName(0)
	for i, nt := range tables {
		name := uniqueSheetName(nt.Name, used)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return fmt.Errorf("name sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}
		if err := writeSheet(f, name, nt.Table, headerStyle); err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)

	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, t *core.Table, headerStyle int) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	// Column widths must be set before the first row
	for i, width := range columnWidths(t) {
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return err
		}
	}
	if err := sw.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: c}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for r, row := range t.Rows {
		values := make([]any, len(row))
		for c, v := range row {
			values[c] = typedCell(v, t.KindOf(c))
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// typedCell converts v to the Go type excelize writes for kind.
// Values that do not parse stay text so nothing is lost.
func typedCell(v string, kind core.Kind) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	switch kind {
	case core.KindInt:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
		if f, ok := core.ParseNumber(v); ok {
			return f
		}
	case core.KindFloat:
		if f, ok := core.ParseNumber(v); ok {
			return f
		}
	case core.KindBool:
		if b, ok := core.ParseBool(v); ok {
			return b
		}
	}
	return v
}

// columnWidths sizes each column to its longest value, within limits.
func columnWidths(t *core.Table) []float64 {
	widths := make([]float64, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = float64(utf8.RuneCountInString(c))
	}
	for _, row := range t.Rows {
		for i, v := range row {
			if n := float64(utf8.RuneCountInString(v)); n > widths[i] {
				widths[i] = n
			}
		}
	}
	for i, w := range widths {
		widths[i] = min(max(w+2, minColumnWidth), maxColumnWidth)
	}
	return widths
}

// uniqueSheetName turns a file name into a valid worksheet name that is not
// yet in used, and records it. Excel limits names to 31 characters and
// forbids : \ / ? * [ ].
func uniqueSheetName(file string, used map[string]bool) string {
	name := strings.TrimSuffix(file, filepath.Ext(file))
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(strings.TrimSpace(name), "'")
	if name == "" {
		name = "Sheet"
	}
	name = truncateRunes(name, maxSheetName)

	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := "~" + strconv.Itoa(n)
		candidate = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
