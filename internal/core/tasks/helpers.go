package tasks

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tidycsv/internal/core"
)

// maxListedRows caps how many row numbers a warning spells out.
const maxListedRows = 10

// resolveColumns returns the positions of names, or of every column when
// names is empty.
func resolveColumns(t *core.Table, names []string) ([]int, error) {
	if len(names) == 0 {
		idx := make([]int, t.Width())
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	return t.Indexes(names)
}

// formatRows renders 1-based row numbers, truncating long lists.
func formatRows(rows []int) string {
	parts := make([]string, 0, min(len(rows), maxListedRows))
	for i, r := range rows {
		if i == maxListedRows {
			break
		}
		parts = append(parts, strconv.Itoa(r))
	}
	s := strings.Join(parts, ", ")
	if extra := len(rows) - maxListedRows; extra > 0 {
		s += fmt.Sprintf(" and %d more", extra)
	}
	return s
}

// formatCounts renders a map of counts as "a: 1, b: 2" in key order.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}

// stem returns a filename without directory and extension.
func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// plural returns word with an "s" unless n is one.
func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// ensureColumn returns the index of name, inserting an empty column at pos
// when it does not exist yet.
func ensureColumn(t *core.Table, name string, pos int, kind core.Kind) (int, error) {
	if i := t.Index(name); i >= 0 {
		return i, nil
	}
	if err := t.AddColumn(pos, name, kind, nil); err != nil {
		return -1, err
	}
	return t.Index(name), nil
}
