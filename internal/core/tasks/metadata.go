package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/tidycsv/internal/core"
)

func init() {
	registerParseMetadata()
}

// commentMarkers are stripped from the start of metadata lines, longest first.
var commentMarkers = []string{"//", "#", "%", "*", `"`}

// MetadataEntry is one key/value line from an instrument file preamble.
type MetadataEntry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// ParseMetadataParams configures parse_metadata.
type ParseMetadataParams struct {
	// HeaderRow is the 0-based record holding the data header.
	// Nil means detect it.
	HeaderRow    *int     `json:"header_row" validate:"omitempty,min=0"`
	AsColumns    []string `json:"as_columns"`
	AllAsColumns bool     `json:"all_as_columns"`
}

func registerParseMetadata() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "parse_metadata",
			Group:       "Files",
			Label:       "Parse metadata block",
			Description: "Split an instrument preamble from the data table",
		},
		Params: func() any { return &ParseMetadataParams{} },
		Apply:  applyParseMetadata,
	})
}

func applyParseMetadata(_ context.Context, in core.Inputs, params any) (core.Result, error) {
	p := params.(*ParseMetadataParams)

	headerRow := -1
	if p.HeaderRow != nil {
		headerRow = *p.HeaderRow
	}
	data, entries, err := ParseMetadata(in.First(), headerRow)
	if err != nil {
		return core.Result{}, err
	}

	res := core.Result{Metadata: make(map[string]string, len(entries))}
	for _, e := range entries {
		res.Metadata[e.Key] = e.Value
	}

	var constant []MetadataEntry
	if p.AllAsColumns {
		constant = entries
	} else {
		for _, key := range p.AsColumns {
			e, ok := findEntry(entries, key)
			if !ok {
				res.Warnf("metadata key %q not found", key)
				continue
			}
			constant = append(constant, e)
		}
	}
	for _, e := range constant {
		values := make([]string, data.Len())
		for r := range values {
			values[r] = e.Value
		}
		if err := data.AddColumn(-1, e.Key, core.KindString, values); err != nil {
			return core.Result{}, err
		}
	}

	res.Table = data
	res.Summary = fmt.Sprintf("extracted %s of metadata; data has %s and %s",
		plural(len(entries), "line"), plural(data.Width(), "column"), plural(data.Len(), "row"))
	return res, nil
}

func findEntry(entries []MetadataEntry, key string) (MetadataEntry, bool) {
	for _, e := range entries {
		if strings.EqualFold(e.Key, strings.TrimSpace(key)) {
			return e, true
		}
	}
	return MetadataEntry{}, false
}

// ParseMetadata treats the header and rows of t as raw records, finds the
// data header and splits the records above it into metadata entries.
// headerRow < 0 detects the header: the first record whose non-empty field
// count equals the most common count among records with at least two fields.
func ParseMetadata(t *core.Table, headerRow int) (*core.Table, []MetadataEntry, error) {
	records := t.Records()
	// Names the reader made up for empty header cells are not real fields.
	for i, h := range records[0] {
		if h == core.GeneratedColumnName(i) {
			records[0][i] = ""
		}
	}

	if headerRow < 0 {
		headerRow = detectHeaderRow(records)
	}
	if headerRow >= len(records) {
		return nil, nil, fmt.Errorf("header row %d is past the end of the file (%d records)", headerRow, len(records))
	}

	entries := metadataEntries(records[:headerRow])

	header := records[headerRow]
	body := records[headerRow+1:]
	width := lastFilled(header)
	for _, row := range body {
		width = max(width, lastFilled(row))
	}

	columns := make([]string, width)
	for i := range columns {
		if i < len(header) {
			columns[i] = strings.TrimSpace(header[i])
		}
		if columns[i] == "" {
			columns[i] = core.GeneratedColumnName(i)
		}
	}

	rows := make([][]string, 0, len(body))
	for _, row := range body {
		if isBlank(row) {
			continue
		}
		rows = append(rows, row)
	}
	return core.NewTable(columns, rows), entries, nil
}

func detectHeaderRow(records [][]string) int {
	freq := make(map[int]int)
	for _, rec := range records {
		if n := countFilled(rec); n >= 2 {
			freq[n]++
		}
	}

	mode, best := 0, 0
	for n, f := range freq {
		if f > best || (f == best && n > mode) {
			mode, best = n, f
		}
	}
	for i, rec := range records {
		if countFilled(rec) == mode {
			return i
		}
	}
	return 0
}

func metadataEntries(lines [][]string) []MetadataEntry {
	var entries []MetadataEntry
	used := make(map[string]int)

	for i, rec := range lines {
		var fields []string
		for _, f := range rec {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
		if len(fields) == 0 {
			continue
		}
		fields[0] = stripComment(fields[0])
		if fields[0] == "" {
			fields = fields[1:]
			if len(fields) == 0 {
				continue
			}
		}

		key, value := splitMetadata(fields)
		if key == "" {
			key = fmt.Sprintf("line_%d", i+1)
		}
		if n := used[key]; n > 0 {
			used[key] = n + 1
			key = fmt.Sprintf("%s_%d", key, n+1)
		} else {
			used[key] = 1
		}
		entries = append(entries, MetadataEntry{Key: key, Value: value})
	}
	return entries
}

// splitMetadata splits on the first ':' or '=' in the first field, or takes
// the second field as the value. A lone field becomes an unnamed line.
func splitMetadata(fields []string) (string, string) {
	first := fields[0]
	if i := strings.IndexAny(first, ":="); i > 0 {
		key := strings.TrimSpace(first[:i])
		rest := append([]string{strings.TrimSpace(first[i+1:])}, fields[1:]...)
		return key, strings.TrimSpace(strings.Join(nonEmpty(rest), " "))
	}
	if len(fields) > 1 {
		return strings.TrimRight(first, ":= "), strings.Join(fields[1:], " ")
	}
	return "", first
}

func stripComment(s string) string {
	for {
		trimmed := s
		for _, m := range commentMarkers {
			trimmed = strings.TrimPrefix(trimmed, m)
		}
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == s {
			return strings.TrimSpace(strings.TrimSuffix(s, `"`))
		}
		s = trimmed
	}
}

func nonEmpty(ss []string) []string {
	out := ss[:0:0]
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func countFilled(rec []string) int {
	n := 0
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			n++
		}
	}
	return n
}

func lastFilled(rec []string) int {
	for i := len(rec) - 1; i >= 0; i-- {
		if strings.TrimSpace(rec[i]) != "" {
			return i + 1
		}
	}
	return 0
}

func isBlank(rec []string) bool {
	return countFilled(rec) == 0
}
