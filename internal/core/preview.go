package core

import (
	"strings"
)

// DefaultPreviewRows is how many rows a preview shows when no limit is given.
const DefaultPreviewRows = 50

// maxProfileSamples caps the distinct sample values kept per column.
const maxProfileSamples = 3

// ColumnProfile summarizes the contents of one column.
type ColumnProfile struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	NonEmpty int      `json:"nonEmpty"`
	Empty    int      `json:"empty"`
	Numeric  int      `json:"numeric"`
	Distinct int      `json:"distinct"`
	Samples  []string `json:"samples"`
}

// Preview is the head of a table plus per-column profiles of the whole table.
type Preview struct {
	File      string          `json:"file"`
	Columns   []string        `json:"columns"`
	Kinds     []Kind          `json:"kinds"`
	Rows      [][]string      `json:"rows"`
	TotalRows int             `json:"totalRows"`
	Truncated bool            `json:"truncated"`
	Profiles  []ColumnProfile `json:"profiles"`
}

// BuildPreview returns the first limit rows of t and profiles every column.
func BuildPreview(name string, t *Table, limit int) Preview {
	if limit <= 0 {
		limit = DefaultPreviewRows
	}
	n := min(limit, t.Len())

	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = append([]string(nil), t.Rows[i]...)
	}

	return Preview{
		File:      name,
		Columns:   append([]string(nil), t.Columns...),
		Kinds:     append([]Kind(nil), t.Kinds...),
		Rows:      rows,
		TotalRows: t.Len(),
		Truncated: t.Len() > n,
		Profiles:  profileColumns(t),
	}
}

func profileColumns(t *Table) []ColumnProfile {
	profiles := make([]ColumnProfile, t.Width())
	seen := make([]map[string]bool, t.Width())
	for c := range profiles {
		profiles[c] = ColumnProfile{Name: t.Columns[c], Kind: t.KindOf(c)}
		seen[c] = make(map[string]bool)
	}

	for _, row := range t.Rows {
		for c, v := range row {
			p := &profiles[c]
			v = strings.TrimSpace(v)
			if v == "" {
				p.Empty++
				continue
			}
			p.NonEmpty++
			if _, ok := ParseNumber(v); ok {
				p.Numeric++
			}
			if !seen[c][v] {
				seen[c][v] = true
				if len(p.Samples) < maxProfileSamples {
					p.Samples = append(p.Samples, v)
				}
			}
		}
	}

	for c := range profiles {
		profiles[c].Distinct = len(seen[c])
	}
	return profiles
}

// Preview returns the head and column profiles of a file's current table.
func (s *Service) Preview(sessionID, name string, limit int) (Preview, error) {
	snap, err := s.Snapshot(sessionID, name)
	if err != nil {
		return Preview{}, err
	}
	return BuildPreview(name, snap.Table, limit), nil
}
