package tasks

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/JonMunkholm/tidycsv/internal/core"
)

func init() {
	registerCleanHeaders()
	registerRenameColumns()
	registerReorderColumns()
	registerDropColumns()
}

// Header case styles.
const (
	CaseNone  = "none"
	CaseSnake = "snake"
	CaseCamel = "camel"
	CaseTitle = "title"
)

var (
	nonWordRun  = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	underscores = regexp.MustCompile(`_+`)
)

// CleanHeadersParams configures clean_headers.
type CleanHeadersParams struct {
	Case string `json:"case" validate:"oneof=none snake camel title"`
}

func registerCleanHeaders() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "clean_headers",
			Group:       "Columns",
			Label:       "Clean headers",
			Description: "Normalize column names to letters, digits and underscores, then de-duplicate",
		},
		Params: func() any { return &CleanHeadersParams{Case: CaseNone} },
		Apply: func(_ context.Context, in core.Inputs, params any) (core.Result, error) {
			p := params.(*CleanHeadersParams)
			t := in.First().Clone()

			cleaned := CleanHeaders(t.Columns, p.Case)
			changed := 0
			for i := range cleaned {
				if cleaned[i] != t.Columns[i] {
					changed++
				}
			}
			t.Columns = cleaned

			return core.Result{
				Table:   t,
				Summary: fmt.Sprintf("cleaned headers: %s renamed", plural(changed, "column")),
			}, nil
		},
	})
}

// CleanHeaders normalizes every header and makes the result unique.
// Applying it twice gives the same result as applying it once.
func CleanHeaders(headers []string, style string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		c := cleanHeader(h)
		if c == "" {
			c = fmt.Sprintf("unnamed_%d", i)
		}
		out[i] = applyCase(c, style)
	}
	return dedupe(out, style)
}

// cleanHeader trims, NFKC-normalizes and reduces h to letters, digits and
// single underscores.
func cleanHeader(h string) string {
	h = norm.NFKC.String(strings.TrimSpace(h))
	h = nonWordRun.ReplaceAllString(h, "_")
	h = underscores.ReplaceAllString(h, "_")
	return strings.Trim(h, "_")
}

// dedupe suffixes repeated names with _1, _2, ... skipping any name already
// present in the list.
func dedupe(names []string, style string) []string {
	reserved := make(map[string]bool, len(names))
	for _, n := range names {
		reserved[n] = true
	}

	assigned := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		if assigned[n] {
			for k := 1; ; k++ {
				cand := applyCase(fmt.Sprintf("%s_%d", n, k), style)
				if !reserved[cand] && !assigned[cand] {
					n = cand
					break
				}
			}
		}
		assigned[n] = true
		out[i] = n
	}
	return out
}

// splitWords splits a cleaned header on underscores and on a lower-case
// letter or digit followed by an upper-case letter.
func splitWords(s string) []string {
	var words []string
	for _, part := range strings.Split(s, "_") {
		if part == "" {
			continue
		}
		start := 0
		var prev rune
		for i, r := range part {
			if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
				words = append(words, part[start:i])
				start = i
			}
			prev = r
		}
		words = append(words, part[start:])
	}
	return words
}

func applyCase(s, style string) string {
	switch style {
	case CaseSnake:
		words := splitWords(s)
		for i, w := range words {
			words[i] = strings.ToLower(w)
		}
		return strings.Join(words, "_")
	case CaseTitle:
		words := splitWords(s)
		for i, w := range words {
			words[i] = capitalize(w)
		}
		return strings.Join(words, "_")
	case CaseCamel:
		var b strings.Builder
		for i, w := range splitWords(s) {
			if i == 0 {
				b.WriteString(strings.ToLower(w))
				continue
			}
			// A digit-led word would merge with the previous one.
			if r, _ := utf8.DecodeRuneInString(w); unicode.IsDigit(r) {
				b.WriteByte('_')
			}
			b.WriteString(capitalize(w))
		}
		return b.String()
	default:
		return s
	}
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}

// RenameColumnsParams configures rename_columns. Exactly one of Names or
// Mapping must be given.
type RenameColumnsParams struct {
	Names   []string          `json:"names"`
	Mapping map[string]string `json:"mapping"`
}

func registerRenameColumns() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "rename_columns",
			Group:       "Columns",
			Label:       "Rename columns",
			Description: "Replace all column names, or rename selected columns",
		},
		Params: func() any { return &RenameColumnsParams{} },
		Apply: func(_ context.Context, in core.Inputs, params any) (core.Result, error) {
			p := params.(*RenameColumnsParams)
			t := in.First()

			names, err := renamedColumns(t, p)
			if err != nil {
				return core.Result{}, err
			}

			out := t.Clone()
			changed := 0
			for i := range names {
				if names[i] != out.Columns[i] {
					changed++
				}
			}
			out.Columns = names
			return core.Result{
				Table:   out,
				Summary: fmt.Sprintf("renamed %s", plural(changed, "column")),
			}, nil
		},
	})
}

func renamedColumns(t *core.Table, p *RenameColumnsParams) ([]string, error) {
	var names []string
	switch {
	case len(p.Names) > 0 && len(p.Mapping) > 0:
		return nil, fmt.Errorf("give either names or mapping, not both")
	case len(p.Names) > 0:
		if len(p.Names) != t.Width() {
			return nil, fmt.Errorf("names length mismatch: got %d names for %d columns", len(p.Names), t.Width())
		}
		names = slices.Clone(p.Names)
	case len(p.Mapping) > 0:
		names = slices.Clone(t.Columns)
		for old, nw := range p.Mapping {
			i := t.Index(old)
			if i < 0 {
				return nil, fmt.Errorf("column not found: %q", old)
			}
			names[i] = nw
		}
	default:
		return nil, fmt.Errorf("give names or mapping")
	}

	seen := make(map[string]bool, len(names))
	for i, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, fmt.Errorf("empty column name at position %d", i+1)
		}
		if seen[n] {
			return nil, fmt.Errorf("duplicate column name: %q", n)
		}
		seen[n] = true
		names[i] = n
	}
	return names, nil
}

// ReorderColumnsParams configures reorder_columns.
type ReorderColumnsParams struct {
	Order        []string `json:"order" validate:"min=1"`
	DropUnlisted bool     `json:"drop_unlisted"`
}

func registerReorderColumns() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "reorder_columns",
			Group:       "Columns",
			Label:       "Reorder columns",
			Description: "Move listed columns to the front, optionally dropping the rest",
		},
		Params: func() any { return &ReorderColumnsParams{} },
		Apply: func(_ context.Context, in core.Inputs, params any) (core.Result, error) {
			p := params.(*ReorderColumnsParams)
			t := in.First()

			idx, err := t.Indexes(p.Order)
			if err != nil {
				return core.Result{}, err
			}
			listed := make(map[int]bool, len(idx))
			for k, i := range idx {
				if listed[i] {
					return core.Result{}, fmt.Errorf("duplicate column name: %q listed twice", p.Order[k])
				}
				listed[i] = true
			}
			if !p.DropUnlisted {
				for i := range t.Columns {
					if !listed[i] {
						idx = append(idx, i)
					}
				}
			}

			summary := fmt.Sprintf("moved %s to the front", plural(len(p.Order), "column"))
			if dropped := t.Width() - len(idx); dropped > 0 {
				summary += fmt.Sprintf(", dropped %d", dropped)
			}
			return core.Result{Table: t.Select(idx), Summary: summary}, nil
		},
	})
}

// DropColumnsParams configures drop_columns.
type DropColumnsParams struct {
	Columns []string `json:"columns" validate:"min=1"`
}

func registerDropColumns() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "drop_columns",
			Group:       "Columns",
			Label:       "Drop columns",
			Description: "Remove the selected columns",
		},
		Params: func() any { return &DropColumnsParams{} },
		Apply: func(_ context.Context, in core.Inputs, params any) (core.Result, error) {
			p := params.(*DropColumnsParams)
			t := in.First().Clone()
			if err := t.DropColumns(p.Columns...); err != nil {
				return core.Result{}, err
			}
			return core.Result{
				Table:   t,
				Summary: fmt.Sprintf("dropped %s", plural(in.First().Width()-t.Width(), "column")),
			}, nil
		},
	})
}
