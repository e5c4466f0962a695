package tasks

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/JonMunkholm/tidycsv/internal/core"
)

func init() {
	registerFindReplace()
	registerCleanValues()
	registerSortRows()
}

// ReplaceRule maps several target variants to one replacement.
type ReplaceRule struct {
	Targets         []string `json:"targets" validate:"min=1,dive,required"`
	Replacement     string   `json:"replacement"`
	CaseInsensitive *bool    `json:"case_insensitive,omitempty"` // nil uses the task default
	WholeCell       *bool    `json:"whole_cell,omitempty"`       // nil means substring replace
}

// FindReplaceParams configures find_replace.
type FindReplaceParams struct {
	Rules           []ReplaceRule `json:"rules" validate:"min=1,dive"`
	Columns         []string      `json:"columns"`
	CaseInsensitive bool          `json:"case_insensitive"`
	TrimSpaces      bool          `json:"trim_spaces"`
}

func registerFindReplace() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "find_replace",
			Group:       "Values",
			Label:       "Find and replace",
			Description: "Replace spelling variants with one canonical value",
		},
		Params: func() any { return &FindReplaceParams{} },
		Apply:  applyFindReplace,
	})
}

// buildRuleRegex anchors the alternation for whole-cell rules and adds (?i)
// for case-insensitive ones.
func buildRuleRegex(targets []string, wholeCell, caseInsensitive bool) (*regexp.Regexp, error) {
	parts := make([]string, 0, len(targets))
	for _, t := range targets {
		parts = append(parts, regexp.QuoteMeta(t))
	}
	pat := "(?:" + strings.Join(parts, "|") + ")"
	if wholeCell {
		pat = "^" + pat + "$"
	}
	if caseInsensitive {
		pat = "(?i)" + pat
	}
	return regexp.Compile(pat)
}

func applyFindReplace(_ context.Context, in core.Inputs, params any) (core.Result, error) {
	p := params.(*FindReplaceParams)
	t := in.First().Clone()

	cols, err := resolveColumns(t, p.Columns)
	if err != nil {
		return core.Result{}, err
	}

	type compiledRule struct {
		re        *regexp.Regexp
		with      string
		wholeCell bool
	}
	rules := make([]compiledRule, 0, len(p.Rules))
	for i, r := range p.Rules {
		ci := p.CaseInsensitive
		if r.CaseInsensitive != nil {
			ci = *r.CaseInsensitive
		}
		wc := r.WholeCell != nil && *r.WholeCell
		re, err := buildRuleRegex(r.Targets, wc, ci)
		if err != nil {
			return core.Result{}, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rules = append(rules, compiledRule{re: re, with: r.Replacement, wholeCell: wc})
	}

	perRule := make([]int, len(rules))
	for _, row := range t.Rows {
		for _, c := range cols {
			cell := row[c]
			if p.TrimSpaces {
				cell = strings.TrimSpace(cell)
			}
			for i, r := range rules {
				if r.wholeCell {
					if r.re.MatchString(cell) {
						cell = r.with
						perRule[i]++
					}
					continue
				}
				if n := len(r.re.FindAllStringIndex(cell, -1)); n > 0 {
					cell = r.re.ReplaceAllLiteralString(cell, r.with)
					perRule[i] += n
				}
			}
			row[c] = cell
		}
	}

	total := 0
	notes := make([]string, len(perRule))
	for i, n := range perRule {
		total += n
		notes[i] = fmt.Sprintf("rule %d: %d", i+1, n)
	}
	return core.Result{
		Table:   t,
		Summary: fmt.Sprintf("made %s (%s)", plural(total, "replacement"), strings.Join(notes, ", ")),
	}, nil
}

// Value case modes.
const (
	ValueCaseNone  = "none"
	ValueCaseUpper = "upper"
	ValueCaseLower = "lower"
	ValueCaseTitle = "title"
)

// CleanValuesParams configures clean_values.
type CleanValuesParams struct {
	Columns          []string `json:"columns"`
	Trim             bool     `json:"trim"`
	CollapseSpaces   bool     `json:"collapse_spaces"`
	Case             string   `json:"case" validate:"oneof=none upper lower title"`
	NAValues         []string `json:"na_values"`
	DropEmptyRows    bool     `json:"drop_empty_rows"`
	DropEmptyColumns bool     `json:"drop_empty_columns"`
}

func registerCleanValues() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "clean_values",
			Group:       "Values",
			Label:       "Clean values",
			Description: "Trim whitespace, normalize case and blank out missing-value tokens",
		},
		Params: func() any {
			return &CleanValuesParams{Trim: true, CollapseSpaces: true, Case: ValueCaseNone}
		},
		Apply: applyCleanValues,
	})
}

func applyCleanValues(_ context.Context, in core.Inputs, params any) (core.Result, error) {
	p := params.(*CleanValuesParams)
	t := in.First().Clone()

	cols, err := resolveColumns(t, p.Columns)
	if err != nil {
		return core.Result{}, err
	}
	na := make(map[string]bool, len(p.NAValues))
	for _, v := range p.NAValues {
		na[strings.TrimSpace(v)] = true
	}

	modified, blanked := 0, 0
	for _, row := range t.Rows {
		for _, c := range cols {
			orig := row[c]
			v := cleanCell(orig, p)
			if na[strings.TrimSpace(orig)] || na[v] {
				v = ""
				blanked++
			}
			if v != orig {
				row[c] = v
				modified++
			}
		}
	}

	var notes []string
	if p.DropEmptyRows {
		kept := t.Rows[:0]
		for _, row := range t.Rows {
			if !isBlank(row) {
				kept = append(kept, row)
			}
		}
		if n := len(t.Rows) - len(kept); n > 0 {
			notes = append(notes, fmt.Sprintf("dropped %s", plural(n, "empty row")))
		}
		t.Rows = kept
	}
	if p.DropEmptyColumns {
		var empty []string
		for _, c := range cols {
			if columnEmpty(t, c) {
				empty = append(empty, t.Columns[c])
			}
		}
		if len(empty) > 0 {
			if err := t.DropColumns(empty...); err != nil {
				return core.Result{}, err
			}
			notes = append(notes, fmt.Sprintf("dropped %s", plural(len(empty), "empty column")))
		}
	}

	summary := fmt.Sprintf("cleaned %s, %d set empty", plural(modified, "cell"), blanked)
	if len(notes) > 0 {
		summary += "; " + strings.Join(notes, ", ")
	}
	return core.Result{Table: t, Summary: summary}, nil
}

func cleanCell(v string, p *CleanValuesParams) string {
	if p.Trim {
		v = strings.TrimSpace(v)
	}
	if p.CollapseSpaces {
		v = collapseInnerWhitespace(v)
	}
	switch p.Case {
	case ValueCaseUpper:
		v = strings.ToUpper(v)
	case ValueCaseLower:
		v = strings.ToLower(v)
	case ValueCaseTitle:
		v = toTitleCase(v)
	}
	return v
}

// collapseInnerWhitespace turns runs of whitespace into single spaces.
func collapseInnerWhitespace(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastWasSpace = false
	}
	return b.String()
}

func toTitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func columnEmpty(t *core.Table, c int) bool {
	for _, row := range t.Rows {
		if strings.TrimSpace(row[c]) != "" {
			return false
		}
	}
	return true
}

// SortKey is one column of a sort.
type SortKey struct {
	Column     string `json:"column" validate:"required"`
	Descending bool   `json:"descending"`
	Numeric    bool   `json:"numeric"`
}

// SortRowsParams configures sort_rows.
type SortRowsParams struct {
	Keys []SortKey `json:"keys" validate:"min=1,dive"`
}

func registerSortRows() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "sort_rows",
			Group:       "Values",
			Label:       "Sort rows",
			Description: "Stable sort by one or more columns; empty cells sort last",
		},
		Params: func() any { return &SortRowsParams{} },
		Apply:  applySortRows,
	})
}

type resolvedKey struct {
	index   int
	desc    bool
	numeric bool
}

func applySortRows(_ context.Context, in core.Inputs, params any) (core.Result, error) {
	p := params.(*SortRowsParams)
	t := in.First().Clone()

	keys := make([]resolvedKey, 0, len(p.Keys))
	names := make([]string, 0, len(p.Keys))
	for _, k := range p.Keys {
		i := t.Index(k.Column)
		if i < 0 {
			return core.Result{}, fmt.Errorf("column not found: %q", k.Column)
		}
		kind := t.KindOf(i)
		keys = append(keys, resolvedKey{
			index:   i,
			desc:    k.Descending,
			numeric: k.Numeric || kind == core.KindInt || kind == core.KindFloat,
		})
		names = append(names, t.Columns[i])
	}

	sort.SliceStable(t.Rows, func(a, b int) bool {
		for _, k := range keys {
			if c := compareCells(t.Rows[a][k.index], t.Rows[b][k.index], k); c != 0 {
				return c < 0
			}
		}
		return false
	})

	return core.Result{
		Table:   t,
		Summary: fmt.Sprintf("sorted %s by %s", plural(t.Len(), "row"), strings.Join(names, ", ")),
	}, nil
}

// compareCells orders two cells under k. Empty cells always sort last and,
// for numeric keys, non-numeric text sorts after numbers.
func compareCells(x, y string, k resolvedKey) int {
	x, y = strings.TrimSpace(x), strings.TrimSpace(y)
	switch {
	case x == "" && y == "":
		return 0
	case x == "":
		return 1
	case y == "":
		return -1
	}

	c := 0
	if k.numeric {
		fx, okx := core.ParseNumber(x)
		fy, oky := core.ParseNumber(y)
		switch {
		case okx && oky:
			switch {
			case fx < fy:
				c = -1
			case fx > fy:
				c = 1
			}
		case okx:
			return -1
		case oky:
			return 1
		default:
			c = strings.Compare(x, y)
		}
	} else {
		c = strings.Compare(x, y)
	}

	if k.desc {
		c = -c
	}
	return c
}
