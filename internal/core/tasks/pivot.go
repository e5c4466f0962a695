package tasks

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/JonMunkholm/tidycsv/internal/core"
)

func init() {
	registerPivotWider()
	registerPivotLonger()
}

// PivotWiderParams configures pivot_wider.
type PivotWiderParams struct {
	Variable  string   `json:"variable" validate:"required"`
	Value     string   `json:"value" validate:"required"`
	Fold      []string `json:"fold"`
	Index     []string `json:"index"`
	Separator string   `json:"separator"`
}

func registerPivotWider() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "pivot_wider",
			Group:       "Reshape",
			Label:       "Pivot wider",
			Description: "Spread a variable/value pair into one column per variable",
		},
		Params: func() any { return &PivotWiderParams{Separator: "_"} },
		Apply:  applyPivotWider,
	})
}

func applyPivotWider(_ context.Context, in core.Inputs, params any) (core.Result, error) {
	p := params.(*PivotWiderParams)
	src := in.First()

	vi, vali := src.Index(p.Variable), src.Index(p.Value)
	if vi < 0 {
		return core.Result{}, fmt.Errorf("column not found: %q", p.Variable)
	}
	if vali < 0 {
		return core.Result{}, fmt.Errorf("column not found: %q", p.Value)
	}
	if vi == vali {
		return core.Result{}, fmt.Errorf("variable and value must be different columns")
	}
	foldIdx, err := src.Indexes(p.Fold)
	if err != nil {
		return core.Result{}, err
	}

	pivoted := map[int]bool{vi: true, vali: true}
	for _, f := range foldIdx {
		pivoted[f] = true
	}
	var keep []int
	for i := range src.Columns {
		if !pivoted[i] {
			keep = append(keep, i)
		}
	}

	// Group rows by header, in order of first appearance.
	var headers []string
	groups := make(map[string][]int)
	for r, row := range src.Rows {
		h := groupHeader(row, vi, foldIdx, p.Separator)
		if h == "" {
			h = src.Columns[vali]
		}
		if _, ok := groups[h]; !ok {
			headers = append(headers, h)
		}
		groups[h] = append(groups[h], r)
	}

	columns := make([]string, 0, len(keep)+len(headers))
	kinds := make([]core.Kind, 0, cap(columns))
	for _, k := range keep {
		columns = append(columns, src.Columns[k])
		kinds = append(kinds, src.KindOf(k))
	}
	for _, h := range headers {
		if slices.Contains(columns, h) {
			return core.Result{}, fmt.Errorf("duplicate column name: %q from variable values", h)
		}
		columns = append(columns, h)
		kinds = append(kinds, src.KindOf(vali))
	}

	rows := make([][]string, 0, src.Len())
	for g, h := range headers {
		for _, r := range groups[h] {
			row := make([]string, len(columns))
			for j, k := range keep {
				row[j] = src.Rows[r][k]
			}
			row[len(keep)+g] = src.Rows[r][vali]
			rows = append(rows, row)
		}
	}

	t := &core.Table{Columns: columns, Kinds: kinds, Rows: rows}
	summary := fmt.Sprintf("pivoted %s into columns", plural(len(headers), "variable"))

	res := core.Result{}
	if len(p.Index) > 0 {
		collapsed, conflicts, err := collapseByIndex(t, p.Index)
		if err != nil {
			return core.Result{}, err
		}
		summary += fmt.Sprintf(", collapsed %d rows into %d", t.Len(), collapsed.Len())
		if conflicts > 0 {
			res.Warnf("%s had conflicting values; the first non-empty value was kept", plural(conflicts, "cell"))
		}
		t = collapsed
	}

	res.Table = t
	res.Summary = summary
	return res, nil
}

func groupHeader(row []string, vi int, fold []int, sep string) string {
	parts := []string{strings.TrimSpace(row[vi])}
	for _, f := range fold {
		if v := strings.TrimSpace(row[f]); v != "" {
			parts = append(parts, v)
		}
	}
	if parts[0] == "" && len(parts) == 1 {
		return ""
	}
	return strings.Join(parts, sep)
}

// collapseByIndex merges rows sharing the same index values. For every other
// column the first non-empty value wins; later different values are counted
// as conflicts.
func collapseByIndex(t *core.Table, index []string) (*core.Table, int, error) {
	idx, err := t.Indexes(index)
	if err != nil {
		return nil, 0, err
	}

	out := &core.Table{Columns: slices.Clone(t.Columns), Kinds: slices.Clone(t.Kinds)}
	pos := make(map[string]int)
	conflicts := 0
	for _, row := range t.Rows {
		key := rowKey(row, idx)
		at, seen := pos[key]
		if !seen {
			pos[key] = len(out.Rows)
			out.Rows = append(out.Rows, slices.Clone(row))
			continue
		}
		merged := out.Rows[at]
		for c, v := range row {
			switch {
			case v == "":
			case merged[c] == "":
				merged[c] = v
			case merged[c] != v:
				conflicts++
			}
		}
	}
	return out, conflicts, nil
}

// rowKey joins the values at idx with a unit separator.
func rowKey(row []string, idx []int) string {
	parts := make([]string, len(idx))
	for i, c := range idx {
		parts[i] = row[c]
	}
	return strings.Join(parts, "\x1f")
}

// PivotLongerParams configures pivot_longer.
type PivotLongerParams struct {
	ID           []string `json:"id"`
	Values       []string `json:"values"`
	VariableName string   `json:"variable_name" validate:"required"`
	ValueName    string   `json:"value_name" validate:"required"`
	DropEmpty    bool     `json:"drop_empty"`
}

func registerPivotLonger() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "pivot_longer",
			Group:       "Reshape",
			Label:       "Pivot longer",
			Description: "Stack value columns into variable/value pairs",
		},
		Params: func() any {
			return &PivotLongerParams{VariableName: "variable", ValueName: "value"}
		},
		Apply: applyPivotLonger,
	})
}

func applyPivotLonger(_ context.Context, in core.Inputs, params any) (core.Result, error) {
	p := params.(*PivotLongerParams)
	src := in.First()

	ids, err := src.Indexes(p.ID)
	if err != nil {
		return core.Result{}, err
	}
	isID := make(map[int]bool, len(ids))
	for _, i := range ids {
		isID[i] = true
	}

	var values []int
	if len(p.Values) > 0 {
		if values, err = src.Indexes(p.Values); err != nil {
			return core.Result{}, err
		}
		for k, v := range values {
			if isID[v] {
				return core.Result{}, fmt.Errorf("column %q is both an id and a value column", p.Values[k])
			}
		}
	} else {
		for i := range src.Columns {
			if !isID[i] {
				values = append(values, i)
			}
		}
	}
	if len(values) == 0 {
		return core.Result{}, fmt.Errorf("no value columns to stack")
	}

	columns := make([]string, 0, len(ids)+2)
	kinds := make([]core.Kind, 0, len(ids)+2)
	for _, i := range ids {
		columns = append(columns, src.Columns[i])
		kinds = append(kinds, src.KindOf(i))
	}
	for _, n := range []string{p.VariableName, p.ValueName} {
		if slices.Contains(columns, n) {
			return core.Result{}, fmt.Errorf("duplicate column name: %q", n)
		}
	}
	columns = append(columns, p.VariableName, p.ValueName)
	kinds = append(kinds, core.KindString, commonKind(src, values))

	rows := make([][]string, 0, src.Len()*len(values))
	for _, v := range values {
		for _, row := range src.Rows {
			if p.DropEmpty && strings.TrimSpace(row[v]) == "" {
				continue
			}
			out := make([]string, 0, len(columns))
			for _, i := range ids {
				out = append(out, row[i])
			}
			out = append(out, src.Columns[v], row[v])
			rows = append(rows, out)
		}
	}

	return core.Result{
		Table:   &core.Table{Columns: columns, Kinds: kinds, Rows: rows},
		Summary: fmt.Sprintf("stacked %s into %s", plural(len(values), "column"), plural(len(rows), "row")),
	}, nil
}

// commonKind returns the shared kind of cols, or string when they differ.
func commonKind(t *core.Table, cols []int) core.Kind {
	k := t.KindOf(cols[0])
	for _, c := range cols[1:] {
		if t.KindOf(c) != k {
			return core.KindString
		}
	}
	return k
}
