package tasks

import (
	"context"
	"fmt"
	"slices"

	"github.com/JonMunkholm/tidycsv/internal/core"
)

func init() {
	registerMergeFiles()
}

// Merge modes and join kinds.
const (
	MergeConcat = "concat"
	MergeJoin   = "join"

	JoinInner = "inner"
	JoinLeft  = "left"
	JoinOuter = "outer"
)

// MergeFilesParams configures merge_files.
type MergeFilesParams struct {
	Mode         string   `json:"mode" validate:"oneof=concat join"`
	On           []string `json:"on"`
	How          string   `json:"how" validate:"oneof=inner left outer"`
	SourceColumn string   `json:"source_column"`
	Output       string   `json:"output"`
}

func registerMergeFiles() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "merge_files",
			Group:       "Files",
			Label:       "Merge files",
			Description: "Stack files on top of each other or join them on key columns",
			Arity:       core.ArityMulti,
		},
		Params: func() any {
			return &MergeFilesParams{Mode: MergeConcat, How: JoinInner, Output: core.DefaultMergedName}
		},
		Apply: applyMergeFiles,
	})
}

func applyMergeFiles(ctx context.Context, in core.Inputs, params any) (core.Result, error) {
	p := params.(*MergeFilesParams)

	var (
		t   *core.Table
		err error
	)
	switch p.Mode {
	case MergeJoin:
		t, err = joinAll(ctx, in, p.On, p.How)
	default:
		t, err = concatAll(in, p.SourceColumn)
	}
	if err != nil {
		return core.Result{}, err
	}

	return core.Result{
		Table:   t,
		Output:  p.Output,
		Summary: fmt.Sprintf("merged %s (%s) into %s", plural(len(in), "file"), p.Mode, plural(t.Len(), "row")),
	}, nil
}

// concatAll stacks inputs in order. Columns are the union of all headers in
// order of first appearance, matched by trimmed case-insensitive name.
func concatAll(in core.Inputs, sourceColumn string) (*core.Table, error) {
	out := &core.Table{}
	if sourceColumn != "" {
		out.Columns = []string{sourceColumn}
		out.Kinds = []core.Kind{core.KindString}
	}

	for _, nt := range in {
		mapping := make([]int, nt.Table.Width())
		for c, name := range nt.Table.Columns {
			i := out.Index(name)
			if i < 0 {
				out.Columns = append(out.Columns, name)
				out.Kinds = append(out.Kinds, nt.Table.KindOf(c))
				i = len(out.Columns) - 1
			} else if out.Kinds[i] != nt.Table.KindOf(c) {
				out.Kinds[i] = core.KindString
			}
			if sourceColumn != "" && i == 0 {
				return nil, fmt.Errorf("duplicate column name: %q in %s", name, nt.Name)
			}
			mapping[c] = i
		}

		for _, row := range nt.Table.Rows {
			merged := make([]string, len(out.Columns))
			if sourceColumn != "" {
				merged[0] = nt.Name
			}
			for c, v := range row {
				merged[mapping[c]] = v
			}
			out.Rows = append(out.Rows, merged)
		}
	}

	// Earlier rows are shorter when later files introduced new columns.
	for r, row := range out.Rows {
		if len(row) < len(out.Columns) {
			out.Rows[r] = append(row, make([]string, len(out.Columns)-len(row))...)
		}
	}
	return out, nil
}

// joinAll joins inputs left to right on the key columns.
func joinAll(ctx context.Context, in core.Inputs, on []string, how string) (*core.Table, error) {
	if len(on) == 0 {
		return nil, fmt.Errorf("join requires at least one key column in on")
	}

	acc := in[0].Table
	for _, nt := range in[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		acc, err = joinPair(acc, nt.Table, on, how, stem(nt.Name))
		if err != nil {
			return nil, fmt.Errorf("join %s: %w", nt.Name, err)
		}
	}
	return acc, nil
}

// joinPair joins right onto left. Right-hand non-key columns whose names
// clash with left columns get a _<suffix> suffix.
func joinPair(left, right *core.Table, on []string, how, suffix string) (*core.Table, error) {
	lk, err := left.Indexes(on)
	if err != nil {
		return nil, err
	}
	rk, err := right.Indexes(on)
	if err != nil {
		return nil, err
	}

	isKey := make(map[int]bool, len(rk))
	for _, k := range rk {
		isKey[k] = true
	}

	out := &core.Table{Columns: slices.Clone(left.Columns), Kinds: slices.Clone(left.Kinds)}
	var rightCols []int
	for c, name := range right.Columns {
		if isKey[c] {
			continue
		}
		if out.Index(name) >= 0 {
			name = name + "_" + suffix
			if out.Index(name) >= 0 {
				return nil, fmt.Errorf("duplicate column name: %q", name)
			}
		}
		out.Columns = append(out.Columns, name)
		out.Kinds = append(out.Kinds, right.KindOf(c))
		rightCols = append(rightCols, c)
	}

	byKey := make(map[string][]int)
	for r, row := range right.Rows {
		k := rowKey(row, rk)
		byKey[k] = append(byKey[k], r)
	}

	matched := make([]bool, right.Len())
	build := func(l, r []string) []string {
		row := make([]string, 0, len(out.Columns))
		if l != nil {
			row = append(row, l...)
		} else {
			row = append(row, make([]string, left.Width())...)
			for i, k := range lk {
				row[k] = r[rk[i]]
			}
		}
		for _, c := range rightCols {
			if r != nil {
				row = append(row, r[c])
			} else {
				row = append(row, "")
			}
		}
		return row
	}

	for _, l := range left.Rows {
		hits := byKey[rowKey(l, lk)]
		for _, r := range hits {
			matched[r] = true
			out.Rows = append(out.Rows, build(l, right.Rows[r]))
		}
		if len(hits) == 0 && how != JoinInner {
			out.Rows = append(out.Rows, build(l, nil))
		}
	}
	if how == JoinOuter {
		for r, row := range right.Rows {
			if !matched[r] {
				out.Rows = append(out.Rows, build(nil, row))
			}
		}
	}
	return out, nil
}
