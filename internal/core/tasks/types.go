package tasks

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tidycsv/internal/core"
)

func init() {
	registerAssignTypes()
}

// Coercion error modes.
const (
	ErrorsCoerce = "coerce"
	ErrorsRaise  = "raise"
)

// AssignTypesParams configures assign_types.
type AssignTypesParams struct {
	Types    map[string]string `json:"types" validate:"min=1"`
	Errors   string            `json:"errors" validate:"oneof=coerce raise"`
	DayFirst bool              `json:"day_first"`
}

func registerAssignTypes() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "assign_types",
			Group:       "Values",
			Label:       "Assign data types",
			Description: "Coerce columns to int, float, bool, datetime or string",
		},
		Params: func() any { return &AssignTypesParams{Errors: ErrorsCoerce} },
		Apply:  applyAssignTypes,
	})
}

type typedColumn struct {
	index int
	kind  core.Kind
}

func applyAssignTypes(_ context.Context, in core.Inputs, params any) (core.Result, error) {
	p := params.(*AssignTypesParams)
	t := in.First().Clone()

	cols := make([]typedColumn, 0, len(p.Types))
	for name, typ := range p.Types {
		i := t.Index(name)
		if i < 0 {
			return core.Result{}, fmt.Errorf("column not found: %q", name)
		}
		kind, err := core.ParseKind(typ)
		if err != nil {
			return core.Result{}, err
		}
		cols = append(cols, typedColumn{index: i, kind: kind})
	}
	sort.Slice(cols, func(a, b int) bool { return cols[a].index < cols[b].index })

	blanked := make(map[string]int)
	for _, tc := range cols {
		name := t.Columns[tc.index]
		for r, row := range t.Rows {
			v, ok := CoerceValue(row[tc.index], tc.kind, p.DayFirst)
			if !ok {
				if p.Errors == ErrorsRaise {
					return core.Result{}, fmt.Errorf("cannot convert %q in column %s row %d to %s",
						row[tc.index], name, r+1, tc.kind)
				}
				blanked[name]++
			}
			row[tc.index] = v
		}
		t.Kinds[tc.index] = tc.kind
	}

	res := core.Result{
		Table:   t,
		Summary: fmt.Sprintf("assigned types to %s", plural(len(cols), "column")),
	}
	if len(blanked) > 0 {
		res.Summary += "; blanked uncoercible values (" + formatCounts(blanked) + ")"
		res.Warnf("values that could not be converted were left empty: %s", formatCounts(blanked))
	}
	return res, nil
}

// CoerceValue converts v to the canonical text form of kind.
// Empty input stays empty. On failure it returns "" and false.
func CoerceValue(v string, kind core.Kind, dayFirst bool) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" || kind == core.KindString {
		return v, true
	}

	switch kind {
	case core.KindInt:
		n, ok := core.ParseInt(v)
		if !ok {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	case core.KindFloat:
		f, ok := core.ParseNumber(v)
		if !ok {
			return "", false
		}
		return core.FormatNumber(f), true
	case core.KindBool:
		b, ok := core.ParseBool(v)
		if !ok {
			return "", false
		}
		return strconv.FormatBool(b), true
	case core.KindDatetime:
		policy := core.AmbiguityMonthFirst
		if dayFirst {
			policy = core.AmbiguityDayFirst
		}
		ts, status := core.ResolveDateTime(v, policy)
		if status != core.DateParsed {
			return "", false
		}
		return core.FormatISO(ts), true
	}
	return v, true
}
