package tasks

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/JonMunkholm/tidycsv/internal/core"
)

func init() {
	registerAssignRVQ()
	registerAssignVMV()
}

// Rule match modes.
const (
	MatchFull     = "full"
	MatchPrefix   = "prefix"
	MatchSuffix   = "suffix"
	MatchContains = "contains"
)

// Default names for qualifier columns.
const (
	RVQSuffix         = "_RVQ"
	DetectLimitSuffix = "_DL"
	DefaultVMVColumn  = "VMV_Code"
)

// limitNumber finds the first number in a qualified value such as "<0.05" or "ND(0.01)".
var limitNumber = regexp.MustCompile(`[-+]?(\d+(\.\d*)?|\.\d+)([eE][-+]?\d+)?`)

// RVQRule maps cells matching Pattern to Code.
type RVQRule struct {
	Pattern string `json:"pattern" validate:"required"`
	Code    string `json:"code" validate:"required"`
	Match   string `json:"match" validate:"omitempty,oneof=full prefix suffix contains"`
}

func (r RVQRule) matches(v string, caseSensitive bool) bool {
	pat := r.Pattern
	if !caseSensitive {
		v, pat = strings.ToLower(v), strings.ToLower(pat)
	}
	switch r.Match {
	case MatchPrefix:
		return strings.HasPrefix(v, pat)
	case MatchSuffix:
		return strings.HasSuffix(v, pat)
	case MatchContains:
		return strings.Contains(v, pat)
	default:
		return v == pat
	}
}

// AssignRVQParams configures assign_rvq.
type AssignRVQParams struct {
	Columns        []string  `json:"columns" validate:"min=1"`
	Rules          []RVQRule `json:"rules" validate:"dive"`
	CaseSensitive  bool      `json:"case_sensitive"`
	NegativeCode   string    `json:"negative_code"`
	NegativeExempt []string  `json:"negative_exempt"`
	MissingCode    string    `json:"missing_code"`
	ExtractLimits  bool      `json:"extract_limits"`
	ClearMatched   bool      `json:"clear_matched"`
}

func registerAssignRVQ() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "assign_rvq",
			Group:       "Quality",
			Label:       "Assign RVQ codes",
			Description: "Write result value qualifiers for flagged, negative or missing values",
		},
		Params: func() any { return &AssignRVQParams{} },
		Apply:  applyAssignRVQ,
	})
}

func applyAssignRVQ(_ context.Context, in core.Inputs, params any) (core.Result, error) {
	p := params.(*AssignRVQParams)
	if len(p.Rules) == 0 && p.NegativeCode == "" && p.MissingCode == "" {
		return core.Result{}, fmt.Errorf("give at least one rule, negative_code or missing_code")
	}

	t := in.First().Clone()
	if _, err := t.Indexes(p.Columns); err != nil {
		return core.Result{}, err
	}
	exempt := make(map[string]bool, len(p.NegativeExempt))
	for _, c := range p.NegativeExempt {
		exempt[strings.ToLower(strings.TrimSpace(c))] = true
	}

	counts := make(map[string]int)
	var notes []string
	for _, col := range p.Columns {
		c := t.Index(col)
		name := t.Columns[c]

		q, err := ensureColumn(t, name+RVQSuffix, c+1, core.KindString)
		if err != nil {
			return core.Result{}, err
		}
		dl := -1
		if p.ExtractLimits {
			if dl, err = ensureColumn(t, name+DetectLimitSuffix, q+1, core.KindFloat); err != nil {
				return core.Result{}, err
			}
		}
		// ensureColumn may have shifted the value column.
		c = t.Index(name)
		checkNegative := p.NegativeCode != "" && !exempt[strings.ToLower(name)]

		coded := 0
		for _, row := range t.Rows {
			v := strings.TrimSpace(row[c])
			code, matched := "", false

			switch {
			case v == "":
				code = p.MissingCode
			default:
				for _, rule := range p.Rules {
					if rule.matches(v, p.CaseSensitive) {
						code, matched = rule.Code, true
						break
					}
				}
				if !matched && checkNegative {
					if f, ok := core.ParseNumber(v); ok && f < 0 {
						code = p.NegativeCode
					}
				}
			}

			if code == "" {
				continue
			}
			row[q] = code
			counts[code]++
			coded++

			if matched && dl >= 0 {
				if m := limitNumber.FindString(v); m != "" {
					row[dl] = m
				}
			}
			if matched && p.ClearMatched {
				row[c] = ""
			}
		}
		notes = append(notes, fmt.Sprintf("%s: %d", name, coded))
	}

	summary := fmt.Sprintf("assigned qualifiers (%s)", strings.Join(notes, ", "))
	if len(counts) > 0 {
		summary += "; codes " + formatCounts(counts)
	}
	return core.Result{Table: t, Summary: summary}, nil
}

// AssignVMVParams configures assign_vmv.
type AssignVMVParams struct {
	ParameterColumn string            `json:"parameter_column" validate:"required"`
	Codes           map[string]string `json:"codes" validate:"min=1"`
	Target          string            `json:"target"`
}

func registerAssignVMV() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "assign_vmv",
			Group:       "Quality",
			Label:       "Assign VMV codes",
			Description: "Tag each parameter name with its VMV code",
		},
		Params: func() any { return &AssignVMVParams{Target: DefaultVMVColumn} },
		Apply:  applyAssignVMV,
	})
}

func applyAssignVMV(_ context.Context, in core.Inputs, params any) (core.Result, error) {
	p := params.(*AssignVMVParams)
	if p.Target == "" {
		p.Target = DefaultVMVColumn
	}

	t := in.First().Clone()
	pc := t.Index(p.ParameterColumn)
	if pc < 0 {
		return core.Result{}, fmt.Errorf("column not found: %q", p.ParameterColumn)
	}
	target, err := ensureColumn(t, p.Target, pc+1, core.KindString)
	if err != nil {
		return core.Result{}, err
	}
	pc = t.Index(p.ParameterColumn)

	codes := make(map[string]string, len(p.Codes))
	for name, code := range p.Codes {
		codes[strings.ToLower(strings.TrimSpace(name))] = code
	}

	mapped := 0
	unmapped := make(map[string]bool)
	for _, row := range t.Rows {
		name := strings.TrimSpace(row[pc])
		if name == "" {
			continue
		}
		code, ok := codes[strings.ToLower(name)]
		if !ok {
			unmapped[name] = true
			continue
		}
		row[target] = code
		mapped++
	}

	res := core.Result{
		Table:   t,
		Summary: fmt.Sprintf("assigned VMV codes to %s", plural(mapped, "row")),
	}
	if len(unmapped) > 0 {
		names := make([]string, 0, len(unmapped))
		for n := range unmapped {
			names = append(names, n)
		}
		sort.Strings(names)
		res.Warnf("no VMV code for %s: %s", plural(len(names), "parameter"), strings.Join(names, ", "))
	}
	return res, nil
}
