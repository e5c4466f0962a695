package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/tidycsv/internal/core"
)

func init() {
	registerISODateTime()
	registerMergeDateTime()
}

// DefaultDateTimeColumn is the column merge_datetime writes to by default.
const DefaultDateTimeColumn = "DateTime"

// ISODateTimeParams configures iso_datetime.
type ISODateTimeParams struct {
	Columns   []string `json:"columns" validate:"min=1"`
	Ambiguity string   `json:"ambiguity" validate:"oneof=flag day_first month_first"`
	// UTCOffset converts values carrying a zone offset to UTC.
	UTCOffset bool `json:"utc_offset"`
}

func registerISODateTime() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "iso_datetime",
			Group:       "Dates",
			Label:       "Convert to ISO 8601",
			Description: "Rewrite dates as YYYY-MM-DDTHH:MM:SS, flagging day/month ambiguity",
		},
		Params: func() any { return &ISODateTimeParams{Ambiguity: string(core.AmbiguityFlag)} },
		Apply:  applyISODateTime,
	})
}

func applyISODateTime(ctx context.Context, in core.Inputs, params any) (core.Result, error) {
	p := params.(*ISODateTimeParams)
	t := in.First().Clone()
	policy := core.Ambiguity(p.Ambiguity)

	if _, err := t.Indexes(p.Columns); err != nil {
		return core.Result{}, err
	}

	var res core.Result
	var notes []string
	for _, col := range p.Columns {
		if err := ctx.Err(); err != nil {
			return core.Result{}, err
		}

		c := t.Index(col)
		name := t.Columns[c]
		converted := 0
		var unparsed, ambiguous []int
		for r, row := range t.Rows {
			v := strings.TrimSpace(row[c])
			if v == "" {
				continue
			}
			ts, status := core.ResolveDateTime(v, policy)
			switch status {
			case core.DateParsed:
				if p.UTCOffset {
					ts = ts.UTC()
				}
				row[c] = core.FormatISO(ts)
				converted++
			case core.DateAmbiguous:
				ambiguous = append(ambiguous, r+1)
			default:
				unparsed = append(unparsed, r+1)
			}
		}
		// Only a fully converted column is typed datetime.
		if len(ambiguous) == 0 && len(unparsed) == 0 {
			t.Kinds[c] = core.KindDatetime
		} else {
			res.Warnf("%s: kept as %s until every value is an ISO date", name, t.Kinds[c])
		}

		if len(ambiguous) > 0 {
			flag, err := ensureColumn(t, name+"_ambiguous", c+1, core.KindString)
			if err != nil {
				return core.Result{}, err
			}
			for _, r := range ambiguous {
				t.Rows[r-1][flag] = "1"
			}
			res.Warnf("%s: %s ambiguous between day-first and month-first, left unchanged (rows %s)",
				name, plural(len(ambiguous), "value"), formatRows(ambiguous))
		}
		if len(unparsed) > 0 {
			res.Warnf("%s: %s could not be parsed (rows %s)",
				name, plural(len(unparsed), "value"), formatRows(unparsed))
		}

		note := fmt.Sprintf("%s: %d converted", name, converted)
		if len(ambiguous) > 0 {
			note += fmt.Sprintf(", %d ambiguous", len(ambiguous))
		}
		if len(unparsed) > 0 {
			note += fmt.Sprintf(", %d unparsed", len(unparsed))
		}
		notes = append(notes, note)
	}

	res.Table = t
	res.Summary = "converted to ISO 8601 (" + strings.Join(notes, "; ") + ")"
	return res, nil
}

// MergeDateTimeParams configures merge_datetime.
type MergeDateTimeParams struct {
	DateColumn  string `json:"date_column" validate:"required"`
	TimeColumn  string `json:"time_column" validate:"required"`
	Target      string `json:"target"`
	DayFirst    bool   `json:"day_first"`
	DropSources bool   `json:"drop_sources"`
}

func registerMergeDateTime() {
	core.Register(core.TaskDefinition{
		Info: core.TaskInfo{
			Key:         "merge_datetime",
			Group:       "Dates",
			Label:       "Merge date and time",
			Description: "Combine a date column and a time column into one ISO 8601 column",
		},
		Params: func() any { return &MergeDateTimeParams{Target: DefaultDateTimeColumn} },
		Apply:  applyMergeDateTime,
	})
}

func applyMergeDateTime(_ context.Context, in core.Inputs, params any) (core.Result, error) {
	p := params.(*MergeDateTimeParams)
	src := in.First()
	if p.Target == "" {
		p.Target = DefaultDateTimeColumn
	}

	dc, tc := src.Index(p.DateColumn), src.Index(p.TimeColumn)
	if dc < 0 {
		return core.Result{}, fmt.Errorf("column not found: %q", p.DateColumn)
	}
	if tc < 0 {
		return core.Result{}, fmt.Errorf("column not found: %q", p.TimeColumn)
	}

	values := make([]string, src.Len())
	var failed []int
	for r, row := range src.Rows {
		dv, tv := strings.TrimSpace(row[dc]), strings.TrimSpace(row[tc])
		if dv == "" && tv == "" {
			continue
		}
		ts, ok := combineDateTime(dv, tv, p.DayFirst)
		if !ok {
			failed = append(failed, r+1)
			continue
		}
		values[r] = core.FormatISO(ts)
	}

	t := src.Clone()
	pos := dc
	if p.DropSources {
		if tc < dc {
			pos--
		}
		if err := t.DropColumns(src.Columns[dc], src.Columns[tc]); err != nil {
			return core.Result{}, err
		}
	}
	if err := t.AddColumn(pos, p.Target, core.KindDatetime, values); err != nil {
		return core.Result{}, err
	}

	res := core.Result{
		Table: t,
		Summary: fmt.Sprintf("merged %s and %s into %s (%d rows, %d failed)",
			src.Columns[dc], src.Columns[tc], p.Target, src.Len()-len(failed), len(failed)),
	}
	if len(failed) > 0 {
		res.Warnf("%s could not be merged and were left empty (rows %s)",
			plural(len(failed), "row"), formatRows(failed))
	}
	return res, nil
}

// combineDateTime parses the date and time parts of one row. A blank time
// means midnight. The time cell may also hold a full timestamp, as Excel
// writes for time-only cells, in which case only its clock is used.
func combineDateTime(dateVal, timeVal string, dayFirst bool) (time.Time, bool) {
	policy := core.AmbiguityMonthFirst
	if dayFirst {
		policy = core.AmbiguityDayFirst
	}
	d, status := core.ResolveDateTime(dateVal, policy)
	if status != core.DateParsed {
		return time.Time{}, false
	}
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)

	if timeVal == "" {
		return day, true
	}
	if offset, ok := core.ParseTimeOfDay(timeVal); ok {
		return day.Add(offset), true
	}
	if ts, ok := core.ParseDateTime(timeVal, dayFirst); ok {
		return day.Add(time.Duration(ts.Hour())*time.Hour +
			time.Duration(ts.Minute())*time.Minute +
			time.Duration(ts.Second())*time.Second), true
	}
	return time.Time{}, false
}
