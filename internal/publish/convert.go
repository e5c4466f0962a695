package publish

import (
	"fmt"
	"strconv"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// rowValues converts row i of t into COPY values.
func rowValues(t *core.Table, i int) ([]any, error) {
	row := t.Rows[i]
	out := make([]any, len(row))
	for c, v := range row {
		val, err := cellValue(v, t.KindOf(c))
		if err != nil {
			return nil, fmt.Errorf("row %d, %s: %w", i+1, t.Columns[c], err)
		}
		out[c] = val
	}
	return out, nil
}

func cellValue(v string, kind core.Kind) (any, error) {
	switch kind {
	case core.KindInt:
		return toPgInt8(v)
	case core.KindFloat:
		return toPgNumeric(v)
	case core.KindBool:
		return toPgBool(v)
	case core.KindDatetime:
		return toPgTimestamp(v)
	default:
		return toPgText(v), nil
	}
}

func toPgText(s string) pgtype.Text {
	s = core.CleanCell(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgInt8(s string) (pgtype.Int8, error) {
	s = core.CleanCell(s)
	if s == "" {
		return pgtype.Int8{Valid: false}, nil
	}
	n, ok := core.ParseInt(s)
	if !ok {
		return pgtype.Int8{}, fmt.Errorf("cannot convert %q to integer", s)
	}
	return pgtype.Int8{Int64: n, Valid: true}, nil
}

func toPgNumeric(s string) (pgtype.Numeric, error) {
	s = core.CleanCell(s)
	if s == "" {
		return pgtype.Numeric{Valid: false}, nil
	}
	f, ok := core.ParseNumber(s)
	if !ok {
		return pgtype.Numeric{}, fmt.Errorf("cannot convert %q to number", s)
	}

	var n pgtype.Numeric
	if err := n.Scan(strconv.FormatFloat(f, 'f', -1, 64)); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("cannot convert %q to number: %w", s, err)
	}
	return n, nil
}

func toPgBool(s string) (pgtype.Bool, error) {
	s = core.CleanCell(s)
	if s == "" {
		return pgtype.Bool{Valid: false}, nil
	}
	b, ok := core.ParseBool(s)
	if !ok {
		return pgtype.Bool{}, fmt.Errorf("cannot convert %q to boolean", s)
	}
	return pgtype.Bool{Bool: b, Valid: true}, nil
}

// toPgTimestamp refuses dates that read differently day-first and
// month-first; iso_datetime or assign_types must settle them first.
func toPgTimestamp(s string) (pgtype.Timestamp, error) {
	s = core.CleanCell(s)
	if s == "" {
		return pgtype.Timestamp{Valid: false}, nil
	}
	t, status := core.ResolveDateTime(s, core.AmbiguityFlag)
	switch status {
	case core.DateParsed:
		return pgtype.Timestamp{Time: t, Valid: true}, nil
	case core.DateAmbiguous:
		return pgtype.Timestamp{}, fmt.Errorf("cannot convert %q to datetime: ambiguous date", s)
	default:
		return pgtype.Timestamp{}, fmt.Errorf("cannot convert %q to datetime", s)
	}
}
