package core

// convert.go parses the messy cell values found in instrument exports:
//   - dates written day-first or month-first, with or without a time of day
//   - numbers with currency symbols, thousands separators or accounting
//     parentheses
//   - the many spellings of booleans (yes/no, t/f, 1/0)
//
// Dates are parsed once per field order so callers can tell an unambiguous
// date from one that reads differently under each convention.

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISOLayout is the canonical output format for every date/time cell.
const ISOLayout = "2006-01-02T15:04:05"

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// to the previous century.
var TwoDigitYearPivot = 20

var timeSuffixes = []string{
	"",
	" 15:04:05",
	" 15:04",
	"T15:04:05",
	"T15:04",
	" 3:04:05 PM",
	" 3:04 PM",
	" 3:04:05PM",
	" 3:04PM",
}

// Layouts that read the same under either field order.
var sharedLayouts = withTimeSuffixes([]string{
	"2006-01-02", "2006/01/02", "2006.01.02",
	"Jan 2, 2006", "January 2, 2006", "Jan 2 2006",
	"2 Jan 2006", "2 January 2006", "2-Jan-2006", "2-Jan-06", "2/Jan/2006",
}, []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	time.ANSIC,
	time.RFC1123,
	time.RFC1123Z,
	"20060102",
	"20060102150405",
	"20060102T150405",
})

var (
	dayFirstLayouts   = withTimeSuffixes([]string{"2/1/2006", "2-1-2006", "2.1.2006"}, nil)
	monthFirstLayouts = withTimeSuffixes([]string{"1/2/2006", "1-2-2006", "1.2.2006"}, nil)

	dayFirstShortYear   = withTimeSuffixes([]string{"2/1/06", "2-1-06", "2.1.06"}, nil)
	monthFirstShortYear = withTimeSuffixes([]string{"1/2/06", "1-2-06", "1.2.06"}, nil)
)

var timeOfDayLayouts = []string{
	"15:04:05", "15:04", "3:04:05 PM", "3:04 PM", "3:04:05PM", "3:04PM",
	"150405", "1504", "15h04",
}

func withTimeSuffixes(dates []string, extra []string) []string {
	out := make([]string, 0, len(dates)*len(timeSuffixes)+len(extra))
	for _, d := range dates {
		for _, s := range timeSuffixes {
			out = append(out, d+s)
		}
	}
	return append(out, extra...)
}

// ParseDateTime parses a date or date-time using one field order.
// Unambiguous layouts (year first, month names, RFC forms) are tried first.
func ParseDateTime(s string, dayFirst bool) (time.Time, bool) {
	s = normalizeDateInput(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range sharedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	long, short := monthFirstLayouts, monthFirstShortYear
	if dayFirst {
		long, short = dayFirstLayouts, dayFirstShortYear
	}
	for _, layout := range long {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range short {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// normalizeDateInput trims, collapses spaces and upper-cases am/pm markers.
func normalizeDateInput(s string) string {
	s = strings.Join(strings.Fields(CleanCell(s)), " ")
	if strings.HasSuffix(strings.ToLower(s), "am") || strings.HasSuffix(strings.ToLower(s), "pm") {
		s = s[:len(s)-2] + strings.ToUpper(s[len(s)-2:])
	}
	return s
}

// DateStatus classifies the outcome of ResolveDateTime.
type DateStatus int

const (
	DateParsed DateStatus = iota
	DateUnparsed
	DateAmbiguous
)

// Ambiguity is the policy for dates that parse differently per field order.
type Ambiguity string

const (
	AmbiguityFlag       Ambiguity = "flag"
	AmbiguityDayFirst   Ambiguity = "day_first"
	AmbiguityMonthFirst Ambiguity = "month_first"
)

// ResolveDateTime parses s day-first and month-first.
//
// Both agree: accepted. Both fail: DateUnparsed. Only one succeeds: that one
// is accepted. They disagree: resolved by policy, or DateAmbiguous under
// AmbiguityFlag.
func ResolveDateTime(s string, policy Ambiguity) (time.Time, DateStatus) {
	df, okDF := ParseDateTime(s, true)
	mf, okMF := ParseDateTime(s, false)

	switch {
	case !okDF && !okMF:
		return time.Time{}, DateUnparsed
	case okDF && !okMF:
		return df, DateParsed
	case !okDF && okMF:
		return mf, DateParsed
	case df.Equal(mf):
		return df, DateParsed
	}

	switch policy {
	case AmbiguityDayFirst:
		return df, DateParsed
	case AmbiguityMonthFirst:
		return mf, DateParsed
	default:
		return time.Time{}, DateAmbiguous
	}
}

// ParseTimeOfDay parses a wall-clock time and returns the offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, bool) {
	s = normalizeDateInput(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range timeOfDayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second +
				time.Duration(t.Nanosecond()), true
		}
	}
	return 0, false
}

// FormatISO renders t in the canonical ISO 8601 layout.
func FormatISO(t time.Time) string {
	return t.Format(ISOLayout)
}

// normalizeNumber strips currency symbols and thousands separators and turns
// accounting parentheses into a leading minus. It reports false when the
// result is not a decimal or scientific literal.
func normalizeNumber(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}
	return s, numericRegex.MatchString(s)
}

// ParseNumber converts a string to float64.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ParseNumber(s string) (float64, bool) {
	s, ok := normalizeNumber(s)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseInt converts a string to int64 with the same cleanup as ParseNumber.
// Integer literals are parsed exactly; a float literal such as "3.0" or
// "1e3" is accepted only when it is whole and inside the int64 range.
func ParseInt(s string) (int64, bool) {
	s, ok := normalizeNumber(s)
	if !ok {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	} else if errors.Is(err, strconv.ErrRange) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

// ParseBool accepts various representations: true/false, yes/no, t/f, y/n, 1/0.
func ParseBool(s string) (value bool, ok bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// FormatNumber renders a float without a trailing ".0" for whole numbers.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}
