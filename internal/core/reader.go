package core

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// delimiterCandidates are tried in order during auto-detection.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// DelimiterWhitespace splits records on runs of spaces and tabs, as used by
// fixed-width instrument exports. Quotes are not interpreted in this mode.
const DelimiterWhitespace = ' '

// sniffLines is how many non-blank lines delimiter detection looks at.
const sniffLines = 25

// ReadOptions controls how an uploaded file becomes a Table.
type ReadOptions struct {
	Delimiter rune   // 0 means auto-detect
	Encoding  string // "", "utf-8", "latin1" or "windows-1252"
	NoHeader  bool   // first record is data; columns are named column_N
	MaxBytes  int64  // 0 means unlimited
}

// ReadTable parses a CSV or TXT file into a Table.
// Ragged records are padded to the widest record and fully blank records are skipped.
func ReadTable(r io.Reader, opts ReadOptions) (*Table, error) {
	wrapped, err := WrapForReading(r, opts.Encoding, opts.MaxBytes)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(wrapped, 64*1024)
	head, err := br.Peek(64 * 1024)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(bytes.TrimSpace(head)) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = DetectDelimiter(head)
	}

	var next func() ([]string, error)
	if delim == DelimiterWhitespace {
		var done bool
		next = func() ([]string, error) {
			if done {
				return nil, io.EOF
			}
			line, err := br.ReadString('\n')
			if errors.Is(err, io.EOF) {
				done = true
				if line == "" {
					return nil, io.EOF
				}
			} else if err != nil {
				return nil, err
			}
			return strings.Fields(line), nil
		}
	} else {
		cr := csv.NewReader(br)
		cr.Comma = delim
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		next = cr.Read
	}

	var records [][]string
	width := 0
	for {
		rec, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, ErrFileTooLarge) {
				return nil, err
			}
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if isBlankRecord(rec) {
			continue
		}
		width = max(width, len(rec))
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	var header []string
	if opts.NoHeader {
		header = make([]string, width)
	} else {
		header = fitRow(records[0], width)
		records = records[1:]
	}
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			header[i] = GeneratedColumnName(i)
		}
	}

	return NewTable(header, records), nil
}

// GeneratedColumnName is the name given to the i-th (0-based) column when
// the header cell is empty.
func GeneratedColumnName(i int) string {
	return fmt.Sprintf("column_%d", i+1)
}

// ParseDelimiter converts a user-facing delimiter name to a rune.
// Empty or "auto" returns 0.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return 0, nil
	case "tab", `\t`, "\t":
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	case "pipe":
		return '|', nil
	case "space", "whitespace":
		return DelimiterWhitespace, nil
	}
	rs := []rune(s)
	if len(rs) != 1 {
		return 0, fmt.Errorf("invalid delimiter: %q", s)
	}
	return rs[0], nil
}

// DetectDelimiter picks the candidate whose per-line count is most consistent.
// Lines are scored by how many share the most common non-zero count, so a
// metadata preamble above the data does not skew the result. When more
// lines agree on a whitespace-separated field count than on any candidate,
// and at least two do, DelimiterWhitespace is returned. Falls back to ','.
func DetectDelimiter(sample []byte) rune {
	var lines []string
	for _, l := range strings.Split(string(sample), "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
		if len(lines) == sniffLines {
			break
		}
	}

	best, bestScore, bestCount := ',', 0, 0
	for _, c := range delimiterCandidates {
		freq := make(map[int]int)
		for _, l := range lines {
			if n := countOutsideQuotes(l, c); n > 0 {
				freq[n]++
			}
		}
		score, count := 0, 0
		for n, f := range freq {
			if f > score || (f == score && n > count) {
				score, count = f, n
			}
		}
		if score > bestScore || (score == bestScore && count > bestCount) {
			best, bestScore, bestCount = c, score, count
		}
	}
	if ws := whitespaceScore(lines); ws >= 2 && ws > bestScore {
		return DelimiterWhitespace
	}
	return best
}

// whitespaceScore is the number of lines sharing the most common field count
// above one when split on whitespace.
func whitespaceScore(lines []string) int {
	freq := make(map[int]int)
	score := 0
	for _, l := range lines {
		if n := len(strings.Fields(l)); n > 1 {
			freq[n]++
			score = max(score, freq[n])
		}
	}
	return score
}

// countOutsideQuotes counts occurrences of c that are not inside double quotes.
func countOutsideQuotes(line string, c rune) int {
	n, quoted := 0, false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == c && !quoted:
			n++
		}
	}
	return n
}

func isBlankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
