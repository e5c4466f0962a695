package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTable(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    ReadOptions
		columns []string
		rows    [][]string
	}{
		{
			name:    "comma",
			input:   "a,b\n1,2\n3,4\n",
			columns: []string{"a", "b"},
			rows:    [][]string{{"1", "2"}, {"3", "4"}},
		},
		{
			name:    "semicolon detected",
			input:   "a;b;c\n1;2,5;3\n",
			columns: []string{"a", "b", "c"},
			rows:    [][]string{{"1", "2,5", "3"}},
		},
		{
			name:    "tab delimited txt",
			input:   "Depth\tTemp\n1\t10.2\n",
			columns: []string{"Depth", "Temp"},
			rows:    [][]string{{"1", "10.2"}},
		},
		{
			name:    "whitespace aligned columns detected",
			input:   "Depth  Temp  Sal\n 1.0   10.2  30.1\n 2.0   10.1  30.2\n",
			columns: []string{"Depth", "Temp", "Sal"},
			rows:    [][]string{{"1.0", "10.2", "30.1"}, {"2.0", "10.1", "30.2"}},
		},
		{
			name:    "whitespace requested without trailing newline",
			input:   "Depth\tTemp   Sal\n1 \t 10.2 30.1",
			opts:    ReadOptions{Delimiter: DelimiterWhitespace},
			columns: []string{"Depth", "Temp", "Sal"},
			rows:    [][]string{{"1", "10.2", "30.1"}},
		},
		{
			name:    "ragged rows padded and blank lines skipped",
			input:   "a,b\n1\n\n,,\n2,3,4\n",
			columns: []string{"a", "b", "column_3"},
			rows:    [][]string{{"1", "", ""}, {"2", "3", "4"}},
		},
		{
			name:    "no header",
			input:   "1,2\n3,4\n",
			opts:    ReadOptions{NoHeader: true},
			columns: []string{"column_1", "column_2"},
			rows:    [][]string{{"1", "2"}, {"3", "4"}},
		},
		{
			name:    "BOM stripped from first header",
			input:   "\xEF\xBB\xBFSite,Temp\nA,1\n",
			columns: []string{"Site", "Temp"},
			rows:    [][]string{{"A", "1"}},
		},
		{
			name:    "quoted delimiter",
			input:   "name,note\n\"Smith, J\",ok\n",
			columns: []string{"name", "note"},
			rows:    [][]string{{"Smith, J", "ok"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ReadTable(strings.NewReader(tt.input), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.columns, tbl.Columns)
			assert.Equal(t, tt.rows, tbl.Rows)
			for _, k := range tbl.Kinds {
				assert.Equal(t, KindString, k)
			}
		})
	}
}

func TestReadTable_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  ReadOptions
		code  string
	}{
		{"empty", "", ReadOptions{}, "FILE005"},
		{"whitespace only", " \n\n", ReadOptions{}, "FILE005"},
		{"too large", strings.Repeat("a,b\n", 100), ReadOptions{MaxBytes: 10}, "FILE001"},
		{"bad encoding", "a\n", ReadOptions{Encoding: "utf-16"}, "FILE003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.input), tt.opts)
			require.Error(t, err)
			assert.Equal(t, tt.code, MapError(err).Code)
		})
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", 0, false},
		{"auto", 0, false},
		{"tab", '\t', false},
		{`\t`, '\t', false},
		{"semicolon", ';', false},
		{"|", '|', false},
		{"whitespace", DelimiterWhitespace, false},
		{"space", DelimiterWhitespace, false},
		{"::", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDelimiter(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectDelimiter_IgnoresPreamble(t *testing.T) {
	sample := "# Station: A1, North basin\n# Operator: J\nDepth;Temp;Sal\n1;10,1;35\n2;10,0;35\n3;9,8;35\n"
	assert.Equal(t, ';', DetectDelimiter([]byte(sample)))
	assert.Equal(t, ',', DetectDelimiter([]byte("single column\nvalue\n")))
}

func TestDetectDelimiter_Whitespace(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		want   rune
	}{
		{"aligned columns", "Depth  Temp  Sal\n1.0   10.2  30.1\n2.0   10.1  30.2\n", DelimiterWhitespace},
		{"tabs win over spaces", "Depth\tTemp\n1\t10.2\n", '\t'},
		{"comma rows with spaced timestamps", "Station,Time\nA1,2024-01-15 13:45\nA2,2024-01-15 14:00\n", ','},
		{"one line with spaces", "single column\nvalue\n", ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDelimiter([]byte(tt.sample)))
		})
	}
}
