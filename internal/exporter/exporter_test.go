package exporter

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/tidycsv/internal/core"
)

func ctdTable() *core.Table {
	t := core.NewTable(
		[]string{"station", "depth_m", "temp_c", "flagged", "sampled_at"},
		[][]string{
			{"A1", "10", "9.85", "true", "2024-03-05T13:45:00"},
			{"A2", "25", "", "no", "2024-03-06T00:00:00"},
			{"A3", "n/a", "8.1", "x", ""},
		},
	)
	t.Kinds = []core.Kind{core.KindString, core.KindInt, core.KindFloat, core.KindBool, core.KindDatetime}
	return t
}

func TestWriteCSV(t *testing.T) {
	tests := []struct {
		name     string
		opts     CSVOptions
		expected string
	}{
		{
			name:     "plain",
			expected: "a,b\n1,\"x,y\"\n",
		},
		{
			name:     "with BOM",
			opts:     CSVOptions{BOMPrefix: true},
			expected: "\xEF\xBB\xBFa,b\n1,\"x,y\"\n",
		},
		{
			name:     "semicolon",
			opts:     CSVOptions{Delimiter: ';'},
			expected: "a;b\n1;x,y\n",
		},
	}

	tbl := core.NewTable([]string{"a", "b"}, [][]string{{"1", "x,y"}})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, tbl, tt.opts))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestWriteCSV_RoundTripsThroughReader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ctdTable(), CSVOptions{BOMPrefix: true}))

	got, err := core.ReadTable(&buf, core.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, ctdTable().Columns, got.Columns)
	assert.Equal(t, ctdTable().Rows, got.Rows)
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXLSX(&buf, []core.NamedTable{
		{Name: "ctd.csv", Table: ctdTable()},
		{Name: "ctd.txt", Table: core.NewTable([]string{"x"}, [][]string{{"1"}})},
	})
	require.NoError(t, err)

	f := openWorkbook(t, buf.Bytes())
	assert.Equal(t, []string{"ctd", "ctd~2"}, f.GetSheetList())

	rows, err := f.GetRows("ctd")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"station", "depth_m", "temp_c", "flagged", "sampled_at"}, rows[0])

	v, err := f.GetCellValue("ctd", "B2")
	require.NoError(t, err)
	assert.Equal(t, "10", v)
	v, _ = f.GetCellValue("ctd", "C2")
	assert.Equal(t, "9.85", v)
	v, _ = f.GetCellValue("ctd", "D2")
	assert.Equal(t, "TRUE", v)
	v, _ = f.GetCellValue("ctd", "E2")
	assert.Equal(t, "2024-03-05T13:45:00", v)

	// Unparseable values stay as text
	v, _ = f.GetCellValue("ctd", "B4")
	assert.Equal(t, "n/a", v)
	v, _ = f.GetCellValue("ctd", "D4")
	assert.Equal(t, "x", v)

	styleID, err := f.GetCellStyle("ctd", "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)

	panes, err := f.GetPanes("ctd")
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
	assert.Equal(t, 1, panes.YSplit)
}

func TestWriteXLSX_NoTables(t *testing.T) {
	assert.ErrorIs(t, WriteXLSX(io.Discard, nil), ErrNoTables)
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{}
	long := strings.Repeat("x", 40) + ".csv"

	assert.Equal(t, "ctd_2024_03", uniqueSheetName("ctd/2024:03.csv", used))
	assert.Equal(t, strings.Repeat("x", 31), uniqueSheetName(long, used))
	assert.Equal(t, strings.Repeat("x", 29)+"~2", uniqueSheetName(long, used))
	assert.Equal(t, "Sheet", uniqueSheetName(".csv", used))
	assert.Equal(t, "CTD_2024_03~2", uniqueSheetName("CTD_2024_03.txt", used))
}

func TestColumnWidths(t *testing.T) {
	tbl := core.NewTable([]string{"id", "note"}, [][]string{{"1", strings.Repeat("n", 100)}})
	assert.Equal(t, []float64{minColumnWidth, maxColumnWidth}, columnWidths(tbl))
}

func TestWriteZIP(t *testing.T) {
	var buf bytes.Buffer
	err := WriteZIP(&buf, []BundleFile{
		{Name: "ctd.txt", Table: ctdTable(), Recipe: []byte("name: ctd\n")},
		{Name: "met.csv", Table: core.NewTable([]string{"wind"}, [][]string{{"3.2"}})},
	}, FormatCSV, CSVOptions{})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	contents := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		contents[f.Name] = string(data)
	}

	assert.Len(t, contents, 3)
	assert.Equal(t, "name: ctd\n", contents["ctd.recipe.yaml"])
	assert.Equal(t, "wind\n3.2\n", contents["met.csv"])
	assert.True(t, strings.HasPrefix(contents["ctd.csv"], "station,depth_m,"))
}

func TestWriteZIP_XLSXEntries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteZIP(&buf, []BundleFile{{Name: "ctd.csv", Table: ctdTable()}}, FormatXLSX, CSVOptions{}))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "ctd.xlsx", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{"ctd"}, f.GetSheetList())
}

func TestWriteZIP_RejectsNestedZip(t *testing.T) {
	err := WriteZIP(io.Discard, []BundleFile{{Name: "a.csv", Table: ctdTable()}}, FormatZIP, CSVOptions{})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatCSV, "CSV": FormatCSV, "excel": FormatXLSX, "zip": FormatZIP} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("parquet")
	assert.Error(t, err)

	assert.Equal(t, "ctd.xlsx", FileName("ctd.txt", FormatXLSX))
	assert.Equal(t, "export.csv", FileName("", FormatCSV))
}
