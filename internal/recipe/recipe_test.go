package recipe

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/tidycsv/internal/core"
	_ "github.com/JonMunkholm/tidycsv/internal/core/tasks"
)

const ctdRecipe = `
name: ctd-cleanup
headers: [Station Name, Date, Time]
steps:
  - task: clean_headers
    params:
      case: snake
  - task: merge_datetime
    params: {date_column: date, time_column: time, drop_sources: true}
`

func TestDecode_YAML(t *testing.T) {
	rec, err := Decode([]byte(ctdRecipe), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "ctd-cleanup", rec.Name)
	assert.Equal(t, []string{"Station Name", "Date", "Time"}, rec.Headers)
	require.Len(t, rec.Steps, 2)
	assert.Equal(t, "clean_headers", rec.Steps[0].Task)
	assert.Equal(t, "snake", rec.Steps[0].Params["case"])
	assert.Equal(t, true, rec.Steps[1].Params["drop_sources"])
}

func TestDecode_JSONSniffed(t *testing.T) {
	doc := `{"name": "j", "steps": [{"task": "drop_columns", "params": {"columns": ["qc"]}}]}`

	rec, err := Decode([]byte(doc), FormatYAML)
	require.NoError(t, err)
	require.Len(t, rec.Steps, 1)
	assert.Equal(t, []any{"qc"}, rec.Steps[0].Params["columns"])
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", "   \n"},
		{"unknown field", "name: x\nstep:\n  - task: clean_headers\n"},
		{"no steps", "name: x\nsteps: []\n"},
		{"unknown task", "name: x\nsteps:\n  - task: launch_rocket\n"},
		{"malformed json", `{"name": "x", "steps": [}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc), FormatYAML)
			require.Error(t, err)
			assert.Equal(t, "TASK005", core.MapError(err).Code)
		})
	}
}

func TestEncodeDecode_FromHistory(t *testing.T) {
	rec := core.RecipeFromHistory("ctd", []string{"Date", "Time"}, []core.AppliedTask{
		{Task: "clean_headers", Params: map[string]any{"case": "snake"}},
		{Task: "merge_files", Files: []string{"a.csv", "b.csv"}, Params: map[string]any{"mode": "concat"}},
	})

	for _, f := range []Format{FormatYAML, FormatJSON} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, rec, f))

			got, err := Decode(buf.Bytes(), f)
			require.NoError(t, err)
			assert.Equal(t, rec.Name, got.Name)
			assert.Equal(t, rec.Headers, got.Headers)
			require.Len(t, got.Steps, 2)
			assert.Equal(t, []string{"a.csv", "b.csv"}, got.Steps[1].Files)
			assert.Equal(t, "concat", got.Steps[1].Params["mode"])
		})
	}
}

func TestMarshal_OmitsEmptyFields(t *testing.T) {
	data, err := Marshal(core.Recipe{Name: "r", Steps: []core.RecipeStep{{Task: "clean_headers"}}})
	require.NoError(t, err)
	assert.Equal(t, "name: r\nsteps:\n  - task: clean_headers\n", string(data))
}

func TestNormalizeValue(t *testing.T) {
	in := []any{map[any]any{"from": "NA", 1: map[any]any{"x": "y"}}}
	got := normalizeValue(in)
	assert.Equal(t, []any{map[string]any{"from": "NA", "1": map[string]any{"x": "y"}}}, got)
}

func TestLoadSaveFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "station-a.yml")
	require.NoError(t, os.WriteFile(path, []byte("steps:\n  - task: clean_headers\n"), 0o644))
	rec, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "station-a", rec.Name)

	out := filepath.Join(dir, "copy.json")
	require.NoError(t, SaveFile(out, rec))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"task": "clean_headers"`)

	back, err := LoadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "station-a", back.Name)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestFormatSelection(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatForPath("r.JSON"))
	assert.Equal(t, FormatYAML, FormatForPath("r.yaml"))
	assert.Equal(t, FormatJSON, FormatForContentType("application/json; charset=utf-8"))
	assert.Equal(t, FormatYAML, FormatForContentType("text/plain"))
	assert.Equal(t, "application/yaml", FormatYAML.ContentType())
}
