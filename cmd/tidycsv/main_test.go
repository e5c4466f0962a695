package main

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ctdCSV = "Station Name,Date,Time,Temp (C)\nA1,05/03/2024,13:45,10.1\nA2,2024-03-06,,9.8\n"

const snakeRecipe = "name: ctd\nsteps:\n  - task: clean_headers\n    params:\n      case: snake\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTasksCommand(t *testing.T) {
	out, err := execute(t, "tasks")
	require.NoError(t, err)
	assert.Contains(t, out, "GROUP")
	assert.Contains(t, out, "clean_headers")
	assert.Contains(t, out, "assign_rvq")
}

func TestRunCommand_CSV(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "ctd.csv", ctdCSV)
	rec := writeFile(t, dir, "ctd.yaml", snakeRecipe)
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "run", "--recipe", rec, "--out", outDir, in)
	require.NoError(t, err)

	want := filepath.Join(outDir, "ctd.csv")
	assert.Equal(t, want+"\n", out)
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "station_name,date,time,temp_c\nA1,05/03/2024,13:45,10.1\nA2,2024-03-06,,9.8\n", string(data))
}

func TestRunCommand_ZIP(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "ctd.csv", ctdCSV)
	b := writeFile(t, dir, "ctd2.txt", ctdCSV)
	rec := writeFile(t, dir, "ctd.yaml", snakeRecipe)

	out, err := execute(t, "run", "-r", rec, "-o", dir, "-f", "zip", "--name", "cruise", a, b)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cruise.zip")+"\n", out)

	zr, err := zip.OpenReader(filepath.Join(dir, "cruise.zip"))
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"ctd.csv", "ctd.recipe.yaml", "ctd2.csv", "ctd2.recipe.yaml"}, names)
}

func TestRunCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "ctd.csv", ctdCSV)
	rec := writeFile(t, dir, "ctd.yaml", snakeRecipe)
	bad := writeFile(t, dir, "bad.yaml", "name: bad\nsteps:\n  - task: nope\n")

	_, err := execute(t, "run", in)
	assert.ErrorContains(t, err, "recipe")

	_, err = execute(t, "run", "-r", bad, "-o", dir, in)
	assert.ErrorContains(t, err, "unknown task")

	_, err = execute(t, "run", "-r", rec, "-o", dir, "-f", "pdf", in)
	assert.ErrorContains(t, err, "unsupported export format")

	_, err = execute(t, "run", "-r", rec, "-o", dir, filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	dup := writeFile(t, sub, "ctd.csv", ctdCSV)
	_, err = execute(t, "run", "-r", rec, "-o", dir, in, dup)
	assert.ErrorContains(t, err, "share the file name")
}

func TestRunCommand_RefusesToOverwriteInputs(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format string
		bundle string
	}{
		{"csv next to its input", "ctd.csv", "csv", "tidycsv"},
		{"xlsx bundle named like an input", "cruise.xlsx", "xlsx", "cruise"},
		{"zip bundle named like an input", "cruise.zip", "zip", "cruise"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			in := writeFile(t, dir, tt.input, ctdCSV)
			rec := writeFile(t, dir, "ctd.yaml", snakeRecipe)

			out, err := execute(t, "run", "-r", rec, "-o", dir, "-f", tt.format, "--name", tt.bundle, in)
			require.Error(t, err)
			assert.ErrorContains(t, err, "refusing to overwrite input")
			assert.Empty(t, out)

			data, err := os.ReadFile(in)
			require.NoError(t, err)
			assert.Equal(t, ctdCSV, string(data))
		})
	}
}

func TestMetadataCommand(t *testing.T) {
	dir := t.TempDir()
	raw := "# Station: A1\n# Instrument = CTD\nOperator,Jane\nDepth,Temp,Sal\n1,10.1,35\n2,10.0,35.1\n"
	in := writeFile(t, dir, "cast.txt", raw)
	dataOut := filepath.Join(dir, "cast.csv")

	out, err := execute(t, "metadata", "--delimiter", "comma", "--data", dataOut, in)
	require.NoError(t, err)
	assert.Equal(t, "- key: Station\n  value: A1\n- key: Instrument\n  value: CTD\n- key: Operator\n  value: Jane\n", out)

	data, err := os.ReadFile(dataOut)
	require.NoError(t, err)
	assert.Equal(t, "Depth,Temp,Sal\n1,10.1,35\n2,10.0,35.1\n", string(data))

	out, err = execute(t, "metadata", "--delimiter", "comma", "--json", in)
	require.NoError(t, err)
	assert.Contains(t, out, `"key": "Instrument"`)
}
