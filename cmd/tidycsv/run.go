package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/JonMunkholm/tidycsv/internal/exporter"
	"github.com/JonMunkholm/tidycsv/internal/recipe"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// runOptions holds the flags of the run command.
type runOptions struct {
	recipe    string
	out       string
	format    string
	bundle    string
	delimiter string
	encoding  string
	noHeader  bool
	bom       bool
}

func newRunCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run --recipe FILE [flags] FILE...",
		Short: "Replay a recipe onto files and write the results",
		Long: `Run loads every input file, replays the recipe onto them and writes the
cleaned files to the output directory.

With --format csv each result is written as its own CSV. With xlsx all results
share one workbook, and with zip they are bundled with their recipes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := runRecipe(cmd.Context(), o, args)
			for _, path := range written {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.recipe, "recipe", "r", "", "recipe file (.yaml, .yml or .json)")
	f.StringVarP(&o.out, "out", "o", ".", "output directory")
	f.StringVarP(&o.format, "format", "f", "csv", "output format: csv, xlsx or zip")
	f.StringVar(&o.bundle, "name", "tidycsv", "base name of the xlsx or zip output")
	f.StringVar(&o.delimiter, "delimiter", "", "input delimiter (default: detect)")
	f.StringVar(&o.encoding, "encoding", "", "input encoding: utf-8, latin1 or windows-1252")
	f.BoolVar(&o.noHeader, "no-header", false, "inputs have no header row")
	f.BoolVar(&o.bom, "bom", false, "prefix CSV output with a UTF-8 BOM")
	_ = cmd.MarkFlagRequired("recipe")
	return cmd
}

// runRecipe replays the recipe and returns the paths it wrote.
func runRecipe(ctx context.Context, o runOptions, inputs []string) ([]string, error) {
	rec, err := recipe.LoadFile(o.recipe)
	if err != nil {
		return nil, err
	}
	format, err := exporter.ParseFormat(o.format)
	if err != nil {
		return nil, err
	}
	readOpts, err := readOptions(o.delimiter, o.encoding, o.noHeader)
	if err != nil {
		return nil, err
	}

	svc := core.NewService(core.ServiceConfig{})
	sessionID := svc.CreateSession().ID

	names, err := loadFiles(ctx, svc, sessionID, inputs, readOpts)
	if err != nil {
		return nil, err
	}

	outcomes, err := svc.ApplyRecipe(ctx, sessionID, rec, names)
	if err != nil {
		return nil, err
	}
	for _, out := range outcomes {
		for _, w := range out.Warnings {
			slog.Warn("recipe warning", "file", out.File, "warning", w)
		}
	}

	tables, err := svc.Tables(sessionID, resultNames(names, outcomes))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(o.out, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	csvOpts := exporter.CSVOptions{BOMPrefix: o.bom}
	switch format {
	case exporter.FormatCSV:
		paths := make([]string, len(tables))
		for i, t := range tables {
			paths[i] = filepath.Join(o.out, exporter.FileName(t.Name, format))
		}
		if err := checkOverwrite(paths, inputs); err != nil {
			return nil, err
		}
		var written []string
		for i, t := range tables {
			var buf bytes.Buffer
			if err := exporter.WriteCSV(&buf, t.Table, csvOpts); err != nil {
				return written, err
			}
			path := paths[i]
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return written, fmt.Errorf("write %s: %w", path, err)
			}
			written = append(written, path)
		}
		return written, nil

	case exporter.FormatXLSX:
		var buf bytes.Buffer
		if err := exporter.WriteXLSX(&buf, tables); err != nil {
			return nil, err
		}
		return writeOutput(o.out, exporter.FileName(o.bundle, format), buf.Bytes(), inputs)

	default:
		files := make([]exporter.BundleFile, 0, len(tables))
		for _, t := range tables {
			bf := exporter.BundleFile{Name: t.Name, Table: t.Table}
			exported, err := svc.ExportRecipe(sessionID, t.Name)
			if err != nil {
				return nil, err
			}
			if len(exported.Steps) > 0 {
				if bf.Recipe, err = recipe.Marshal(exported); err != nil {
					return nil, err
				}
			}
			files = append(files, bf)
		}
		var buf bytes.Buffer
		if err := exporter.WriteZIP(&buf, files, exporter.FormatCSV, csvOpts); err != nil {
			return nil, err
		}
		return writeOutput(o.out, exporter.FileName(o.bundle, format), buf.Bytes(), inputs)
	}
}

// loadFiles reads the inputs concurrently and returns their session names.
func loadFiles(ctx context.Context, svc *core.Service, sessionID string, paths []string, opts core.ReadOptions) ([]string, error) {
	names := make([]string, len(paths))
	seen := make(map[string]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
		if prev, ok := seen[names[i]]; ok {
			return nil, fmt.Errorf("%s and %s share the file name %s", prev, p, names[i])
		}
		seen[names[i]] = p
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(core.DefaultMaxConcurrentUploads)
	for i, p := range paths {
		g.Go(func() error {
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			defer f.Close()

			sum, err := svc.Upload(ctx, sessionID, names[i], f, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			slog.Info("file loaded", "file", sum.Name, "rows", sum.Rows, "columns", sum.Columns)
			return nil
		})
	}
	return names, g.Wait()
}

// resultNames lists the files the recipe produced or changed, in first-touch
// order, falling back to the inputs when the recipe changed nothing.
func resultNames(inputs []string, outcomes []core.ApplyOutcome) []string {
	var names []string
	seen := make(map[string]bool)
	for _, out := range outcomes {
		if !seen[out.File] {
			seen[out.File] = true
			names = append(names, out.File)
		}
	}
	if len(names) == 0 {
		return inputs
	}
	return names
}

func writeOutput(dir, name string, data []byte, inputs []string) ([]string, error) {
	path := filepath.Join(dir, name)
	if err := checkOverwrite([]string{path}, inputs); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return []string{path}, nil
}

// checkOverwrite refuses any output path that names one of the inputs.
func checkOverwrite(outputs, inputs []string) error {
	for _, out := range outputs {
		outInfo, statErr := os.Stat(out)
		for _, in := range inputs {
			if samePath(out, in) {
				return fmt.Errorf("refusing to overwrite input %s (choose another --out directory)", in)
			}
			if statErr != nil {
				continue
			}
			if inInfo, err := os.Stat(in); err == nil && os.SameFile(outInfo, inInfo) {
				return fmt.Errorf("refusing to overwrite input %s (choose another --out directory)", in)
			}
		}
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func readOptions(delimiter, encoding string, noHeader bool) (core.ReadOptions, error) {
	d, err := core.ParseDelimiter(delimiter)
	if err != nil {
		return core.ReadOptions{}, err
	}
	return core.ReadOptions{Delimiter: d, Encoding: encoding, NoHeader: noHeader}, nil
}
