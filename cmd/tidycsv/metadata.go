package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/JonMunkholm/tidycsv/internal/core/tasks"
	"github.com/JonMunkholm/tidycsv/internal/exporter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newMetadataCmd() *cobra.Command {
	var (
		headerRow int
		asJSON    bool
		dataOut   string
		delimiter string
		encoding  string
	)
	cmd := &cobra.Command{
		Use:   "metadata FILE",
		Short: "Print the key/value preamble of an instrument file",
		Long: `Metadata finds the data header of an instrument export, prints the
key/value lines above it, and optionally writes the data below it as CSV.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readOptions(delimiter, encoding, false)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			raw, err := core.ReadTable(f, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			data, entries, err := tasks.ParseMetadata(raw, headerRow)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []tasks.MetadataEntry{}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				err = enc.Encode(entries)
			} else {
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				err = enc.Encode(entries)
				if cerr := enc.Close(); err == nil {
					err = cerr
				}
			}
			if err != nil {
				return err
			}

			if dataOut == "" {
				return nil
			}
			var buf bytes.Buffer
			if err := exporter.WriteCSV(&buf, data, exporter.CSVOptions{}); err != nil {
				return err
			}
			return os.WriteFile(dataOut, buf.Bytes(), 0o644)
		},
	}

	f := cmd.Flags()
	f.IntVar(&headerRow, "header-row", -1, "0-based line of the data header (default: detect)")
	f.BoolVar(&asJSON, "json", false, "print JSON instead of YAML")
	f.StringVar(&dataOut, "data", "", "write the data section to this CSV file")
	f.StringVar(&delimiter, "delimiter", "", "input delimiter (default: detect)")
	f.StringVar(&encoding, "encoding", "", "input encoding: utf-8, latin1 or windows-1252")
	return cmd
}
