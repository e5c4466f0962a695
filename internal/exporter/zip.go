package exporter

import (
	"archive/zip"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/tidycsv/internal/core"
)

// BundleFile is one workspace file in a ZIP bundle.
type BundleFile struct {
	Name   string
	Table  *core.Table
	Recipe []byte // optional recipe document stored next to the file
}

// WriteZIP writes each file in the given format to a ZIP archive.
// A file with a recipe also gets "<name>.recipe.yaml".
func WriteZIP(w io.Writer, files []BundleFile, format Format, opts CSVOptions) error {
	if len(files) == 0 {
		return ErrNoTables
	}
	if format != FormatCSV && format != FormatXLSX {
		return fmt.Errorf("unsupported bundle format: %q", format)
	}

	zw := zip.NewWriter(w)
	modified := time.Now()

	for _, bf := range files {
		name := FileName(bf.Name, format)
		entry, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}

		switch format {
		case FormatXLSX:
			err = WriteXLSX(entry, []core.NamedTable{{Name: bf.Name, Table: bf.Table}})
		default:
			err = WriteCSV(entry, bf.Table, opts)
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}

		if len(bf.Recipe) == 0 {
			continue
		}
		recipeName := FileName(bf.Name, "recipe.yaml")
		entry, err = zw.CreateHeader(&zip.FileHeader{Name: recipeName, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return fmt.Errorf("add %s: %w", recipeName, err)
		}
		if _, err := entry.Write(bf.Recipe); err != nil {
			return fmt.Errorf("write %s: %w", recipeName, err)
		}
	}

	return zw.Close()
}
