package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/JonMunkholm/tidycsv/internal/core"
)

// utf8BOM lets Excel recognise UTF-8 when opening a CSV directly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions configures CSV writing.
type CSVOptions struct {
	Delimiter rune // 0 means ','
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes the header and rows of t to w.
func WriteCSV(w io.Writer, t *core.Table, opts CSVOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("write BOM: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}

	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	// Batch flushing keeps memory flat for large tables
	const flushInterval = 1000
	for i, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", i+1, err)
		}
		if (i+1)%flushInterval == 0 {
			cw.Flush()
			if err := cw.Error(); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
