// Package exporter writes cleaned tables for download.
//
// It contains three writers:
//
// WriteCSV: delimited text with an optional UTF-8 BOM so Excel detects the
// encoding.
//
// WriteXLSX: one worksheet per file with a bold, filled and frozen header
// row. Cells of int, float and bool columns are written typed; everything
// else is written as text.
//
// WriteZIP: a bundle of CSV or XLSX files, one per workspace file, each
// optionally accompanied by the recipe that produced it.
//
// Example usage:
//
//	tables, _ := svc.Tables(sessionID, nil)
//	w.Header().Set("Content-Type", exporter.ContentType(exporter.FormatXLSX))
//	err := exporter.WriteXLSX(w, tables)
package exporter
