package exporter

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a download format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatZIP  Format = "zip"
)

// ParseFormat converts a query value to a Format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "zip":
		return FormatZIP, nil
	}
	return "", fmt.Errorf("unsupported export format: %q", s)
}

// ContentType returns the MIME type served for f.
func ContentType(f Format) string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatZIP:
		return "application/zip"
	default:
		return "text/csv; charset=utf-8"
	}
}

// FileName replaces the extension of name with the one for f.
// "ctd.txt" with FormatCSV becomes "ctd.csv".
func FileName(name string, f Format) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." {
		base = "export"
	}
	return base + "." + string(f)
}
