package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"testing"
)

// ============================================================================
// Conversion Function Benchmarks
// ============================================================================

// BenchmarkParseNumber benchmarks numeric string parsing.
// This is a hot path for type assignment and numeric sorting.
func BenchmarkParseNumber(b *testing.B) {
	testCases := []string{
		"123",
		"-456.78",
		"$1,234.56",
		"(123.45)",     // Accounting negative
		"1,234,567.89", // Thousands separators
		"  999.99  ",   // Whitespace
		"1.5e-3",       // Scientific
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseNumber(tc)
		}
	}
}

// BenchmarkParseNumber_Simple benchmarks the most common case: plain readings.
func BenchmarkParseNumber_Simple(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseNumber("12.345")
	}
}

// BenchmarkParseDateTime benchmarks date parsing across layouts.
// This is the hot path of datetime conversion.
func BenchmarkParseDateTime(b *testing.B) {
	testCases := []string{
		"2024-01-15",          // ISO format
		"2024-01-15 13:45:00", // ISO with time
		"15/01/2024 13:45",    // Day first with time
		"Jan 15, 2024",        // Text month
		"20240115",            // Compact
		"1/5/24",              // 2-digit year
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseDateTime(tc, true)
		}
	}
}

// BenchmarkParseDateTime_ISO benchmarks the fastest layout.
func BenchmarkParseDateTime_ISO(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseDateTime("2024-01-15", false)
	}
}

// BenchmarkParseDateTime_TwoDigitYear benchmarks the slowest layout.
func BenchmarkParseDateTime_TwoDigitYear(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseDateTime("1/5/24 3:04 PM", false)
	}
}

// BenchmarkResolveDateTime benchmarks ambiguity resolution, which parses twice.
func BenchmarkResolveDateTime(b *testing.B) {
	b.Run("unambiguous", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			ResolveDateTime("2024-03-05", AmbiguityFlag)
		}
	})
	b.Run("ambiguous", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			ResolveDateTime("05/03/2024", AmbiguityFlag)
		}
	})
}

// BenchmarkParseBool benchmarks boolean parsing.
func BenchmarkParseBool(b *testing.B) {
	testCases := []string{"true", "FALSE", "yes", "N", "1", "0", "maybe"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseBool(tc)
		}
	}
}

// ============================================================================
// Cell Cleaning Benchmarks
// ============================================================================

// BenchmarkCleanCell benchmarks cell cleaning with various inputs.
func BenchmarkCleanCell(b *testing.B) {
	testCases := []string{
		"normal value",
		"  padded  ",
		`="excel formula"`,
		`"quoted"`,
		"=12.5",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			CleanCell(tc)
		}
	}
}

// ============================================================================
// Reading Benchmarks
// ============================================================================

// BenchmarkReadTable benchmarks parsing an upload into a Table.
func BenchmarkReadTable(b *testing.B) {
	for _, rows := range []int{100, 1000} {
		data := generateTestCSV(rows)
		b.Run(fmt.Sprintf("rows_%d", rows), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := ReadTable(bytes.NewReader(data), ReadOptions{}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkDetectDelimiter benchmarks delimiter sniffing on a file head.
func BenchmarkDetectDelimiter(b *testing.B) {
	data := generateTestCSV(50)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DetectDelimiter(data)
	}
}

// BenchmarkWrapForReading_Latin1 benchmarks the decoding reader chain.
func BenchmarkWrapForReading_Latin1(b *testing.B) {
	data := bytes.Repeat([]byte("St\xe9 A,10.5,\xb0C\n"), 1000)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r, err := WrapForReading(bytes.NewReader(data), "latin1", 0)
		if err != nil {
			b.Fatal(err)
		}
		io.Copy(io.Discard, r)
	}
}

// ============================================================================
// Validation and History Benchmarks
// ============================================================================

// BenchmarkValidateTable benchmarks typed-cell validation before publish.
func BenchmarkValidateTable(b *testing.B) {
	t, err := ReadTable(bytes.NewReader(generateTestCSV(1000)), ReadOptions{})
	if err != nil {
		b.Fatal(err)
	}
	t.Kinds = []Kind{KindString, KindDatetime, KindFloat, KindFloat, KindBool}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ValidateTable(t, 0)
	}
}

// BenchmarkTableClone benchmarks the snapshot taken on every commit.
func BenchmarkTableClone(b *testing.B) {
	t, err := ReadTable(bytes.NewReader(generateTestCSV(1000)), ReadOptions{})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		t.Clone()
	}
}

// ============================================================================
// Parallel Benchmarks
// ============================================================================

// BenchmarkParseDateTimeParallel benchmarks parallel date parsing.
func BenchmarkParseDateTimeParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			ParseDateTime("2024-01-15 13:45", false)
		}
	})
}

// BenchmarkCleanCellParallel benchmarks parallel cell cleaning.
func BenchmarkCleanCellParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			CleanCell(`="formula value"`)
		}
	})
}

// ============================================================================
// Helper Functions
// ============================================================================

// generateTestCSV generates CTD-like CSV data with the specified number of rows.
func generateTestCSV(rows int) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	// Header
	w.Write([]string{"Station", "Date", "Depth (m)", "Temp (C)", "QC"})

	// Data rows
	for i := 0; i < rows; i++ {
		w.Write([]string{
			fmt.Sprintf("ST%03d", i%40),
			"2024-01-15 13:45",
			fmt.Sprintf("%d.5", i%200),
			"10.25",
			"true",
		})
	}
	w.Flush()

	return buf.Bytes()
}
