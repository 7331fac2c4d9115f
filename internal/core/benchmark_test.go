package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"testing"
)

// ============================================================================
// Ingestion Benchmarks
// ============================================================================

// BenchmarkParseCSV benchmarks parsing plus type inference.
func BenchmarkParseCSV(b *testing.B) {
	data := generateTestCSV(100)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseCSV(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkParseCSV_Large benchmarks parsing a larger CSV.
func BenchmarkParseCSV_Large(b *testing.B) {
	data := generateTestCSV(10000)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseCSV(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkNormalizeText benchmarks BOM skipping and UTF-8 repair on 10KB.
func BenchmarkNormalizeText(b *testing.B) {
	data := append([]byte("\xef\xbb\xbf"), bytes.Repeat([]byte("Valid UTF-8 line with numbers 12345\n"), 300)...)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = io.Copy(io.Discard, normalizeText(bytes.NewReader(data)))
	}
}

// BenchmarkInferColumn benchmarks kind inference on a mixed column.
func BenchmarkInferColumn(b *testing.B) {
	raw := make([]string, 1000)
	for i := range raw {
		switch i % 10 {
		case 0:
			raw[i] = ""
		case 1:
			raw[i] = "NA"
		default:
			raw[i] = strconv.Itoa(i * 7)
		}
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		InferColumn("amount", raw)
	}
}

// ============================================================================
// Cleaning Benchmarks
// ============================================================================

// BenchmarkClean benchmarks the full automatic pipeline.
func BenchmarkClean(b *testing.B) {
	ds, err := ParseCSV(bytes.NewReader(generateTestCSV(1000)))
	if err != nil {
		b.Fatal(err)
	}
	c := NewCleaner(DefaultCleanerOptions())

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := c.Clean(ds); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDropDuplicates benchmarks row hashing on a dataset that is half
// duplicates.
func BenchmarkDropDuplicates(b *testing.B) {
	ds, err := ParseCSV(bytes.NewReader(generateTestCSV(2000)))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		dropDuplicates(ds)
	}
}

// BenchmarkQuantile compares the quantile methods on 10k sorted values.
func BenchmarkQuantile(b *testing.B) {
	sorted := make([]float64, 10000)
	for i := range sorted {
		sorted[i] = float64(i)
	}

	for _, m := range []QuantileMethod{QuantileLinear, QuantileEmpirical, QuantileNearest} {
		b.Run(string(m), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = Quantile(m, sorted, 0.25)
			}
		})
	}
}

// ============================================================================
// Transformation and Export Benchmarks
// ============================================================================

// BenchmarkTransform benchmarks a filter and a computed column.
func BenchmarkTransform(b *testing.B) {
	ds, err := ParseCSV(bytes.NewReader(generateTestCSV(1000)))
	if err != nil {
		b.Fatal(err)
	}
	tr, err := NewTransformer(NewCleaner(DefaultCleanerOptions()), ManualOptions{})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	program := "filter row.amount != null && row.amount > 100\nset doubled = row.amount * 2.0"

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := tr.Run(ctx, ds, program); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkWriteCSV benchmarks CSV export.
func BenchmarkWriteCSV(b *testing.B) {
	ds, err := ParseCSV(bytes.NewReader(generateTestCSV(1000)))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := WriteCSV(io.Discard, ds); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Parallel Benchmarks
// ============================================================================

// BenchmarkCleanParallel benchmarks concurrent cleaning of a shared input,
// as happens when several sessions clean the same upload.
func BenchmarkCleanParallel(b *testing.B) {
	ds, err := ParseCSV(bytes.NewReader(generateTestCSV(200)))
	if err != nil {
		b.Fatal(err)
	}
	c := NewCleaner(DefaultCleanerOptions())

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _, _ = c.Clean(ds)
		}
	})
}

// ============================================================================
// Helper Functions
// ============================================================================

// generateTestCSV generates rows where every other row repeats its
// predecessor, one in twenty amounts is missing and one in a hundred is an
// outlier.
func generateTestCSV(rows int) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write([]string{"id", "name", "city", "amount", "score"})

	for i := 0; i < rows; i++ {
		n := i - i%2
		amount := strconv.Itoa(100 + n%50)
		switch {
		case n%20 == 0:
			amount = ""
		case n%100 == 2:
			amount = "99999"
		}
		w.Write([]string{
			strconv.Itoa(n),
			"user" + strconv.Itoa(n),
			[]string{"NYC", "LA", "SF"}[n%3],
			amount,
			strconv.FormatFloat(float64(n%17)/3, 'f', 2, 64),
		})
	}
	w.Flush()

	return buf.Bytes()
}
