package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// ============================================================================
// Type inference
// ============================================================================

func TestIsMissing(t *testing.T) {
	for _, s := range []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "None", "<NA>", "#N/A", "-nan"} {
		assert.True(t, IsMissing(s), "%q should be missing", s)
	}
	for _, s := range []string{" ", "na", "none", "0", "missing", "Null"} {
		assert.False(t, IsMissing(s), "%q should be present", s)
	}
}

func TestInferColumn(t *testing.T) {
	tests := []struct {
		name     string
		raw      []string
		wantKind Kind
		missing  int
	}{
		{"integers", []string{"1", "2", "3"}, KindNumeric, 0},
		{"floats with blanks", []string{"1.5", "", " 2 ", "NA"}, KindNumeric, 2},
		{"exponent", []string{"1e3", "-2.5E-2"}, KindNumeric, 0},
		{"mixed is text", []string{"1", "two", "3"}, KindText, 0},
		{"hex stays text", []string{"0x10", "1"}, KindText, 0},
		{"infinity is text", []string{"inf", "1"}, KindText, 0},
		{"all missing is numeric", []string{"", "NA"}, KindNumeric, 2},
		{"empty column", nil, KindNumeric, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := InferColumn("c", tt.raw)
			assert.Equal(t, tt.wantKind, col.Kind)
			assert.Equal(t, tt.missing, col.MissingCount())
			assert.Len(t, col.Cells, len(tt.raw))
		})
	}
}

func TestInferColumn_Values(t *testing.T) {
	col := InferColumn("n", []string{" 42 ", "", "3.25"})
	require.Equal(t, KindNumeric, col.Kind)
	assert.Equal(t, 42.0, col.Cells[0].Num)
	assert.True(t, col.Cells[1].Missing)
	assert.Equal(t, 3.25, col.Cells[2].Num)

	text := InferColumn("t", []string{" a ", "b"})
	assert.Equal(t, " a ", text.Cells[0].Text, "text values are kept verbatim")
}

// ============================================================================
// CSV
// ============================================================================

func TestParseCSV(t *testing.T) {
	input := "age,city\n25,A\n30,A\n,B\n200,\n"
	ds, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "city"}, ds.Names())
	assert.Equal(t, 4, ds.NumRows())

	age, _ := ds.Column("age")
	city, _ := ds.Column("city")
	assert.Equal(t, KindNumeric, age.Kind)
	assert.Equal(t, KindText, city.Kind)
	assert.True(t, age.Cells[2].Missing)
	assert.True(t, city.Cells[3].Missing)
	assert.Equal(t, 2, ds.MissingCount())
}

func TestParseCSV_Quoting(t *testing.T) {
	input := "name,note\n\"Smith, J\",\"said \"\"hi\"\"\"\n"
	ds, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"Smith, J", `said "hi"`}, ds.Record(0))
}

func TestParseCSV_BOMAndInvalidUTF8(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("name\ncaf\xe9\n")...)
	ds, err := ParseCSV(bytes.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, ds.Names())
	assert.Equal(t, "caf?", ds.Record(0)[0])
}

func TestParseCSV_ShortRowsPadded(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader("a,b,c\n1\n2,x,y\n"))
	require.NoError(t, err)
	require.Equal(t, 2, ds.NumRows())

	b, _ := ds.Column("b")
	c, _ := ds.Column("c")
	assert.True(t, b.Cells[0].Missing)
	assert.True(t, c.Cells[0].Missing)
	assert.Equal(t, "x", b.Cells[1].Text)
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NumCols())
	assert.Equal(t, 0, ds.NumRows())
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrEmptyFile},
		{"long row", "a,b\n1,2,3\n", ErrInvalidCSV},
		{"bare quote", "a,b\n\"x,1\n", ErrInvalidCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input))
			require.Error(t, err)

			var ie *IngestionError
			assert.True(t, errors.As(err, &ie), "want *IngestionError, got %T", err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMangleHeaders(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"a", "b"}, []string{"a", "b"}},
		{[]string{"a", "a", "a"}, []string{"a", "a.1", "a.2"}},
		{[]string{"a", "a.1", "a"}, []string{"a", "a.1", "a.2"}},
		{[]string{"", "x", " "}, []string{"Unnamed: 0", "x", "Unnamed: 2"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mangleHeaders(tt.in))
	}
}

func TestReadDataset_WrapsSource(t *testing.T) {
	_, err := ReadDataset("upload.csv", strings.NewReader(""), FormatCSV)
	var ie *IngestionError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "upload.csv", ie.Source)
	assert.Contains(t, err.Error(), "upload.csv")
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatCSV, DetectFormat("data.csv", ""))
	assert.Equal(t, FormatXLSX, DetectFormat("DATA.XLSX", ""))
	assert.Equal(t, FormatXLSX, DetectFormat("download", xlsxContentType))
	assert.Equal(t, FormatCSV, DetectFormat("download", "text/csv; charset=utf-8"))
	assert.Equal(t, FormatCSV, DetectFormat("", "garbage;;"))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("parquet")
	assert.Error(t, err)
}

// ============================================================================
// XLSX
// ============================================================================

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"age", "city"},
		{25, "A"},
		{30.5, nil},
	})

	ds, err := ParseXLSX(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "city"}, ds.Names())
	require.Equal(t, 2, ds.NumRows())

	age, _ := ds.Column("age")
	assert.Equal(t, KindNumeric, age.Kind)
	assert.Equal(t, 30.5, age.Cells[1].Num)

	city, _ := ds.Column("city")
	assert.True(t, city.Cells[1].Missing)
}

func TestParseXLSX_WideRowWidensHeader(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"a"},
		{1, "extra"},
	})
	ds, err := ParseXLSX(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "Unnamed: 1"}, ds.Names())
}

func TestParseXLSX_Invalid(t *testing.T) {
	_, err := ParseXLSX(strings.NewReader("not a workbook"))
	assert.ErrorIs(t, err, ErrInvalidXLSX)
}
