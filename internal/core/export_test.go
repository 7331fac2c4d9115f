package core

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	ds := mustDataset(t,
		num("n", 1, 2.5, nil),
		text("s", "plain", "has,comma", `quote "q"`),
	)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds))

	want := "n,s\n1,plain\n2.5,\"has,comma\"\n,\"quote \"\"q\"\"\"\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	ds := mustDataset(t,
		num("price", 0.1, 1e-7, 123456789.125, -3),
		text("name", "a\nb", " lead", "", "x"),
	)
	// Empty text reads back as missing.
	ds.Columns[1].Cells[2] = MissingCell()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds))

	back, err := ParseCSV(&buf)
	require.NoError(t, err)
	assert.True(t, back.Equal(ds))
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	ds := mustDataset(t,
		num("age", 25, 30, nil),
		text("city", "A", nil, "C"),
	)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, ds))

	back, err := ParseXLSX(&buf)
	require.NoError(t, err)
	assert.Equal(t, ds.Names(), back.Names())

	age, _ := back.Column("age")
	assert.Equal(t, KindNumeric, age.Kind)
	assert.Equal(t, []float64{25, 30}, age.Numbers())
	assert.True(t, age.Cells[2].Missing)

	city, _ := back.Column("city")
	assert.Equal(t, KindText, city.Kind)
	assert.True(t, city.Cells[1].Missing)
	assert.Equal(t, "C", city.Cells[2].Text)
}

func TestExport(t *testing.T) {
	ds := mustDataset(t, num("a", 1))

	var csvBuf bytes.Buffer
	require.NoError(t, Export(&csvBuf, ds, FormatCSV))
	assert.True(t, strings.HasPrefix(csvBuf.String(), "a\n"))

	var xlsxBuf bytes.Buffer
	require.NoError(t, Export(&xlsxBuf, ds, FormatXLSX))
	assert.True(t, bytes.HasPrefix(xlsxBuf.Bytes(), []byte("PK")), "xlsx is a zip archive")

	assert.Error(t, Export(&bytes.Buffer{}, ds, Format("json")))
}
