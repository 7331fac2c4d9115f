package core

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// DownloadName is the file name offered for a cleaned dataset.
const DownloadName = "cleaned_data"

// Export writes ds to w in the given format.
func Export(w io.Writer, ds *Dataset, format Format) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, ds)
	case FormatCSV, "":
		return WriteCSV(w, ds)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteCSV writes a header row and one record per row. Missing cells are
// written empty.
func WriteCSV(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for r := 0; r < ds.NumRows(); r++ {
		if err := cw.Write(ds.Record(r)); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteXLSX writes ds to the first sheet of a new workbook. Numeric cells are
// stored as numbers so spreadsheets can compute on them.
func WriteXLSX(w io.Writer, ds *Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	header := make([]any, ds.NumCols())
	for i, name := range ds.Names() {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]any, ds.NumCols())
	for r := 0; r < ds.NumRows(); r++ {
		for c := range ds.Columns {
			col := &ds.Columns[c]
			row[c] = cellValue(col.Cells[r], col.Kind)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", r+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
