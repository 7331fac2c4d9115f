package core

import (
	"github.com/montanaflynn/stats"
)

// DefaultPreviewRows is the number of rows shown before and after cleaning.
const DefaultPreviewRows = 5

// MissingMark stands in for a missing cell in preview rows. It cannot clash
// with a present value: "NaN" is itself read as missing and numeric cells
// are always finite.
const MissingMark = "NaN"

// ColumnProfile summarizes one column for display.
type ColumnProfile struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Missing  int      `json:"missing"`
	Distinct int      `json:"distinct"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Mean     *float64 `json:"mean,omitempty"`
	Median   *float64 `json:"median,omitempty"`
}

// Preview is the head of a dataset plus per-column profiles.
type Preview struct {
	Columns   []string        `json:"columns"`
	Rows      [][]string      `json:"rows"`
	TotalRows int             `json:"totalRows"`
	Profiles  []ColumnProfile `json:"profiles"`
}

// BuildPreview renders the first n rows of ds. A non-positive n uses
// DefaultPreviewRows.
func BuildPreview(ds *Dataset, n int) *Preview {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	head := ds.Head(n)

	p := &Preview{
		Columns:   ds.Names(),
		Rows:      make([][]string, head.NumRows()),
		TotalRows: ds.NumRows(),
		Profiles:  make([]ColumnProfile, ds.NumCols()),
	}
	for r := range p.Rows {
		p.Rows[r] = previewRecord(head, r)
	}
	for i := range ds.Columns {
		p.Profiles[i] = profileColumn(&ds.Columns[i])
	}
	return p
}

func previewRecord(ds *Dataset, r int) []string {
	rec := ds.Record(r)
	for i := range ds.Columns {
		if ds.Columns[i].Cells[r].Missing {
			rec[i] = MissingMark
		}
	}
	return rec
}

// ShownRows is the number of rows included in the preview.
func (p *Preview) ShownRows() int { return len(p.Rows) }

func profileColumn(col *Column) ColumnProfile {
	prof := ColumnProfile{
		Name:    col.Name,
		Kind:    col.Kind.String(),
		Missing: col.MissingCount(),
	}

	distinct := make(map[string]struct{})
	for _, cell := range col.Cells {
		if !cell.Missing {
			distinct[cell.Format(col.Kind)] = struct{}{}
		}
	}
	prof.Distinct = len(distinct)

	if col.Kind != KindNumeric {
		return prof
	}
	data := stats.Float64Data(col.Numbers())
	if data.Len() == 0 {
		return prof
	}
	if v, err := data.Min(); err == nil {
		prof.Min = &v
	}
	if v, err := data.Max(); err == nil {
		prof.Max = &v
	}
	if v, err := data.Mean(); err == nil {
		prof.Mean = &v
	}
	if v, err := data.Median(); err == nil {
		prof.Median = &v
	}
	return prof
}
