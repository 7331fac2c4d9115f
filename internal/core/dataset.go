package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the inferred value kind shared by every cell of a column.
type Kind int

const (
	KindText Kind = iota
	KindNumeric
)

// String returns the lowercase kind name used in previews and JSON.
func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Cell is a single value. Num is meaningful in numeric columns and Text in
// text columns; both are zero when Missing is set.
type Cell struct {
	Text    string
	Num     float64
	Missing bool
}

// TextCell returns a present text cell.
func TextCell(s string) Cell { return Cell{Text: s} }

// NumCell returns a present numeric cell.
func NumCell(v float64) Cell { return Cell{Num: v} }

// MissingCell returns an empty cell.
func MissingCell() Cell { return Cell{Missing: true} }

// Format renders the cell for display and export. Missing cells render as
// the empty string; numbers use the shortest representation that parses
// back to the same value.
func (c Cell) Format(k Kind) string {
	if c.Missing {
		return ""
	}
	if k == KindNumeric {
		return formatNumber(c.Num)
	}
	return c.Text
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Column is a named, kinded sequence of cells.
type Column struct {
	Name  string
	Kind  Kind
	Cells []Cell
}

// MissingCount returns the number of missing cells in the column.
func (c *Column) MissingCount() int {
	n := 0
	for _, cell := range c.Cells {
		if cell.Missing {
			n++
		}
	}
	return n
}

// Numbers returns the present values of a numeric column in row order.
func (c *Column) Numbers() []float64 {
	vals := make([]float64, 0, len(c.Cells))
	for _, cell := range c.Cells {
		if !cell.Missing {
			vals = append(vals, cell.Num)
		}
	}
	return vals
}

func (c *Column) clone() Column {
	cells := make([]Cell, len(c.Cells))
	copy(cells, c.Cells)
	return Column{Name: c.Name, Kind: c.Kind, Cells: cells}
}

// Dataset is an ordered collection of equally long columns.
//
// Operations in this package never modify a Dataset they receive; anything
// that changes data works on a Clone and returns it.
type Dataset struct {
	Columns []Column
}

// NewDataset builds a dataset and checks that all columns share a row count.
func NewDataset(cols ...Column) (*Dataset, error) {
	ds := &Dataset{Columns: cols}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// NumRows returns the shared row count.
func (d *Dataset) NumRows() int {
	if len(d.Columns) == 0 {
		return 0
	}
	return len(d.Columns[0].Cells)
}

// NumCols returns the number of columns.
func (d *Dataset) NumCols() int {
	return len(d.Columns)
}

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (d *Dataset) Index(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named column.
func (d *Dataset) Column(name string) (*Column, bool) {
	i := d.Index(name)
	if i < 0 {
		return nil, false
	}
	return &d.Columns[i], true
}

// MissingCount returns the number of missing cells across all columns.
func (d *Dataset) MissingCount() int {
	n := 0
	for i := range d.Columns {
		n += d.Columns[i].MissingCount()
	}
	return n
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	cols := make([]Column, len(d.Columns))
	for i := range d.Columns {
		cols[i] = d.Columns[i].clone()
	}
	return &Dataset{Columns: cols}
}

// Validate reports a *DataError when the dataset is structurally unusable:
// ragged columns, unknown kinds, or non-finite numbers.
func (d *Dataset) Validate() error {
	rows := d.NumRows()
	for i := range d.Columns {
		col := &d.Columns[i]
		if len(col.Cells) != rows {
			return &DataError{
				Column: col.Name,
				Err:    fmt.Errorf("column has %d rows, dataset has %d", len(col.Cells), rows),
			}
		}
		switch col.Kind {
		case KindText:
		case KindNumeric:
			for r, cell := range col.Cells {
				if !cell.Missing && (math.IsNaN(cell.Num) || math.IsInf(cell.Num, 0)) {
					return &DataError{
						Column: col.Name,
						Err:    fmt.Errorf("non-finite value at row %d", r),
					}
				}
			}
		default:
			return &DataError{Column: col.Name, Err: fmt.Errorf("unsupported column kind %s", col.Kind)}
		}
	}
	return nil
}

// SelectRows returns a new dataset holding the given rows in the given order.
func (d *Dataset) SelectRows(rows []int) *Dataset {
	cols := make([]Column, len(d.Columns))
	for i := range d.Columns {
		src := &d.Columns[i]
		cells := make([]Cell, len(rows))
		for j, r := range rows {
			cells[j] = src.Cells[r]
		}
		cols[i] = Column{Name: src.Name, Kind: src.Kind, Cells: cells}
	}
	return &Dataset{Columns: cols}
}

// Head returns the first n rows.
func (d *Dataset) Head(n int) *Dataset {
	if n < 0 {
		n = 0
	}
	if n > d.NumRows() {
		n = d.NumRows()
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return d.SelectRows(rows)
}

// Record returns row r formatted as strings, one per column.
func (d *Dataset) Record(r int) []string {
	rec := make([]string, len(d.Columns))
	for i := range d.Columns {
		rec[i] = d.Columns[i].Cells[r].Format(d.Columns[i].Kind)
	}
	return rec
}

// Equal reports whether two datasets have the same columns, kinds and cells.
func (d *Dataset) Equal(other *Dataset) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.Columns) != len(other.Columns) || d.NumRows() != other.NumRows() {
		return false
	}
	for i := range d.Columns {
		a, b := &d.Columns[i], &other.Columns[i]
		if a.Name != b.Name || a.Kind != b.Kind || len(a.Cells) != len(b.Cells) {
			return false
		}
		for r := range a.Cells {
			if !cellsEqual(a.Cells[r], b.Cells[r], a.Kind) {
				return false
			}
		}
	}
	return true
}

func cellsEqual(a, b Cell, k Kind) bool {
	if a.Missing || b.Missing {
		return a.Missing == b.Missing
	}
	if k == KindNumeric {
		return a.Num == b.Num
	}
	return a.Text == b.Text
}

// rowKey encodes a full row so that two rows share a key exactly when every
// cell is equal. Each cell is length-prefixed to keep the encoding unambiguous.
func (d *Dataset) rowKey(r int, b *strings.Builder) string {
	b.Reset()
	for i := range d.Columns {
		cell := d.Columns[i].Cells[r]
		if cell.Missing {
			b.WriteString("-1:")
			continue
		}
		s := cell.Format(d.Columns[i].Kind)
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	return b.String()
}
