package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/montanaflynn/stats"
)

// DefaultIQRMultiplier is the Tukey fence factor k in Q1 - k*IQR, Q3 + k*IQR.
const DefaultIQRMultiplier = 1.5

// CleanerOptions tunes the outlier filter. The zero value uses the defaults.
type CleanerOptions struct {
	QuantileMethod QuantileMethod
	IQRMultiplier  float64
}

// DefaultCleanerOptions returns linear quantiles with k = 1.5.
func DefaultCleanerOptions() CleanerOptions {
	return CleanerOptions{QuantileMethod: QuantileLinear, IQRMultiplier: DefaultIQRMultiplier}
}

// Cleaner runs the automatic cleaning pass: impute missing values, drop
// duplicate rows, then drop rows with IQR outliers. It holds no state
// between calls and is safe for concurrent use.
type Cleaner struct {
	method QuantileMethod
	k      float64
}

// NewCleaner creates a Cleaner. Unset options fall back to the defaults.
func NewCleaner(opts CleanerOptions) *Cleaner {
	c := &Cleaner{method: opts.QuantileMethod, k: opts.IQRMultiplier}
	if c.method == "" {
		c.method = QuantileLinear
	}
	if c.k <= 0 {
		c.k = DefaultIQRMultiplier
	}
	return c
}

// Clean returns a cleaned copy of ds and a report of what changed.
// ds is never modified.
func (c *Cleaner) Clean(ds *Dataset) (*Dataset, *Report, error) {
	if ds == nil {
		return nil, nil, &DataError{Err: errors.New("nil dataset")}
	}
	if ds.NumCols() == 0 {
		return nil, nil, &DataError{Err: ErrNoColumns}
	}
	if err := ds.Validate(); err != nil {
		return nil, nil, err
	}

	rowsBefore := ds.NumRows()
	work := ds.Clone()

	missing, err := imputeMissing(work)
	if err != nil {
		return nil, nil, err
	}

	work, dups := dropDuplicates(work)

	work, outliers, err := c.filterOutliers(work)
	if err != nil {
		return nil, nil, err
	}

	report := newReport(rowsBefore, work.NumRows(),
		Step{Name: StepMissing, Text: fmt.Sprintf("Handled %d missing values", missing), Count: missing},
		Step{Name: StepDuplicates, Text: fmt.Sprintf("Removed %d duplicates", dups), Count: dups},
		Step{Name: StepOutliers, Text: fmt.Sprintf("Handled %d outliers using IQR method", outliers), Count: outliers},
	)
	return work, report, nil
}

// imputeMissing fills missing cells in place and returns how many cells were
// missing beforehand. All-missing columns are left as they are.
func imputeMissing(ds *Dataset) (int, error) {
	total := ds.MissingCount()
	if total == 0 {
		return 0, nil
	}

	for i := range ds.Columns {
		col := &ds.Columns[i]
		n := col.MissingCount()
		if n == 0 || n == len(col.Cells) {
			continue
		}

		var fill Cell
		switch col.Kind {
		case KindNumeric:
			median, err := stats.Median(col.Numbers())
			if err != nil {
				return 0, &DataError{Column: col.Name, Err: fmt.Errorf("median: %w", err)}
			}
			fill = NumCell(median)
		case KindText:
			fill = TextCell(textMode(col))
		default:
			return 0, &DataError{Column: col.Name, Err: fmt.Errorf("unsupported column kind %s", col.Kind)}
		}

		for r := range col.Cells {
			if col.Cells[r].Missing {
				col.Cells[r] = fill
			}
		}
	}
	return total, nil
}

// textMode returns the most frequent present value; ties go to the value
// that sorts first.
func textMode(col *Column) string {
	counts := make(map[string]int)
	for _, cell := range col.Cells {
		if !cell.Missing {
			counts[cell.Text]++
		}
	}

	var (
		best      string
		bestCount int
	)
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}

// dropDuplicates keeps the first occurrence of each distinct row.
func dropDuplicates(ds *Dataset) (*Dataset, int) {
	rows := ds.NumRows()
	seen := make(map[string]struct{}, rows)
	keep := make([]int, 0, rows)

	var b strings.Builder
	for r := 0; r < rows; r++ {
		key := ds.rowKey(r, &b)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, r)
	}

	if len(keep) == rows {
		return ds, 0
	}
	return ds.SelectRows(keep), rows - len(keep)
}

type fence struct {
	col          int
	lower, upper float64
}

// filterOutliers drops every row with a numeric value strictly outside its
// column's fences. Missing cells never count as outliers.
func (c *Cleaner) filterOutliers(ds *Dataset) (*Dataset, int, error) {
	fences, err := c.fences(ds)
	if err != nil {
		return nil, 0, err
	}
	if len(fences) == 0 {
		return ds, 0, nil
	}

	rows := ds.NumRows()
	keep := make([]int, 0, rows)
	for r := 0; r < rows; r++ {
		if !outsideFences(ds, r, fences) {
			keep = append(keep, r)
		}
	}

	if len(keep) == rows {
		return ds, 0, nil
	}
	return ds.SelectRows(keep), rows - len(keep), nil
}

func (c *Cleaner) fences(ds *Dataset) ([]fence, error) {
	var out []fence
	for i := range ds.Columns {
		col := &ds.Columns[i]
		if col.Kind != KindNumeric {
			continue
		}
		vals := col.Numbers()
		if len(vals) == 0 {
			continue
		}
		slices.Sort(vals)

		q1, err := Quantile(c.method, vals, 0.25)
		if err != nil {
			return nil, &DataError{Column: col.Name, Err: fmt.Errorf("first quartile: %w", err)}
		}
		q3, err := Quantile(c.method, vals, 0.75)
		if err != nil {
			return nil, &DataError{Column: col.Name, Err: fmt.Errorf("third quartile: %w", err)}
		}

		iqr := q3 - q1
		out = append(out, fence{col: i, lower: q1 - c.k*iqr, upper: q3 + c.k*iqr})
	}
	return out, nil
}

func outsideFences(ds *Dataset, r int, fences []fence) bool {
	for _, f := range fences {
		cell := ds.Columns[f.col].Cells[r]
		if cell.Missing {
			continue
		}
		if cell.Num < f.lower || cell.Num > f.upper {
			return true
		}
	}
	return false
}
