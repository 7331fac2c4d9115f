package core

import (
	"encoding/json"
	"strings"
)

// SuccessMarker prefixes every cleaning summary.
const SuccessMarker = "✅ Cleaning Completed: "

// Step names, in the order the Cleaner runs them.
const (
	StepMissing    = "missing"
	StepDuplicates = "duplicates"
	StepOutliers   = "outliers"
)

// Step is one cleaning action and the number of items it affected.
type Step struct {
	Name  string `json:"name"`
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// Report describes what a cleaning pass did. It is immutable once built.
type Report struct {
	steps      []Step
	rowsBefore int
	rowsAfter  int
}

func newReport(rowsBefore, rowsAfter int, steps ...Step) *Report {
	return &Report{steps: steps, rowsBefore: rowsBefore, rowsAfter: rowsAfter}
}

// Steps returns a copy of the steps in execution order.
func (r *Report) Steps() []Step {
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

func (r *Report) count(name string) int {
	for _, s := range r.steps {
		if s.Name == name {
			return s.Count
		}
	}
	return 0
}

// MissingHandled is the number of missing cells found before imputation.
func (r *Report) MissingHandled() int { return r.count(StepMissing) }

// DuplicatesRemoved is the number of duplicate rows dropped.
func (r *Report) DuplicatesRemoved() int { return r.count(StepDuplicates) }

// OutliersRemoved is the number of rows dropped by the IQR filter.
func (r *Report) OutliersRemoved() int { return r.count(StepOutliers) }

func (r *Report) RowsBefore() int { return r.rowsBefore }
func (r *Report) RowsAfter() int  { return r.rowsAfter }

// Summary joins the step texts behind SuccessMarker.
func (r *Report) Summary() string {
	texts := make([]string, len(r.steps))
	for i, s := range r.steps {
		texts[i] = s.Text
	}
	return SuccessMarker + strings.Join(texts, ", ")
}

func (r *Report) String() string { return r.Summary() }

// MarshalJSON exposes the report to API clients.
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Summary           string `json:"summary"`
		Steps             []Step `json:"steps"`
		MissingHandled    int    `json:"missing_handled"`
		DuplicatesRemoved int    `json:"duplicates_removed"`
		OutliersRemoved   int    `json:"outliers_removed"`
		RowsBefore        int    `json:"rows_before"`
		RowsAfter         int    `json:"rows_after"`
	}{
		Summary:           r.Summary(),
		Steps:             r.Steps(),
		MissingHandled:    r.MissingHandled(),
		DuplicatesRemoved: r.DuplicatesRemoved(),
		OutliersRemoved:   r.OutliersRemoved(),
		RowsBefore:        r.rowsBefore,
		RowsAfter:         r.rowsAfter,
	})
}
