package core

import (
	"math"
	"strconv"
	"strings"
)

// missingMarkers are the literal cell values treated as missing. The set
// matches what spreadsheet exports and common dataframe tools write for
// "no value"; matching is exact and case-sensitive.
var missingMarkers = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// IsMissing reports whether a raw cell value denotes a missing value.
func IsMissing(raw string) bool {
	_, ok := missingMarkers[raw]
	return ok
}

// parseNumber parses a finite number, ignoring surrounding whitespace.
// Hex floats are rejected so that identifiers like "0x1p4" stay text.
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// InferColumn builds a typed column from raw strings.
//
// A column is numeric when every present value parses as a finite number.
// A column with no present values is numeric as well, so it carries no
// spurious text values.
func InferColumn(name string, raw []string) Column {
	numeric := true
	for _, s := range raw {
		if IsMissing(s) {
			continue
		}
		if _, ok := parseNumber(s); !ok {
			numeric = false
			break
		}
	}

	cells := make([]Cell, len(raw))
	for i, s := range raw {
		switch {
		case IsMissing(s):
			cells[i] = MissingCell()
		case numeric:
			v, _ := parseNumber(s)
			cells[i] = NumCell(v)
		default:
			cells[i] = TextCell(s)
		}
	}

	kind := KindText
	if numeric {
		kind = KindNumeric
	}
	return Column{Name: name, Kind: kind, Cells: cells}
}

// columnFromValues builds a column from evaluated values: nil is missing,
// float64 is a number, string is text. Mixed columns become text with
// numbers formatted.
func columnFromValues(name string, vals []any) Column {
	numeric := true
	for _, v := range vals {
		if v == nil {
			continue
		}
		if _, ok := v.(float64); !ok {
			numeric = false
			break
		}
	}

	cells := make([]Cell, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case nil:
			cells[i] = MissingCell()
		case float64:
			if numeric {
				cells[i] = NumCell(x)
			} else {
				cells[i] = TextCell(formatNumber(x))
			}
		case bool:
			cells[i] = TextCell(strconv.FormatBool(x))
		case string:
			cells[i] = TextCell(x)
		}
	}

	kind := KindText
	if numeric {
		kind = KindNumeric
	}
	return Column{Name: name, Kind: kind, Cells: cells}
}

// cellValue returns the cell as nil, float64 or string.
func cellValue(c Cell, k Kind) any {
	if c.Missing {
		return nil
	}
	if k == KindNumeric {
		return c.Num
	}
	return c.Text
}
