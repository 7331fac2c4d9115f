package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format identifies a tabular source encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ParseFormat accepts "csv" or "xlsx" (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// ContentType returns the MIME type used when serving the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return xlsxContentType
	}
	return "text/csv; charset=utf-8"
}

// DetectFormat picks a format from a file name and optional content type.
// Anything that is not recognisably a workbook is read as CSV.
func DetectFormat(name, contentType string) Format {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == xlsxContentType {
		return FormatXLSX
	}
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// ReadDataset parses r in the given format. Every failure is returned as an
// *IngestionError naming source.
func ReadDataset(source string, r io.Reader, format Format) (*Dataset, error) {
	var (
		ds  *Dataset
		err error
	)
	switch format {
	case FormatXLSX:
		ds, err = ParseXLSX(r)
	default:
		ds, err = ParseCSV(r)
	}
	if err != nil {
		var ie *IngestionError
		if errors.As(err, &ie) {
			if ie.Source == "" {
				ie.Source = source
			}
			return nil, ie
		}
		return nil, &IngestionError{Source: source, Err: err}
	}
	return ds, nil
}

// ParseCSV reads a comma-separated source whose first record is the header.
func ParseCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(normalizeText(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = false

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &IngestionError{Err: ErrEmptyFile}
	}
	if err != nil {
		return nil, csvError(err)
	}

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		if len(rec) > len(header) {
			line, _ := reader.FieldPos(0)
			return nil, &IngestionError{Err: fmt.Errorf("%w: line %d has %d fields, header has %d",
				ErrInvalidCSV, line, len(rec), len(header))}
		}
		rows = append(rows, rec)
	}

	return FromRecords(header, rows)
}

func csvError(err error) error {
	if errors.Is(err, ErrFileTooLarge) {
		return &IngestionError{Err: err}
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &IngestionError{Err: fmt.Errorf("%w: line %d: %v", ErrInvalidCSV, pe.Line, pe.Err)}
	}
	return &IngestionError{Err: fmt.Errorf("%w: %v", ErrInvalidCSV, err)}
}

// ParseXLSX reads the first worksheet of a workbook. The first row is the
// header; rows wider than the header widen it with unnamed columns.
func ParseXLSX(r io.Reader) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, &IngestionError{Err: err}
		}
		return nil, &IngestionError{Err: fmt.Errorf("%w: %v", ErrInvalidXLSX, err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &IngestionError{Err: fmt.Errorf("%w: workbook has no sheets", ErrInvalidXLSX)}
	}

	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &IngestionError{Err: fmt.Errorf("%w: %v", ErrInvalidXLSX, err)}
	}
	if len(all) == 0 {
		return nil, &IngestionError{Err: ErrEmptyFile}
	}

	header := all[0]
	rows := all[1:]
	width := len(header)
	for _, row := range rows {
		width = max(width, len(row))
	}
	for len(header) < width {
		header = append(header, "")
	}

	return FromRecords(header, rows)
}

// FromRecords builds a dataset from a header and string rows. Short rows are
// padded with missing cells. Column kinds are inferred per column.
func FromRecords(header []string, rows [][]string) (*Dataset, error) {
	if len(header) == 0 {
		return nil, &IngestionError{Err: ErrNoColumns}
	}

	names := mangleHeaders(header)
	cols := make([]Column, len(names))
	raw := make([]string, len(rows))
	for c, name := range names {
		for r, rec := range rows {
			if c < len(rec) {
				raw[r] = rec[c]
			} else {
				raw[r] = ""
			}
		}
		cols[c] = InferColumn(name, raw)
	}

	ds, err := NewDataset(cols...)
	if err != nil {
		return nil, &IngestionError{Err: err}
	}
	return ds, nil
}

// mangleHeaders makes column names unique and non-empty. Blank names become
// "Unnamed: i"; repeats get ".1", ".2" suffixes in order of appearance.
func mangleHeaders(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	suffix := make(map[string]int)
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if used[name] {
			base := name
			for used[name] {
				suffix[base]++
				name = base + "." + strconv.Itoa(suffix[base])
			}
		}
		used[name] = true
		names[i] = name
	}
	return names
}
