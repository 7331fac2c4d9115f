package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match them with errors.Is; MapError turns them
// into user-facing messages.
var (
	ErrEmptyFile          = errors.New("empty file")
	ErrInvalidCSV         = errors.New("invalid csv")
	ErrInvalidXLSX        = errors.New("invalid xlsx")
	ErrNoColumns          = errors.New("dataset has no columns")
	ErrFileTooLarge       = errors.New("file too large")
	ErrUnsupportedURL     = errors.New("unsupported url")
	ErrUnreachable        = errors.New("source unreachable")
	ErrBlockedAddress     = errors.New("address not allowed")
	ErrNoSource           = errors.New("no file provided")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNoDataset          = errors.New("no dataset loaded")
	ErrManualModeDisabled = errors.New("manual mode disabled")
)

// IngestionError reports that a source could not be read as tabular data.
// The Cleaner never runs when loading fails.
type IngestionError struct {
	Source string
	Err    error
}

func (e *IngestionError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("load dataset: %v", e.Err)
	}
	return fmt.Sprintf("load dataset %q: %v", e.Source, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// DataError reports a column that cannot support a required operation,
// typically a malformed column that ingestion did not normalize.
type DataError struct {
	Column string
	Err    error
}

func (e *DataError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("data error: %v", e.Err)
	}
	return fmt.Sprintf("data error in column %q: %v", e.Column, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// UserCodeError reports a failing statement in a manual transformation
// program. Line is 1-based.
type UserCodeError struct {
	Line      int
	Statement string
	Err       error
}

func (e *UserCodeError) Error() string {
	return fmt.Sprintf("line %d (%s): %v", e.Line, e.Statement, e.Err)
}

func (e *UserCodeError) Unwrap() error { return e.Err }
