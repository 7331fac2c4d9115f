package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"file too large", &IngestionError{Source: "a.csv", Err: fmt.Errorf("%w: more than 10 bytes", ErrFileTooLarge)}, "FILE001"},
		{"invalid csv", &IngestionError{Err: fmt.Errorf("%w: line 3", ErrInvalidCSV)}, "FILE002"},
		{"invalid xlsx", &IngestionError{Err: fmt.Errorf("%w: zip", ErrInvalidXLSX)}, "FILE003"},
		{"no file", ErrNoSource, "FILE004"},
		{"empty file", &IngestionError{Err: ErrEmptyFile}, "FILE005"},
		{"bad url", &IngestionError{Err: fmt.Errorf("%w: scheme \"ftp\"", ErrUnsupportedURL)}, "URL001"},
		{"unreachable", &IngestionError{Err: fmt.Errorf("%w: status 404", ErrUnreachable)}, "URL002"},
		{"blocked address", &IngestionError{Err: fmt.Errorf("%w: 127.0.0.1", ErrBlockedAddress)}, "URL004"},
		{"deadline", fmt.Errorf("%w: %w", ErrUnreachable, context.DeadlineExceeded), "URL003"},
		{"data error", &DataError{Column: "age", Err: errors.New("non-finite value")}, "DATA001"},
		{"no dataset", fmt.Errorf("clean: %w", ErrNoDataset), "DATA002"},
		{"user code", &UserCodeError{Line: 2, Statement: "filter x", Err: errors.New("bad")}, "CODE001"},
		{"manual disabled", ErrManualModeDisabled, "CODE002"},
		{"session", ErrSessionNotFound, "SES001"},
		{"busy", ErrTooManyJobs, "JOB001"},
		{"body too large pattern", errors.New("http: request body too large"), "FILE001"},
		{"format pattern", errors.New(`unsupported format "pdf"`), "FILE006"},
		{"rate limit pattern", errors.New("rate limit exceeded"), "RATE001"},
		{"case insensitive", errors.New("INVALID CSV somewhere"), "FILE002"},
		{"unknown", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Message == "" {
				t.Error("MapError() returned empty message")
			}
		})
	}
}

func TestMapError_Details(t *testing.T) {
	msg := MapError(&UserCodeError{Line: 7, Statement: "sort x", Err: errors.New(`unknown column "x"`)})
	if !strings.Contains(msg.Message, "line 7") {
		t.Errorf("message %q should name the line", msg.Message)
	}
	if !strings.Contains(msg.Action, `unknown column "x"`) {
		t.Errorf("action %q should carry the cause", msg.Action)
	}

	msg = MapError(&DataError{Column: "price", Err: errors.New("x")})
	if !strings.Contains(msg.Message, `"price"`) {
		t.Errorf("message %q should name the column", msg.Message)
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(ErrTooManyJobs)
	want := "The server is busy with other jobs (Code: JOB001). Please wait a moment and try again"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrEmptyFile, true},
		{errors.New("random"), false},
	}
	for _, tt := range tests {
		if got := IsUserFacing(tt.err); got != tt.want {
			t.Errorf("IsUserFacing(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
