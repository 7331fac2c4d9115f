package core

// error_messages.go turns internal errors into messages a user can act on.
//
// # Error Codes Reference
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large. Action: use a smaller file.
//	FILE002 - Invalid CSV. Action: check quoting and column counts.
//	FILE003 - Unreadable workbook. Action: save as .xlsx or export to CSV.
//	FILE004 - No file. Action: choose a file or enter a URL.
//	FILE005 - Empty file. Action: use a file with a header row.
//	FILE006 - Unsupported export format. Action: choose csv or xlsx.
//
// # URL Errors (URL001-URL099)
//
//	URL001 - Unsupported URL. Action: use an http or https link.
//	URL002 - Unreachable. Action: check the link opens in a browser.
//	URL003 - Timed out. Action: try again or download and upload the file.
//	URL004 - Address not allowed. Action: use a publicly reachable link.
//
// # Data Errors (DATA001-DATA099)
//
//	DATA001 - Malformed column. Action: fix the column or drop it.
//	DATA002 - No dataset. Action: load a dataset first.
//
// # Manual Mode Errors (CODE001-CODE099)
//
//	CODE001 - Transformation failed. Action: fix the reported line.
//	CODE002 - Manual mode disabled. Action: use automatic cleaning.
//
// # Session and Capacity (SES001, JOB001, RATE001)
//
//	SES001  - Session expired. Action: reload the page.
//	JOB001  - Busy. Action: try again shortly.
//	RATE001 - Too many requests. Action: wait before retrying.
//
// # Default Error (ERR000)
//
//	ERR000 - Unexpected error. Action: try again; check logs for the cause.
//
// Typed errors are matched first with errors.Is / errors.As. Anything else
// falls back to case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgFileTooLarge = UserMessage{"File exceeds the maximum size", "Use a smaller file or remove unused columns", "FILE001"}
	msgInvalidCSV   = UserMessage{"File is not a valid CSV", "Check that quoted values are closed and rows have no extra columns", "FILE002"}
	msgInvalidXLSX  = UserMessage{"Workbook could not be read", "Save the file as .xlsx or export it to CSV", "FILE003"}
	msgNoFile       = UserMessage{"No file was selected", "Choose a CSV file or enter a URL", "FILE004"}
	msgEmptyFile    = UserMessage{"The file is empty", "Use a file with a header row", "FILE005"}
	msgBadFormat    = UserMessage{"Unsupported download format", "Choose csv or xlsx", "FILE006"}

	msgBadURL      = UserMessage{"URL is not supported", "Use an http:// or https:// link to a CSV file", "URL001"}
	msgUnreachable = UserMessage{"Could not download the file", "Check that the link opens in a browser", "URL002"}
	msgURLTimeout  = UserMessage{"The request timed out", "Try again, or download the file and upload it", "URL003"}
	msgBlockedURL  = UserMessage{"The URL points to a private or local address", "Use a publicly reachable link, or download the file and upload it", "URL004"}

	msgDataError = UserMessage{"A column could not be processed", "Fix or drop the column and try again", "DATA001"}
	msgNoDataset = UserMessage{"No dataset is loaded", "Load a file or URL first", "DATA002"}

	msgManualDisabled = UserMessage{"Manual mode is disabled", "Use automatic cleaning instead", "CODE002"}

	msgSession = UserMessage{"Your session has expired", "Reload the page and load the data again", "SES001"}
	msgBusy    = UserMessage{"The server is busy with other jobs", "Please wait a moment and try again", "JOB001"}
	msgRate    = UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}
)

// typedErrors are checked with errors.Is, in order.
var typedErrors = []struct {
	target error
	msg    UserMessage
}{
	{ErrFileTooLarge, msgFileTooLarge},
	{ErrInvalidCSV, msgInvalidCSV},
	{ErrInvalidXLSX, msgInvalidXLSX},
	{ErrNoSource, msgNoFile},
	{ErrEmptyFile, msgEmptyFile},
	{ErrNoColumns, msgEmptyFile},
	{context.DeadlineExceeded, msgURLTimeout},
	{ErrUnsupportedURL, msgBadURL},
	{ErrBlockedAddress, msgBlockedURL},
	{ErrUnreachable, msgUnreachable},
	{ErrNoDataset, msgNoDataset},
	{ErrManualModeDisabled, msgManualDisabled},
	{ErrSessionNotFound, msgSession},
	{ErrTooManyJobs, msgBusy},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that arrive without a typed cause, such as
// messages relayed from the HTTP client or the multipart reader.
var errorPatterns = []errorPattern{
	{"request body too large", msgFileTooLarge},
	{"file too large", msgFileTooLarge},
	{"invalid csv", msgInvalidCSV},
	{"no file provided", msgNoFile},
	{"empty file", msgEmptyFile},
	{"unsupported format", msgBadFormat},
	{"unsupported protocol scheme", msgBadURL},
	{"no such host", msgUnreachable},
	{"connection refused", msgUnreachable},
	{"client.timeout exceeded", msgURLTimeout},
	{"timeout", msgURLTimeout},
	{"rate limit", msgRate},
}

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check the logs for the technical error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserCodeError
	if errors.As(err, &ue) {
		return UserMessage{
			Message: fmt.Sprintf("Transformation failed on line %d", ue.Line),
			Action:  "Fix the statement and run again: " + ue.Err.Error(),
			Code:    "CODE001",
		}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return msgURLTimeout
	}

	for _, te := range typedErrors {
		if errors.Is(err, te.target) {
			return te.msg
		}
	}

	var de *DataError
	if errors.As(err, &de) {
		msg := msgDataError
		if de.Column != "" {
			msg.Message = fmt.Sprintf("Column %q could not be processed", de.Column)
		}
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
