package api

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrFormat means no importer matched or the file layout was unreadable. Aborts the file.
	ErrFormat = errors.New("unsupported bill format")
	// ErrFileSize means the file exceeds the configured ceiling. Aborts the file.
	ErrFileSize = errors.New("file too large")
	// ErrValidation means a row failed normalization. Row-scoped.
	ErrValidation = errors.New("invalid transaction")
	// ErrClassification means no account could be assigned. Aborts the rest of the file.
	ErrClassification = errors.New("classification failed")
	// ErrRateLimit marks a rate-limit response from the AI provider.
	ErrRateLimit = errors.New("rate limited")
)

// FormatError describes why a file could not be read as a bill.
type FormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both ErrFormat and the underlying cause.
func (e *FormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFormat, e.Err}
	}
	return []error{ErrFormat}
}

// NewFormatError returns a FormatError for path.
func NewFormatError(path, reason string, err error) *FormatError {
	return &FormatError{Path: path, Reason: reason, Err: err}
}

// ValidationError reports the first invariant a transaction violated.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Unwrap() error { return ErrValidation }
