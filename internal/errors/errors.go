// Package errors defines the closed family of error kinds a scan can raise
// (spec §7): io_error, parse_error, compile_truncation,
// classifier_unavailable and config_invalid. Recoverable kinds are recorded
// as warnings and never unwrap into a scan-ending error; fatal kinds do.
package errors

import (
	"fmt"
	"time"
)

// Kind is the closed set of error kinds malwi can raise.
type Kind string

const (
	KindIOError               Kind = "io_error"
	KindUnsupportedExtension  Kind = "unsupported_extension"
	KindParseError            Kind = "parse_error"
	KindCompileTruncation     Kind = "compile_truncation"
	KindClassifierUnavailable Kind = "classifier_unavailable"
	KindConfigInvalid         Kind = "config_invalid"
)

// Recoverable reports whether an error of this kind should be recorded as a
// warning and allowed to continue the scan, rather than aborting it.
func (k Kind) Recoverable() bool {
	switch k {
	case KindParseError, KindCompileTruncation, KindUnsupportedExtension:
		return true
	default:
		return false
	}
}

// ScanError wraps an underlying error with the context needed to surface it
// as a report warning or a fatal scan failure: the kind, the operation that
// failed, the file it happened on and when.
type ScanError struct {
	Kind       Kind
	Operation  string
	FilePath   string
	Underlying error
	Timestamp  time.Time
}

// New creates a ScanError of the given kind for the named operation.
func New(kind Kind, op string, err error) *ScanError {
	return &ScanError{Kind: kind, Operation: op, Underlying: err, Timestamp: time.Now()}
}

// WithFile attaches the file path the error occurred on.
func (e *ScanError) WithFile(path string) *ScanError {
	e.FilePath = path
	return e
}

func (e *ScanError) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s: %s failed for %s: %v", e.Kind, e.Operation, e.FilePath, e.Underlying)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Kind, e.Operation, e.Underlying)
}

func (e *ScanError) Unwrap() error { return e.Underlying }

// Recoverable reports whether this error should be downgraded to a warning.
func (e *ScanError) Recoverable() bool { return e.Kind.Recoverable() }
