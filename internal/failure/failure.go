// Package failure defines the structured error taxonomy shared by every stage
// of the ingestion pipeline.
//
// A failure carries a Kind (what went wrong, machine-readable), a Detail (the
// human-readable message) and optionally the underlying cause. Boundaries such
// as the HTTP server map Kinds to status codes; the core never formats
// "code|message" strings.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a class of ingestion failure.
type Kind string

const (
	// KindMissingFiles means fewer than two input files were supplied.
	KindMissingFiles Kind = "MISSING_FILES"
	// KindInvalidFileType means a file extension is not .xlsx, .xls or .csv.
	KindInvalidFileType Kind = "INVALID_FILE_TYPE"
	// KindRead means the file could not be opened or parsed as a spreadsheet.
	KindRead Kind = "READ_ERROR"
	// KindEmptyFile means the file has a header row but no data rows.
	KindEmptyFile Kind = "EMPTY_FILE"
	// KindUnrecognizedSchema means the headers match neither Zeus nor Elipse.
	KindUnrecognizedSchema Kind = "UNRECOGNIZED_SCHEMA"
	// KindMissingColumns means the schema was recognized but required columns are absent.
	KindMissingColumns Kind = "MISSING_COLUMNS"
	// KindSameSchema means both files of a submission routed to the same schema
	// while distinct schemas were required.
	KindSameSchema Kind = "SAME_SCHEMA"
	// KindPersistence means the storage backend rejected the insert.
	KindPersistence Kind = "DB_ERROR"
)

// Error is the concrete error type carried through the pipeline.
//
// Headers is populated for KindUnrecognizedSchema (the non-blank normalized
// headers that were found). Missing is populated for KindMissingColumns, in the
// order of the schema's required list.
type Error struct {
	Kind    Kind
	Detail  string
	Path    string
	Headers []string
	Missing []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a failure of the given kind with a formatted detail message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap returns a failure of the given kind that wraps err.
// Wrap(kind, nil, ...) returns nil so callers can wrap unconditionally.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// UnrecognizedSchema builds the failure returned when no schema matches.
func UnrecognizedSchema(headers []string) *Error {
	return &Error{
		Kind:    KindUnrecognizedSchema,
		Detail:  fmt.Sprintf("could not identify schema, headers found: %s", strings.Join(headers, ", ")),
		Headers: append([]string(nil), headers...),
	}
}

// MissingColumns builds the failure returned when required columns are absent.
func MissingColumns(schema string, missing []string) *Error {
	return &Error{
		Kind:    KindMissingColumns,
		Detail:  fmt.Sprintf("%s schema is missing required columns: %s", schema, strings.Join(missing, ", ")),
		Missing: append([]string(nil), missing...),
	}
}

// WithPath returns a copy of err annotated with the offending file path when
// err is a *Error; any other error is returned unchanged.
func WithPath(err error, path string) error {
	var fe *Error
	if !errors.As(err, &fe) {
		return err
	}
	cp := *fe
	cp.Path = path
	return &cp
}

// KindOf extracts the failure kind from err, looking through wrapping.
// It returns "" when err is nil or carries no *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// As is a shorthand for errors.As with a *Error target.
func As(err error) (*Error, bool) {
	var fe *Error
	ok := errors.As(err, &fe)
	return fe, ok
}

// IsValidation reports whether err describes bad file content, as opposed to
// bad request input or an infrastructure problem.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindRead, KindEmptyFile, KindUnrecognizedSchema, KindMissingColumns, KindSameSchema:
		return true
	}
	return false
}
