package services

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Sentinel errors. Every error returned by the engine wraps exactly one of
// these, so callers can branch with errors.Is.
var (
	ErrInvalidQuantity            = errors.New("invalid quantity")
	ErrReadOnlyField              = errors.New("field is read-only")
	ErrReadOnlyEntry              = errors.New("entry is read-only")
	ErrSheetNotFound              = errors.New("concentration sheet not found")
	ErrUnknownSectionNumber       = errors.New("unknown section number")
	ErrDuplicateOverride          = errors.New("override already exists for this revision and item")
	ErrConcurrentRevisionConflict = errors.New("concurrent revision conflict")
	ErrNoSheetsSelected           = errors.New("no sheets selected")
	ErrItemNotFound               = errors.New("boq item not found")
	ErrRevisionNotFound           = errors.New("revision not found")
	ErrEntryNotFound              = errors.New("concentration entry not found")
	ErrOverrideNotFound           = errors.New("override not found")
	ErrExportJobNotFound          = errors.New("export job not found")
	ErrInvalidColumn              = errors.New("invalid export column")
	ErrUnsupportedFormat          = errors.New("unsupported export format")
	ErrInvalidInput               = errors.New("invalid input")
)

// ErrorKind groups sentinels by how a caller should react.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindExport     ErrorKind = "export"
	KindInternal   ErrorKind = "internal"
)

// Error carries the operation and the record it concerns alongside one of
// the sentinel errors above.
type Error struct {
	Op    string // e.g. "SetOverride"
	ID    string // item, sheet, entry or revision id the error is about
	Field string // offending field, if any
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %q)", e.Field)
	}
	if e.ID != "" {
		fmt.Fprintf(&b, " [%s]", e.ID)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Kind classifies the wrapped sentinel.
func (e *Error) Kind() ErrorKind { return KindOf(e) }

// KindOf classifies any error produced by this package.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrReadOnlyField),
		errors.Is(err, ErrReadOnlyEntry),
		errors.Is(err, ErrInvalidColumn),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrSheetNotFound),
		errors.Is(err, ErrUnknownSectionNumber),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrRevisionNotFound),
		errors.Is(err, ErrEntryNotFound),
		errors.Is(err, ErrOverrideNotFound),
		errors.Is(err, ErrExportJobNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicateOverride),
		errors.Is(err, ErrConcurrentRevisionConflict):
		return KindConflict
	case errors.Is(err, ErrNoSheetsSelected):
		return KindExport
	}
	return KindInternal
}

func newError(op, id string, err error) *Error {
	return &Error{Op: op, ID: id, Err: err}
}

func fieldError(op, id, field string, err error) *Error {
	return &Error{Op: op, ID: id, Field: field, Err: err}
}

// isUniqueViolation reports whether err is a unique-index failure on one of
// fields. PocketBase normalizes SQLite constraint errors into validation
// errors with the "validation_not_unique" code.
func isUniqueViolation(err error, fields ...string) bool {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, f := range fields {
		var ve validation.Error
		if errors.As(verrs[f], &ve) && ve.Code() == "validation_not_unique" {
			return true
		}
	}
	return false
}
