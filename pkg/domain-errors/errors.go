// Package domainerrors carries the error taxonomy shared by services and
// transports. Services return *Error values; transports map Code to a status.
//
// Stores should not construct these directly. They return sentinel errors from
// pkg/platform/sentinel and the owning service translates them.
package domainerrors

import (
	"errors"
	"maps"
)

// Code identifies a class of failure independent of transport.
type Code string

const (
	CodeInvalidInput         Code = "invalid_input"
	CodeValidation           Code = "validation_error"
	CodeBadRequest           Code = "bad_request"
	CodeUnauthorized         Code = "unauthorized"
	CodeForbidden            Code = "forbidden"
	CodeNotFound             Code = "not_found"
	CodeConflict             Code = "conflict"
	CodeUnsupportedMediaType Code = "unsupported_media_type"
	CodeEvidenceRequired     Code = "evidence_required"
	CodeEvidenceStale        Code = "evidence_stale"
	CodeInvariantViolation   Code = "invariant_violation"
	CodeTimeout              Code = "timeout"
	CodeInternal             Code = "internal_error"
)

// Error is a coded domain error. Details holds measured facts a client may
// need to explain the failure without another round trip.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// WithDetails returns a copy of e carrying the given details merged over any
// existing ones.
func (e *Error) WithDetails(details map[string]any) *Error {
	out := *e
	out.Details = make(map[string]any, len(e.Details)+len(details))
	maps.Copy(out.Details, e.Details)
	maps.Copy(out.Details, details)
	return &out
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// DetailsOf returns the details of the outermost *Error, if any.
func DetailsOf(err error) map[string]any {
	if de, ok := As(err); ok {
		return de.Details
	}
	return nil
}
