// Package service implements the reservation domain: availability
// scanning, conflict validation and the reservation lifecycle. It is
// transport-agnostic; handlers translate its errors into HTTP codes.
package service

import (
	"errors"
	"fmt"
)

// ErrForbidden is returned when the caller's role does not permit the
// requested action. Handlers should translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound is returned by store lookups when no reservation with
// the given id exists. Handlers should translate this into HTTP 404;
// bulk confirm collects it per id instead.
var ErrNotFound = errors.New("reservation does not exist")

// ValidationError reports a recoverable business-rule or input
// violation. The message is meant for the caller and may span several
// lines (capacity failures enumerate the remaining slots).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
