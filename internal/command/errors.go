package command

import (
	"errors"
	"fmt"
)

// RejectedError is a user-facing command rejection. It names the failing
// precondition and the offending value; it never indicates an internal
// failure.
type RejectedError struct {
	Reason string
}

// Error implements error.
func (e *RejectedError) Error() string {
	return e.Reason
}

// rejectf builds a RejectedError from a format string.
func rejectf(format string, args ...any) *RejectedError {
	return &RejectedError{Reason: fmt.Sprintf(format, args...)}
}

// IsRejected reports whether err is a command rejection, as opposed to an
// internal or infrastructure error.
func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}
