// Package irrecoverable marks errors that mean internal state can no longer
// be trusted, as opposed to sentinel errors describing bad input.
package irrecoverable

import (
	"errors"
	"fmt"
)

// exception marks an error that indicates corrupted internal state rather
// than bad input. Callers must not treat it as a benign sentinel.
type exception struct {
	err error
}

func (e exception) Error() string { return e.err.Error() }
func (e exception) Unwrap() error { return e.err }

// NewException wraps err as an irrecoverable exception.
func NewException(err error) error {
	return exception{err: err}
}

// NewExceptionf formats an irrecoverable exception.
func NewExceptionf(msg string, args ...interface{}) error {
	return NewException(fmt.Errorf(msg, args...))
}

// IsException returns whether err is, or wraps, an irrecoverable exception.
func IsException(err error) bool {
	var e exception
	return errors.As(err, &e)
}
