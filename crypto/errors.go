package crypto

import (
	"errors"
	"fmt"
)

// invalidInputsError is returned when an encoded key, scalar or commitment is
// not a valid element.
type invalidInputsError struct {
	error
}

func (e invalidInputsError) Unwrap() error {
	return e.error
}

func newInvalidInputsErrorf(msg string, args ...interface{}) error {
	return invalidInputsError{fmt.Errorf(msg, args...)}
}

// IsInvalidInputsError returns true if err was caused by invalid encoded input.
func IsInvalidInputsError(err error) bool {
	var target invalidInputsError
	return errors.As(err, &target)
}
