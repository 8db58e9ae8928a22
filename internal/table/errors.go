package table

import (
	"github.com/dharter89/GAAP/internal/services"
)

// MalformedInputError reports input that cannot be read as a table. No
// partial table accompanies it.
type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	msg := "malformed input"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// Is matches services.ErrMalformedInput so callers can classify without the
// concrete type.
func (e *MalformedInputError) Is(target error) bool {
	return target == services.ErrMalformedInput
}

// Malformed wraps err as a MalformedInputError.
func Malformed(reason string, err error) error {
	return &MalformedInputError{Reason: reason, Err: err}
}
