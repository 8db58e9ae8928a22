package extract

import (
	"github.com/dharter89/GAAP/internal/prompt"
	"github.com/dharter89/GAAP/internal/services"
)

// Error reports a response that could not be parsed at all. It is distinct
// from a response that parsed and listed no violations.
type Error struct {
	Mode   prompt.Mode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := "extract " + string(e.Mode) + " response: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches services.ErrExtraction.
func (e *Error) Is(target error) bool {
	return target == services.ErrExtraction
}
