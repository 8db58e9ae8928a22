package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedInput = errors.New("malformed input")
	ErrExtraction     = errors.New("extraction failure")
	ErrRemoteService  = errors.New("remote service error")
	ErrPersistence    = errors.New("persistence error")
	ErrValidation     = errors.New("validation error")
	ErrConfiguration  = errors.New("configuration error")
	ErrNotFound       = errors.New("not found")
	ErrTimeout        = errors.New("timeout")
	ErrTransient      = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind names the error class of err for API payloads and log fields.
// Unclassified errors report "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, ErrExtraction):
		return "extraction_failure"
	case errors.Is(err, ErrRemoteService):
		return "remote_service"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "internal"
	}
}

// Recoverable reports whether the user can act on err without operator help:
// fix the input, retry later, or continue with non-durable state.
func Recoverable(err error) bool {
	switch {
	case errors.Is(err, ErrMalformedInput),
		errors.Is(err, ErrExtraction),
		errors.Is(err, ErrRemoteService),
		errors.Is(err, ErrPersistence),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrTransient):
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
