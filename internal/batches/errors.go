package batches

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrAlreadyFinished       = errors.New("batch already finished")
	ErrJobQueueNotConfigured = errors.New("job queue not configured")
)

const (
	ErrorCodeValidation = "validation_error"
	ErrorCodeNotFound   = "not_found"
	ErrorCodeInternal   = "internal_error"
)

// ValidationError reports a rejected submission. Field names the offending
// part of the request body.
type ValidationError struct {
	Field string
	Issue string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Issue
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Issue)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Issue: fmt.Sprintf(format, args...)}
}
