package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// ValidationError reports a malformed input. Field names the offending field
// using its JSON path, e.g. "stages[1].body".
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid returns a ValidationError for field.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Is makes NotFoundError match ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports an id collision on create.
type ConflictError struct {
	Kind string
	ID   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.ID)
}

// Is makes ConflictError match ErrConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ExecutionError reports a failure while running a pipeline, report or
// schedule: a data fetch error or a parameter that could not be resolved.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
