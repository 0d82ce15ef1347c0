package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/johnwards/insights/internal/domain"
	"github.com/johnwards/insights/internal/schedule"
)

// Error categories.
const (
	CategoryValidationError = "VALIDATION_ERROR"
	CategoryObjectNotFound  = "OBJECT_NOT_FOUND"
	CategoryConflict        = "CONFLICT"
	CategoryExecutionError  = "EXECUTION_ERROR"
	CategoryInternalError   = "INTERNAL_ERROR"
)

// Error is the JSON error envelope.
type Error struct {
	Status        string        `json:"status"`
	Message       string        `json:"message"`
	CorrelationID string        `json:"correlationId"`
	Category      string        `json:"category"`
	Errors        []ErrorDetail `json:"errors,omitempty"`
}

// ErrorDetail points at a single offending input.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	In      string `json:"in,omitempty"`
}

func newError(category, message, correlationID string) *Error {
	return &Error{Status: "error", Message: message, CorrelationID: correlationID, Category: category}
}

// NewNotFoundError creates a 404 error with the OBJECT_NOT_FOUND category.
func NewNotFoundError(message, correlationID string) *Error {
	return newError(CategoryObjectNotFound, message, correlationID)
}

// NewValidationError creates a 400 error with the VALIDATION_ERROR category.
func NewValidationError(message, correlationID string, details []ErrorDetail) *Error {
	e := newError(CategoryValidationError, message, correlationID)
	e.Errors = details
	return e
}

// NewConflictError creates a 409 error with the CONFLICT category.
func NewConflictError(message, correlationID string) *Error {
	return newError(CategoryConflict, message, correlationID)
}

// NewExecutionError creates an EXECUTION_ERROR envelope.
func NewExecutionError(message, correlationID string) *Error {
	return newError(CategoryExecutionError, message, correlationID)
}

// WriteError writes an Error as a JSON response with the given HTTP status code.
func WriteError(w http.ResponseWriter, statusCode int, apiErr *Error) {
	WriteJSON(w, statusCode, apiErr)
}

// WriteDomainError maps err onto a status code and envelope:
//
//	ValidationError, CronError           400 VALIDATION_ERROR
//	NotFoundError                        404 OBJECT_NOT_FOUND
//	ConflictError                        409 CONFLICT
//	ExecutionError wrapping a validation 422 EXECUTION_ERROR
//	other ExecutionError                 502 EXECUTION_ERROR
//	anything else                        500 INTERNAL_ERROR
//
// Execution errors are checked first so a parameter problem is not reported
// as a malformed request.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	corrID := CorrelationID(r.Context())

	var (
		ee *domain.ExecutionError
		ve *domain.ValidationError
		ce *schedule.CronError
	)
	switch {
	case errors.As(err, &ee) && errors.As(err, &ve):
		e := NewExecutionError(err.Error(), corrID)
		e.Errors = []ErrorDetail{{Message: ve.Message, Code: "INVALID_PARAMETER", In: ve.Field}}
		WriteError(w, http.StatusUnprocessableEntity, e)
	case errors.As(err, &ee) && errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, NewNotFoundError(err.Error(), corrID))
	case errors.As(err, &ee):
		slog.Error("execution failed", "op", ee.Op, "error", ee.Err, "correlation_id", corrID)
		WriteError(w, http.StatusBadGateway, NewExecutionError(err.Error(), corrID))
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, NewValidationError(err.Error(), corrID,
			[]ErrorDetail{{Message: ve.Message, Code: "INVALID", In: ve.Field}}))
	case errors.As(err, &ce):
		WriteError(w, http.StatusBadRequest, NewValidationError(err.Error(), corrID,
			[]ErrorDetail{{Message: ce.Reason, Code: "INVALID_CRON", In: ce.Field}}))
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, NewNotFoundError(err.Error(), corrID))
	case errors.Is(err, domain.ErrConflict):
		WriteError(w, http.StatusConflict, NewConflictError(err.Error(), corrID))
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err, "correlation_id", corrID)
		WriteError(w, http.StatusInternalServerError, newError(CategoryInternalError, "Internal Server Error", corrID))
	}
}
