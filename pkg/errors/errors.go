package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the synchronization and search pipeline.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")

	// ErrConflict marks a constraint violation on a single record. It is
	// isolated to that record and never fatal for a batch.
	ErrConflict = errors.New("persistence conflict")

	// ErrTransientFetch marks a retryable source failure (network timeout, 5xx).
	ErrTransientFetch = errors.New("transient fetch error")

	// ErrTerminalFetch marks a non-retryable source failure (4xx, malformed
	// payload shape).
	ErrTerminalFetch = errors.New("terminal fetch error")

	// ErrSearchUnavailable marks an unreachable or timed-out search backend.
	// It triggers the relational fallback path and is never surfaced to
	// callers as a failure.
	ErrSearchUnavailable = errors.New("search backend unavailable")

	// ErrConfiguration marks missing or invalid startup configuration.
	// Fatal at startup, never raised at request time.
	ErrConfiguration = errors.New("configuration error")
)

// AppError is a structured application error with an HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Conflict creates a 409 error for a single-record constraint violation.
func Conflict(resource, field, value string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// TransientFetch wraps a retryable source failure.
func TransientFetch(err error) *AppError {
	return &AppError{
		Code:    "TRANSIENT_FETCH",
		Message: "catalog source temporarily unavailable",
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%w: %w", ErrTransientFetch, err),
	}
}

// TerminalFetch wraps a non-retryable source failure.
func TerminalFetch(message string) *AppError {
	return &AppError{
		Code:    "TERMINAL_FETCH",
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     ErrTerminalFetch,
	}
}

// SearchUnavailable wraps a search backend failure that should degrade, not fail.
func SearchUnavailable(err error) *AppError {
	return &AppError{
		Code:    "SEARCH_UNAVAILABLE",
		Message: "search backend unavailable",
		Status:  http.StatusServiceUnavailable,
		Err:     fmt.Errorf("%w: %w", ErrSearchUnavailable, err),
	}
}

// Configuration creates a fatal startup configuration error.
func Configuration(message string) *AppError {
	return &AppError{
		Code:    "CONFIGURATION_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     ErrConfiguration,
	}
}

// Wrap adds context to an error while preserving its identity.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus maps an error to an HTTP status code.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrSearchUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTransientFetch), errors.Is(err, ErrTerminalFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
