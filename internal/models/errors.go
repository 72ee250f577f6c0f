package models

import (
	"context"
	"errors"
)

// Error kinds. Lower layers wrap these with fmt.Errorf("...: %w", ...) so
// callers can test with errors.Is.
var (
	// ErrMalformedDocument means the bytes are not a UTF-8 JSON object of numbers.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrIO is a read, write or remove failure at the storage boundary.
	ErrIO = errors.New("i/o error")
	// ErrCancelled means a save, revert or backup observed cancellation
	// before it committed anything.
	ErrCancelled = errors.New("operation cancelled")
	// ErrDisposed is returned by every operation on a disposed document.
	ErrDisposed = errors.New("document disposed")
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

// Error constructors.
var (
	ErrNotFound = func(msg string) *AppError {
		return &AppError{Code: "NOT_FOUND", Message: msg, Status: 404}
	}
	ErrBadRequest = func(msg string) *AppError {
		return &AppError{Code: "BAD_REQUEST", Message: msg, Status: 400}
	}
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "authentication required", Status: 401}
	ErrInternal     = func(msg string) *AppError {
		return &AppError{Code: "INTERNAL", Message: msg, Status: 500}
	}
)

// ToAppError maps an error returned by the document layer to an AppError.
// AppErrors pass through unchanged.
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrMalformedDocument):
		return &AppError{Code: "MALFORMED_DOCUMENT", Message: err.Error(), Status: 422}
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &AppError{Code: "CANCELLED", Message: err.Error(), Status: 409}
	case errors.Is(err, ErrDisposed):
		return &AppError{Code: "DISPOSED", Message: err.Error(), Status: 410}
	case errors.Is(err, ErrIO):
		return &AppError{Code: "IO_ERROR", Message: err.Error(), Status: 500}
	}
	return ErrInternal(err.Error())
}
