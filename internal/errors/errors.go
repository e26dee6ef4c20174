package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Sift error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrMalformedVector  ErrorCode = "MALFORMED_VECTOR"  // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound     ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrInsufficientData ErrorCode = "INSUFFICIENT_DATA" // 422
	ErrCancelled        ErrorCode = "CANCELLED"         // 499
	ErrCorruptStore     ErrorCode = "CORRUPT_STORE"     // 500
	ErrInternal         ErrorCode = "INTERNAL"          // 500
	ErrModelUnavailable ErrorCode = "MODEL_UNAVAILABLE" // 503
)

// SiftError represents a structured error with code, status, and details.
type SiftError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// cause is the underlying error, if any. It is never rendered to callers
	// of the MCP surface but is reachable through errors.Unwrap.
	cause error
}

// Error implements the error interface.
func (e *SiftError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *SiftError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *SiftError {
	return &SiftError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewMalformedVector creates a 400 error for vectors that cannot enter the memory store.
func NewMalformedVector(msg string, details map[string]any) *SiftError {
	return &SiftError{
		Code:    ErrMalformedVector,
		Status:  400,
		Message: msg,
		Details: details,
	}
}

// NewNotFound creates a 404 error for a missing logical item.
func NewNotFound(identifier string) *SiftError {
	return &SiftError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing file.
func NewFileNotFound(path string) *SiftError {
	return &SiftError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewInsufficientData creates a 422 error when there is not enough labeled data to train.
func NewInsufficientData(have, want int) *SiftError {
	return &SiftError{
		Code:    ErrInsufficientData,
		Status:  422,
		Message: fmt.Sprintf("not enough labeled examples to train: have %d, need %d", have, want),
		Details: map[string]any{"have": have, "want": want},
	}
}

// NewCancelled creates a 499 error for an operation interrupted by its context.
func NewCancelled(op string) *SiftError {
	return &SiftError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewCorruptStore creates a 500 error for on-disk state that failed to decode.
// The store is never replaced by an empty one when this is returned.
func NewCorruptStore(path string, err error) *SiftError {
	msg := fmt.Sprintf("corrupt store %s", path)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &SiftError{
		Code:    ErrCorruptStore,
		Status:  500,
		Message: msg,
		Details: map[string]any{"path": path},
		cause:   err,
	}
}

// NewModelUnavailable creates a 503 error when no trained classifier exists.
func NewModelUnavailable(path string) *SiftError {
	return &SiftError{
		Code:    ErrModelUnavailable,
		Status:  503,
		Message: fmt.Sprintf("no trained model at %s; run `sift train` first", path),
		Details: map[string]any{"path": path},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details for logging.
func NewInternal(err error) *SiftError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &SiftError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		cause:   err,
	}
}

// Is checks if err (or anything it wraps) is a SiftError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *SiftError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// As returns the SiftError wrapped by err, if any.
func As(err error) (*SiftError, bool) {
	var sErr *SiftError
	if stderrors.As(err, &sErr) {
		return sErr, true
	}
	return nil, false
}
