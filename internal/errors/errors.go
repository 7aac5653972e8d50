package errors

import "fmt"

// ErrorCode represents a Lookout error code.
type ErrorCode string

const (
	ErrMalformedInput  ErrorCode = "MALFORMED_INPUT"   // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"         // 404
	ErrRequestTimeout  ErrorCode = "REQUEST_TIMEOUT"   // 408
	ErrPayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE" // 413
	ErrPersistence     ErrorCode = "PERSISTENCE"       // 500
	ErrInternal        ErrorCode = "INTERNAL"          // 500
)

// DashError represents a structured error with code, status, and details.
type DashError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *DashError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *DashError) Unwrap() error {
	return e.cause
}

// NewMalformedInput creates a 400 error for a body that could not be parsed
// into the expected shape. The parser message is passed through verbatim.
func NewMalformedInput(msg string) *DashError {
	return &DashError{
		Code:    ErrMalformedInput,
		Status:  400,
		Message: msg,
	}
}

// NewRequestNotFound creates a 404 error for an unknown request id.
func NewRequestNotFound(id int) *DashError {
	return &DashError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "Request not found",
		Details: map[string]any{"id": id},
	}
}

// NewRequestTimeout creates a 408 error when a body did not arrive in time.
func NewRequestTimeout() *DashError {
	return &DashError{
		Code:    ErrRequestTimeout,
		Status:  408,
		Message: "request body not received in time",
	}
}

// NewPayloadTooLarge creates a 413 error when a body exceeds the size limit.
func NewPayloadTooLarge(max int64) *DashError {
	return &DashError{
		Code:    ErrPayloadTooLarge,
		Status:  413,
		Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", max),
		Details: map[string]any{"max_bytes": max},
	}
}

// NewPersistence creates a 500 error for a failed durable write.
// The cause is kept for logging but not exposed in Message.
func NewPersistence(err error) *DashError {
	return &DashError{
		Code:    ErrPersistence,
		Status:  500,
		Message: "failed to persist tasks",
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *DashError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &DashError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is a DashError with the given code.
func Is(err error, code ErrorCode) bool {
	if dErr, ok := err.(*DashError); ok {
		return dErr.Code == code
	}
	return false
}
