package admission

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide whether retrying makes sense.
type Kind string

const (
	// KindValidation is a local, field scoped failure that never reached the network.
	KindValidation Kind = "VALIDATION"
	// KindTransport covers timeouts, unreachable hosts and server outages. Safe to retry.
	KindTransport Kind = "TRANSPORT"
	// KindRejected is a structured refusal from the server. Retrying the same input fails again.
	KindRejected Kind = "REJECTED"
	// KindUnknown is anything else.
	KindUnknown Kind = "UNKNOWN"
)

// Generic messages shown when the server gave nothing better.
const (
	MessageTryAgain = "We could not reach the admissions office. Please check your connection and try again."
	MessageUnknown  = "Something went wrong. Please try again later or contact the school office."
)

// Error is the only error type returned across the admission client boundary.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Fields  StageErrors
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether the same call may succeed if repeated unchanged.
func (e *Error) Retryable() bool {
	return e != nil && e.Kind == KindTransport
}

// NewValidationError wraps stage errors.
func NewValidationError(fields StageErrors) *Error {
	return &Error{Kind: KindValidation, Message: "Please correct the highlighted fields", Fields: fields}
}

// NewTransportError wraps a network level failure.
func NewTransportError(status int, err error) *Error {
	return &Error{Kind: KindTransport, Message: MessageTryAgain, Status: status, Err: err}
}

// NewRejectedError carries the server's message verbatim.
func NewRejectedError(status int, message string, fields StageErrors) *Error {
	if message == "" {
		message = "The admissions office rejected the request"
	}
	return &Error{Kind: KindRejected, Message: message, Status: status, Fields: fields}
}

// NewUnknownError wraps anything that could not be classified.
func NewUnknownError(status int, err error) *Error {
	return &Error{Kind: KindUnknown, Message: MessageUnknown, Status: status, Err: err}
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// AsError normalises err into an *Error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewUnknownError(0, err)
}
