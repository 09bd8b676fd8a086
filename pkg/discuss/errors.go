package discuss

import (
	"errors"
	"fmt"
)

// Kind classifies orchestration errors for HTTP status mapping.
type Kind int8

const (
	// KindInvalidInput marks validation failures. Maps to 400.
	KindInvalidInput Kind = iota
	// KindModelFailure marks fatal model-invocation failures. Maps to 500.
	KindModelFailure
	// KindUnknown covers unclassified errors. Maps to 500.
	KindUnknown
)

// Error is a classified orchestration error. Only validation and model
// failures abort a turn; auxiliary failures are absorbed and never reach
// callers as errors.
type Error struct {
	Cause   error
	Message string
	Kind    Kind
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewInvalidInput creates a validation error.
func NewInvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// NewModelFailure creates a fatal model-invocation error wrapping the
// provider error detail.
func NewModelFailure(cause error, message string) *Error {
	return &Error{Kind: KindModelFailure, Cause: cause, Message: message}
}

// KindOf returns the classification of err, or KindUnknown for errors that
// did not come from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
