package failure

import (
	"errors"
	"fmt"
)

// Error is a classified failure. Message is safe to show to the caller, Details carries
// the raw cause text and is only meant for privileged or debug output.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Details string
	Err     error
}

// New creates an Error of the given kind without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Status:  kind.Status(),
	}
}

// Wrap creates an Error of the given kind that wraps cause. The cause text becomes the details.
func Wrap(kind Kind, message string, cause error) *Error {
	e := New(kind, message)
	if cause != nil {
		e.Err = cause
		e.Details = cause.Error()
	}
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the controller may start another attempt for this failure.
func (e *Error) Retryable() bool {
	return e != nil && e.Kind.Retryable()
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
