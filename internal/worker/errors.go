package worker

import (
	"errors"
	"fmt"
)

// Kind classifies a failed request.
type Kind string

const (
	// KindInvalidArgument marks a payload that is malformed or out of range.
	KindInvalidArgument Kind = "InvalidArgument"

	// KindUnsupportedOperation marks an unknown operation name.
	KindUnsupportedOperation Kind = "UnsupportedOperation"

	// KindInternal marks a failure inside the worker itself.
	KindInternal Kind = "Internal"
)

// Error is the error part of a Result. Message is self-contained; Cause is
// kept for errors.Is inside the process and is not sent over the wire.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// InvalidArgument returns an error of kind KindInvalidArgument. The text of
// cause, if any, is appended to message.
func InvalidArgument(message string, cause error) *Error {
	if cause != nil {
		message += ": " + cause.Error()
	}
	return &Error{Kind: KindInvalidArgument, Message: message, Cause: cause}
}

// UnsupportedOperation returns an error of kind KindUnsupportedOperation.
func UnsupportedOperation(op Operation) *Error {
	return &Error{
		Kind:    KindUnsupportedOperation,
		Message: fmt.Sprintf("unsupported operation %q", op),
	}
}

func internalError(message string) *Error {
	return &Error{Kind: KindInternal, Message: message}
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var we *Error
	return errors.As(err, &we) && we.Kind == k
}
