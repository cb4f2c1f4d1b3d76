package negotiation

import (
	"errors"
	"fmt"
)

// ErrorKind classifies coordinator failures. Every failure crosses the
// coordinator boundary as an *Error; nothing panics through it.
type ErrorKind string

const (
	ErrSessionNotFound  ErrorKind = "session_not_found"
	ErrActionNotAgreed  ErrorKind = "action_not_agreed"
	ErrPermissionDenied ErrorKind = "permission_denied"
	ErrUnsafeContent    ErrorKind = "unsafe_action_content"
	ErrExecutorFailure  ErrorKind = "executor_failure"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// IsKind reports whether err is a negotiation Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ne *Error
	return errors.As(err, &ne) && ne.Kind == kind
}

// KindOf returns the error kind, or "" for non-negotiation errors.
func KindOf(err error) ErrorKind {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Kind
	}
	return ""
}
