// Package apperr classifies every failure the console can surface to an operator.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAuthentication Kind = "AUTHENTICATION"
	KindValidation     Kind = "VALIDATION"
	KindRemote         Kind = "REMOTE"
	KindTransport      Kind = "TRANSPORT"
	KindBusy           Kind = "BUSY"
	KindNotConfirmed   Kind = "NOT_CONFIRMED"
)

// Error is the single error type crossing package boundaries. Message is what
// the operator sees; Status is the remote HTTP status for KindRemote.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return string(e.Kind) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Authentication(op, message string) *Error {
	return New(KindAuthentication, op, message)
}

func Validation(op, message string) *Error {
	return New(KindValidation, op, message)
}

func Busy(op string) *Error {
	return New(KindBusy, op, "another operation is in progress")
}

func NotConfirmed(op, prompt string) *Error {
	return New(KindNotConfirmed, op, prompt)
}

// Remote wraps a non-success response; detail is the server's message verbatim.
func Remote(op string, status int, detail string) *Error {
	return &Error{Kind: KindRemote, Op: op, Message: detail, Status: status}
}

func Transport(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: err.Error(), Err: err}
}

// As returns the classified error, if err carries one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsUnauthorized reports a definitive authentication rejection by the remote service.
func IsUnauthorized(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	return e.Kind == KindAuthentication || (e.Kind == KindRemote && e.Status == 401)
}

// Notice renders err the way the notification area shows it.
func Notice(err error) string {
	e, ok := As(err)
	if !ok {
		return "Error: " + err.Error()
	}
	switch e.Kind {
	case KindTransport:
		return "Connection error: " + e.Message
	default:
		return "Error: " + e.Message
	}
}
