package device

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the error taxonomy spec.md §7 defines. It is
// string-backed so logs and %v output read directly without a lookup table.
type ErrorKind string

const (
	ErrInProgress           ErrorKind = "InProgress"
	ErrNotReady             ErrorKind = "NotReady"
	ErrAlreadyExists        ErrorKind = "AlreadyExists"
	ErrNotConnected         ErrorKind = "NotConnected"
	ErrProfileUnavailable   ErrorKind = "ProfileUnavailable"
	ErrInvalidArguments     ErrorKind = "InvalidArguments"
	ErrAuthenticationFailed ErrorKind = "AuthenticationFailed"
	ErrAuthenticationReject ErrorKind = "AuthenticationRejected"
	ErrAuthenticationCancel ErrorKind = "AuthenticationCanceled"
	ErrAuthenticationTimeout ErrorKind = "AuthenticationTimeout"
	ErrKeyMissing           ErrorKind = "AuthenticationKeyMissing"
	ErrConnectionAttempt    ErrorKind = "ConnectionAttemptFailed"
	ErrNotSupported         ErrorKind = "NotSupported"
	ErrUnsupported          ErrorKind = "Unsupported"
)

// Error is the error value every public Device Controller operation returns
// on failure: a taxonomy Kind, the bearer it concerns (if any), and the
// underlying cause.
type Error struct {
	Kind   ErrorKind
	Bearer *Bearer
	Err    error
}

func (e *Error) Error() string {
	if e.Bearer != nil {
		if e.Err != nil {
			return fmt.Sprintf("%s (%s): %v", e.Kind, e.Bearer, e.Err)
		}
		return fmt.Sprintf("%s (%s)", e.Kind, e.Bearer)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an untagged (no bearer) Error.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// NewBearerError builds a bearer-tagged Error.
func NewBearerError(kind ErrorKind, bearer Bearer, err error) *Error {
	return &Error{Kind: kind, Bearer: &bearer, Err: err}
}

// KindOf extracts the ErrorKind from err if it (or something it wraps) is a
// *Error, and reports ok=false otherwise.
func KindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}
