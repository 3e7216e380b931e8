package model

import (
	"errors"
	"fmt"
)

// ErrorKind is a stable tag identifying a class of lifecycle failure.
// Transport layers map kinds to their own status codes.
type ErrorKind string

const (
	KindValidation             ErrorKind = "validation"
	KindNotFound               ErrorKind = "not_found"
	KindInvalidState           ErrorKind = "invalid_state"
	KindRetryLimitExceeded     ErrorKind = "retry_limit_exceeded"
	KindConcurrentModification ErrorKind = "concurrent_modification"
	KindTransport              ErrorKind = "transport"
	KindTimeout                ErrorKind = "timeout"
	KindInternal               ErrorKind = "internal"
)

// Error is a lifecycle failure carrying a stable kind and a human-readable
// message. Err, when set, is the underlying cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is. They match any error of the same kind.
var (
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrInvalidState           = &Error{Kind: KindInvalidState}
	ErrRetryLimitExceeded     = &Error{Kind: KindRetryLimitExceeded}
	ErrConcurrentModification = &Error{Kind: KindConcurrentModification}
	ErrTransport              = &Error{Kind: KindTransport}
	ErrTimeout                = &Error{Kind: KindTimeout}
)

// NewError builds an *Error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error of the given kind around cause.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of the first *Error or *ValidationError in err's
// chain, or KindInternal when there is none.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether an operation that failed with err may succeed
// if attempted again with fresh state.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindConcurrentModification, KindTransport, KindTimeout, KindInternal:
		return true
	}
	return false
}
