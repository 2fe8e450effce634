// Package apperr holds the failure taxonomy shared by the gating layer.
// Components return *Error values; only the error normalizer turns them
// into HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	MethodNotAllowed
	BadRequest
	Conflict
	Unauthenticated
	InvalidSignature
	Expired
	Malformed
	Revoked
)

var kindNames = map[Kind]string{
	Internal:         "internal",
	NotFound:         "not_found",
	MethodNotAllowed: "method_not_allowed",
	BadRequest:       "bad_request",
	Conflict:         "conflict",
	Unauthenticated:  "unauthenticated",
	InvalidSignature: "invalid_signature",
	Expired:          "expired",
	Malformed:        "malformed",
	Revoked:          "revoked",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status is the HTTP status a kind is surfaced with. Every credential
// failure maps to 401 so clients can't tell which check failed.
func (k Kind) Status() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case MethodNotAllowed:
		return http.StatusMethodNotAllowed
	case BadRequest:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case Unauthenticated, InvalidSignature, Expired, Malformed, Revoked:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Auth reports whether the kind is a credential failure.
func (k Kind) Auth() bool {
	return k.Status() == http.StatusUnauthorized
}

// Error is a failure with a declared kind and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Stack   []byte
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Stack: stack(kind)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err, Stack: stack(kind)}
}

// stack is only worth its cost for server faults; rejections are expected
// and frequent.
func stack(kind Kind) []byte {
	if kind != Internal {
		return nil
	}
	return debug.Stack()
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Status() int { return e.Kind.Status() }

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, Internal when err carries none.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
