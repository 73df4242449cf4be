package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error so the transport layer can map it to an
// HTTP status without inspecting messages.
type ErrorKind int

const (
	// KindInternal covers persistence or transaction failures unrelated to
	// business rules.
	KindInternal ErrorKind = iota
	// KindNotFound means the entity is absent or belongs to another tenant.
	// The two cases are deliberately indistinguishable to the caller.
	KindNotFound
	// KindBadRequest means an invalid state transition, failed validation,
	// or malformed input.
	KindBadRequest
	// KindForbidden means a non-participant attempted a participant-only
	// action.
	KindForbidden
	// KindConflict means an optimistic-version mismatch on a write.
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindBadRequest:
		return "bad_request"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is the closed error taxonomy of the workflow core. Every error the
// engine returns is one of these; the engine never retries internally.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports an absent entity. entity names the kind ("workflow
// definition", "step"), id is whatever identifier the caller used.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s not found: %s", entity, id)}
}

func BadRequest(msg string) *Error {
	return &Error{Kind: KindBadRequest, Msg: msg}
}

func BadRequestf(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Msg: fmt.Sprintf(format, args...)}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Msg: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Msg: msg}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf returns the ErrorKind of err, defaulting to KindInternal for errors
// from outside the taxonomy.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsBadRequest(err error) bool { return KindOf(err) == KindBadRequest }
func IsForbidden(err error) bool  { return KindOf(err) == KindForbidden }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
