package service

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure. Kinds are stable strings that the
// HTTP layer returns verbatim.
type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindInsufficientCapacity Kind = "insufficient_capacity"
	KindInvalidState         Kind = "invalid_state"
	KindForbidden            Kind = "forbidden"
	KindStorageUnavailable   Kind = "storage_unavailable"
)

// Error is the failure type returned by every engine operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind against a bare sentinel, so
// errors.Is(err, ErrNotFound) works regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrInsufficientCapacity = &Error{Kind: KindInsufficientCapacity}
	ErrInvalidState         = &Error{Kind: KindInvalidState}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrStorageUnavailable   = &Error{Kind: KindStorageUnavailable}
)

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func notFound(msg string) *Error     { return newError(KindNotFound, msg) }
func conflict(msg string) *Error     { return newError(KindConflict, msg) }
func forbidden(msg string) *Error    { return newError(KindForbidden, msg) }
func invalidState(msg string) *Error { return newError(KindInvalidState, msg) }

func insufficientCapacity(requested, available int) *Error {
	if requested < 1 {
		return newError(KindInsufficientCapacity, "seat count must be at least 1")
	}
	return newError(KindInsufficientCapacity,
		fmt.Sprintf("requested %d seats, %d available", requested, available))
}

func unavailable(op string, err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Message: op + " failed", Err: err}
}
