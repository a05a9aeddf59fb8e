// Package kinderr defines the error taxonomy shared by every domain package
// in the training platform: a small closed set of kinds, not exception
// classes, that the HTTP boundary maps to status codes and that callers can
// branch on with errors.Is/errors.As.
package kinderr

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy's closed set of error categories.
type Kind int

const (
	// Internal marks an unanticipated error; never swallowed silently.
	Internal Kind = iota
	// Validation marks malformed input; never retried automatically.
	Validation
	// NotFound marks a referenced entity that is absent.
	NotFound
	// Conflict marks an FSM or uniqueness violation.
	Conflict
	// Precondition marks a guarded operation whose precondition failed.
	Precondition
	// Unavailable marks a transient dependency failure (DB, object store, cache).
	Unavailable
	// Timeout marks a stage or solver invocation that exceeded its budget.
	Timeout
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not-found"
	case Conflict:
		return "conflict"
	case Precondition:
		return "precondition"
	case Unavailable:
		return "unavailable"
	case Timeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Error is a domain error carrying a taxonomy Kind alongside the usual
// message/wrapped-error pair, so callers can use errors.Is/errors.As against
// a Kind without string-matching messages.
type Error struct {
	Kind    Kind
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

// Is supports errors.Is(err, kinderr.New(SomeKind, "")) style kind checks
// via a sentinel comparison on Kind alone, ignoring Message/Err.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return e.Kind == t.Kind
}

// New constructs a kinderr.Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a kinderr.Error wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Of reports the Kind of err, defaulting to Internal when err does not carry
// one (or is nil, which reports Internal — callers are expected to guard on
// err != nil first).
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return Internal
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	return e.Kind == kind
}
