// File: internal/queryerr/errors.go

// Package queryerr defines the typed failures the query core surfaces to its
// callers. Driver and transport errors are translated into one of a small set
// of kinds before they leave the executor or the schema cache, so callers can
// branch on the kind without ever seeing a raw driver error.
package queryerr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable failure category.
type Kind string

const (
	// KindBlocked means the classifier (or the database's read-only guard) refused the query.
	KindBlocked Kind = "blocked"
	// KindConnection means a connection could not be acquired or was lost.
	KindConnection Kind = "connection"
	// KindTimeout means an operation exceeded its bound.
	KindTimeout Kind = "timeout"
	// KindMalformed means the database rejected the query for reasons unrelated to safety.
	KindMalformed Kind = "malformed"
	// KindSchemaFetch means schema discovery failed.
	KindSchemaFetch Kind = "schema_fetch"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrBlocked     = &Error{Kind: KindBlocked}
	ErrConnection  = &Error{Kind: KindConnection}
	ErrTimeout     = &Error{Kind: KindTimeout}
	ErrMalformed   = &Error{Kind: KindMalformed}
	ErrSchemaFetch = &Error{Kind: KindSchemaFetch}
)

// Error is the single concrete failure type of the query core.
type Error struct {
	Kind      Kind
	Message   string
	Hint      string
	Code      string // database status code, when one was reported
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return Mask(fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err))
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same kind. The sentinel
// values carry only a kind, so errors.Is(err, ErrTimeout) matches every timeout.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Blocked builds a non-retryable refusal carrying a reformulation hint.
func Blocked(reason, hint string) *Error {
	return &Error{Kind: KindBlocked, Message: reason, Hint: hint}
}

// Connection wraps a connection-level failure. Retryable is decided by the caller
// because authentication failures are connection errors that must not be retried.
func Connection(msg string, retryable bool, err error) *Error {
	return &Error{Kind: KindConnection, Message: Mask(msg), Retryable: retryable, Err: err}
}

// Timeout wraps a deadline failure. Timeouts are always retryable.
func Timeout(msg string, err error) *Error {
	return &Error{Kind: KindTimeout, Message: Mask(msg), Retryable: true, Err: err}
}

// Malformed carries the database's own rejection message, sanitized, so the
// query author can correct the statement.
func Malformed(code, msg string, err error) *Error {
	return &Error{
		Kind:    KindMalformed,
		Code:    code,
		Message: Mask(msg),
		Hint:    "Check the query syntax and the labels, relationship types and properties it references against the schema.",
		Err:     err,
	}
}

// SchemaFetch wraps a discovery failure. The cached snapshot, if any, stays in place.
func SchemaFetch(msg string, err error) *Error {
	return &Error{
		Kind:      KindSchemaFetch,
		Message:   Mask(msg),
		Hint:      "The previous schema (if any) is still available; retry refresh_schema later.",
		Retryable: true,
		Err:       err,
	}
}

// KindOf returns the kind of err, or "" when err is not a query error.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Retryable
	}
	return false
}

// As is shorthand for errors.As into *Error.
func As(err error) (*Error, bool) {
	var qe *Error
	ok := errors.As(err, &qe)
	return qe, ok
}
