package rag

import (
	"errors"
	"fmt"
)

// Kind categorises a failure of a single question-answering turn. The HTTP
// boundary maps each kind to exactly one status code.
type Kind string

const (
	// KindInvalidRequest covers malformed bodies, empty messages and wrong methods.
	KindInvalidRequest Kind = "invalid_request"
	// KindUnauthenticated means the identity token is absent, malformed or expired.
	KindUnauthenticated Kind = "unauthenticated"
	// KindNotFound means the dialog does not exist for the caller. It never
	// distinguishes "absent" from "owned by someone else".
	KindNotFound Kind = "not_found"
	// KindRetrievalUnavailable means embedding or vector search failed.
	KindRetrievalUnavailable Kind = "retrieval_unavailable"
	// KindGenerationUnavailable means the completion backend is misconfigured.
	KindGenerationUnavailable Kind = "generation_unavailable"
	// KindGenerationFailed means the completion backend was reached but did
	// not produce a usable answer.
	KindGenerationFailed Kind = "generation_failed"
	// KindInternal is anything else, e.g. the ownership lookup backend failing.
	KindInternal Kind = "internal"
)

// Error is a classified failure. Message is safe to show to the caller;
// Err carries the underlying cause for logs only.
type Error struct {
	// Kind is the failure category.
	Kind Kind
	// Message is the client-facing message. It never contains backend detail.
	Message string
	// Err is the wrapped cause, may be nil.
	Err error
}

// NewError constructs an *Error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so sentinel
// comparisons like errors.Is(err, &Error{Kind: KindNotFound}) work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the Kind of err, or KindInternal when err is not classified.
// A nil error has no kind and returns "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message carried by err, or fallback
// when err is not classified.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
