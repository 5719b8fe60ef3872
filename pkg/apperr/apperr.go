// Package apperr defines the typed error taxonomy surfaced to devices
// over the wire. Every error a session handler produces is classified
// into one of these kinds so the response frame carries a predictable,
// reviewable reason string instead of an arbitrary Go error message.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for wire-visible reporting.
type Kind string

const (
	Validation Kind = "validation"
	State      Kind = "state"
	Unknown    Kind = "unknown_device"
	Signature  Kind = "signature"
	Duplicate  Kind = "duplicate_submission"
	Temporal   Kind = "temporal"
	Chain      Kind = "chain"
	Internal   Kind = "internal"
)

// Error is a typed, wire-classifiable error.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// New creates a typed error with a one-line, wire-safe message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Wrap creates a typed error that also carries an underlying cause,
// which is never shown to the device (the wire message stays msg).
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, msg: msg, err: cause}
}

// KindOf extracts the Kind of err, defaulting to Internal for any
// error this package did not produce.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the one-line wire-safe message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.msg
	}
	return "internal error"
}
