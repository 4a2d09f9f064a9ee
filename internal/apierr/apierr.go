// Package apierr defines the closed error taxonomy shared by the
// orchestrator and the HTTP front-end (spec §7).
package apierr

import "errors"

// Kind is one of the fixed error kinds the control plane ever produces.
// The HTTP front-end maps each Kind to a status code; callers elsewhere
// extract the Kind of an error with KindOf.
type Kind string

const (
	KindInvalidEngine          Kind = "invalid-engine"
	KindInvalidPath            Kind = "invalid-path"
	KindPathNotAllowed         Kind = "path-not-allowed"
	KindNotFound               Kind = "not-found"
	KindRuntimeError           Kind = "runtime-error"
	KindWriteFailed            Kind = "write-failed"
	KindReadinessIndeterminate Kind = "readiness-indeterminate"
)

// Error wraps a Kind with a human-readable message and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Cause.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind, carrying cause as the wrapped error.
func Wrap(kind Kind, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Cause: cause}
}

// KindOf extracts the Kind from err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
