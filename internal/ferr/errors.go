// Package ferr defines the error taxonomy shared across flurecore's core
// subsystems. Each kind carries a stable status code and, where useful,
// structured data a caller can inspect without parsing the message.
package ferr

import (
	"errors"
	"fmt"
)

// Kind identifies a taxonomy entry from spec §7.
type Kind string

const (
	InvalidCommit     Kind = "InvalidCommit"
	InvalidRetraction Kind = "InvalidRetraction"
	UnknownNamespace  Kind = "UnknownNamespace"
	ValueCoercion     Kind = "ValueCoercion"
	ShaclViolation    Kind = "ShaclViolation"
	PolicyViolation   Kind = "PolicyViolation"
	FuelExhausted     Kind = "FuelExhausted"
	IndexingError     Kind = "IndexingError"
	StorageError      Kind = "StorageError"
	InvalidConfig     Kind = "InvalidConfig"
	EmptyCommit       Kind = "EmptyCommit"
)

// StatusCode returns the user-visible HTTP-ish status code for a kind.
func (k Kind) StatusCode() int {
	switch k {
	case IndexingError, StorageError:
		return 500
	default:
		return 400
	}
}

// Error is the concrete error type raised by flurecore. Data carries any
// kind-specific structured payload (a ShaclViolation's full report, a
// ValueCoercion's offending value/target type, etc).
type Error struct {
	Kind    Kind
	Message string
	Data    any
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: cause}
}

// WithData attaches structured data to the error (e.g. a SHACL report or a
// coercion {value, targetType} pair) and returns the same error for chaining.
func (e *Error) WithData(data any) *Error {
	e.Data = data
	return e
}

// Is reports whether err is a flurecore error of the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
