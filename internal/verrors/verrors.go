// Package verrors classifies validation failures into the three kinds
// the block validator and tip controller must distinguish: a retryable
// I/O Fault, a silently-dropped Invalid block, and a Hostile block whose
// source peer is pinklisted.
package verrors

import (
	"errors"
	"fmt"
)

// Kind identifies how a failure should propagate.
type Kind int

const (
	// Fault is an I/O or resource error. The operation is abandoned,
	// global state is untouched, and the caller may retry.
	Fault Kind = iota
	// Invalid means the block is well-formed but fails a consensus rule.
	// The block is dropped; its source peer is not penalized.
	Invalid
	// Hostile means the block or packet violates structure a
	// well-behaved node cannot emit. The block is dropped and the
	// source peer is pinklisted for the current epoch.
	Hostile
)

func (k Kind) String() string {
	switch k {
	case Fault:
		return "fault"
	case Invalid:
		return "invalid"
	case Hostile:
		return "hostile"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a propagation Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap creates a classified Error from an existing error.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Faultf, Invalidf, and Hostilef construct a classified error from a
// format string, mirroring the fmt.Errorf idiom used elsewhere.
func Faultf(format string, args ...any) error {
	return Wrap(Fault, fmt.Errorf(format, args...))
}

func Invalidf(format string, args ...any) error {
	return Wrap(Invalid, fmt.Errorf(format, args...))
}

func Hostilef(format string, args ...any) error {
	return Wrap(Hostile, fmt.Errorf(format, args...))
}

// KindOf extracts the Kind from err, defaulting to Invalid for any
// error that was not classified by this package (callers should treat
// unclassified errors conservatively rather than as Faults).
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return Invalid
}

// IsHostile, IsInvalid, and IsFault are convenience predicates.
func IsHostile(err error) bool { return KindOf(err) == Hostile }
func IsInvalid(err error) bool { return KindOf(err) == Invalid }
func IsFault(err error) bool   { return KindOf(err) == Fault }
