// Package shielderr provides the error kinds and wrapping helper used
// across the Agent, Hive, and Shield codebases, built around the
// fmt.Errorf("...: %w", err) wrapping idiom into a small typed-kind error
// so callers can branch on failure class with errors.Is instead of
// string matching.
package shielderr

import (
	"errors"
	"fmt"
)

// Kind is an abstract error classification.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindNotFound          Kind = "not_found"
	KindAlreadyExists     Kind = "already_exists"
	KindOutOfMemory       Kind = "out_of_memory"
	KindCapacityExceeded  Kind = "capacity_exceeded"
	KindIoFailure         Kind = "io_failure"
	KindTimedOut          Kind = "timed_out"
	KindRateLimited       Kind = "rate_limited"
	KindUnsupported       Kind = "unsupported"
	KindParseFailure      Kind = "parse_failure"
)

// sentinels let callers do errors.Is(err, shielderr.ErrNotFound) without
// needing to unwrap to *Error first.
var (
	ErrInvalidInput     = errors.New(string(KindInvalidInput))
	ErrNotFound         = errors.New(string(KindNotFound))
	ErrAlreadyExists    = errors.New(string(KindAlreadyExists))
	ErrOutOfMemory      = errors.New(string(KindOutOfMemory))
	ErrCapacityExceeded = errors.New(string(KindCapacityExceeded))
	ErrIoFailure        = errors.New(string(KindIoFailure))
	ErrTimedOut         = errors.New(string(KindTimedOut))
	ErrRateLimited      = errors.New(string(KindRateLimited))
	ErrUnsupported      = errors.New(string(KindUnsupported))
	ErrParseFailure     = errors.New(string(KindParseFailure))
)

var sentinelByKind = map[Kind]error{
	KindInvalidInput:     ErrInvalidInput,
	KindNotFound:         ErrNotFound,
	KindAlreadyExists:    ErrAlreadyExists,
	KindOutOfMemory:      ErrOutOfMemory,
	KindCapacityExceeded: ErrCapacityExceeded,
	KindIoFailure:        ErrIoFailure,
	KindTimedOut:         ErrTimedOut,
	KindRateLimited:      ErrRateLimited,
	KindUnsupported:      ErrUnsupported,
	KindParseFailure:     ErrParseFailure,
}

// Error is a typed, wrapped error carrying the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return sentinelByKind[e.Kind]
}

// Is lets errors.Is(err, shielderr.ErrNotFound) succeed even though Error
// itself doesn't wrap a sentinel when Err is nil (the common case for
// synthesizing a fresh typed error rather than wrapping one).
func (e *Error) Is(target error) bool {
	return sentinelByKind[e.Kind] == target
}

// Wrap creates an *Error with the given kind, operation name, and
// underlying cause.
func Wrap(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// New creates an *Error with no wrapped cause.
func New(kind Kind, op string) error {
	return &Error{Kind: kind, Op: op}
}
