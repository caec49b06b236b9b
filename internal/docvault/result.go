package docvault

import (
	"errors"
	"time"
)

// Sentinel errors reported by Store implementations and folded into result
// envelopes at the service boundary.
var (
	// ErrEnvironment indicates no usable persistent local storage is
	// available. This is a hard precondition failure, never retried.
	ErrEnvironment = errors.New("persistent storage unavailable")

	// ErrConflict indicates an insert with an identifier that already exists.
	ErrConflict = errors.New("identifier already exists")

	// ErrClosed indicates the store connection has been closed.
	ErrClosed = errors.New("store is closed")
)

// ErrKind classifies why an operation failed, so callers can branch on a
// closed set instead of matching error strings.
type ErrKind string

const (
	ErrKindNone        ErrKind = ""
	ErrKindEnvironment ErrKind = "environment"
	ErrKindConflict    ErrKind = "conflict"
	ErrKindValidation  ErrKind = "validation"
	ErrKindStorage     ErrKind = "storage"
	ErrKindClosed      ErrKind = "closed"
)

// Meta describes how an operation ran.
type Meta struct {
	// Duration is the wall-clock time spent inside the operation.
	Duration time.Duration `json:"duration"`
	// RecordsAffected counts records created, updated, deleted or returned.
	// Zero when the target did not exist or the operation failed.
	RecordsAffected int64 `json:"recordsAffected"`
}

// Result is the uniform envelope returned by every persistence operation.
// Ordinary failures (missing record, duplicate identifier, closed
// connection, storage faults) are reported through it; no operation panics
// or returns a raw error past its own boundary.
type Result[T any] struct {
	OK   bool    `json:"success"`
	Data T       `json:"data,omitempty"` // Zero value unless OK
	Kind ErrKind `json:"errorKind,omitempty"`
	Err  string  `json:"error,omitempty"`
	Meta Meta    `json:"metadata"`
}

func succeed[T any](data T, affected int64, took time.Duration) Result[T] {
	return Result[T]{
		OK:   true,
		Data: data,
		Meta: Meta{Duration: took, RecordsAffected: affected},
	}
}

// fail classifies err through the sentinel chain.
func fail[T any](err error, took time.Duration) Result[T] {
	return failKind[T](kindOf(err), err.Error(), took)
}

func failKind[T any](kind ErrKind, msg string, took time.Duration) Result[T] {
	return Result[T]{
		Kind: kind,
		Err:  msg,
		Meta: Meta{Duration: took},
	}
}

func kindOf(err error) ErrKind {
	switch {
	case errors.Is(err, ErrConflict):
		return ErrKindConflict
	case errors.Is(err, ErrClosed):
		return ErrKindClosed
	case errors.Is(err, ErrEnvironment):
		return ErrKindEnvironment
	default:
		return ErrKindStorage
	}
}
