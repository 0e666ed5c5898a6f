package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for dispatch decisions: transient errors are
// retried, data errors go straight to the dead letter topic, business
// errors route to the manual review queue.
type Kind string

const (
	KindTransient Kind = "TRANSIENT"
	KindData      Kind = "DATA"
	KindBusiness  Kind = "BUSINESS"
	KindConflict  Kind = "CONFLICT"
)

// Error is a classified error. Wrapped causes remain reachable via
// errors.Is / errors.As.
type Error struct {
	Kind  Kind
	Op    string
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Transient wraps err as retriable (broker hiccups, timeouts, connection
// resets).
func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, cause: err}
}

// Data wraps err as a permanent payload problem. Retrying cannot help.
func Data(op string, err error) error {
	return &Error{Kind: KindData, Op: op, cause: err}
}

// Business wraps err as a domain rule violation.
func Business(op string, err error) error {
	return &Error{Kind: KindBusiness, Op: op, cause: err}
}

// Conflict wraps err as an optimistic concurrency conflict.
func Conflict(op string, err error) error {
	return &Error{Kind: KindConflict, Op: op, cause: err}
}

// KindOf returns the classification of err, defaulting to transient for
// unclassified errors so that unknown failures are retried rather than
// silently dropped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsData reports whether err is a permanent data error.
func IsData(err error) bool {
	return KindOf(err) == KindData
}

// IsBusiness reports whether err is a business rule failure.
func IsBusiness(err error) bool {
	return KindOf(err) == KindBusiness
}

// IsConflict reports whether err is a version conflict.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}
