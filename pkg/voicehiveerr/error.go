// Package voicehiveerr defines the single discriminated error type used
// across the orchestrator. Every adapter boundary maps vendor-specific
// failures into one of these kinds exactly once; code above the boundary
// only ever re-wraps, never re-kinds.
package voicehiveerr

import (
	"errors"
	"fmt"
	"time"
)

// Kind discriminates the class of failure. Retry eligibility and HTTP/gRPC
// status mapping are both derived from Kind alone.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindAuth         Kind = "auth"
	KindNotFound     Kind = "not_found"
	KindRateLimited  Kind = "rate_limited"
	KindTransient    Kind = "transient"
	KindCircuitOpen  Kind = "circuit_open"
	KindTimeout      Kind = "timeout"
	KindCancelled    Kind = "cancelled"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// Error is the orchestrator's single error type. It always carries a Kind
// and a human-readable Message, and optionally the lower-level Cause plus
// kind-specific metadata (RetryAfter for KindRateLimited, NextAttemptAt for
// KindCircuitOpen).
type Error struct {
	Kind          Kind
	Message       string
	Cause         error
	RetryAfter    time.Duration
	NextAttemptAt time.Time
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, voicehiveerr.KindX) style comparisons work when
// callers compare against a bare &Error{Kind: K}.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind
	}
	return false
}

func newErr(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string, cause error) *Error { return newErr(KindValidation, message, cause) }
func Auth(message string, cause error) *Error       { return newErr(KindAuth, message, cause) }
func NotFound(message string, cause error) *Error   { return newErr(KindNotFound, message, cause) }
func Internal(message string, cause error) *Error   { return newErr(KindInternal, message, cause) }
func Conflict(message string, cause error) *Error   { return newErr(KindConflict, message, cause) }
func Timeout(message string, cause error) *Error    { return newErr(KindTimeout, message, cause) }
func Cancelled(message string, cause error) *Error  { return newErr(KindCancelled, message, cause) }

func Transient(message string, cause error) *Error {
	return newErr(KindTransient, message, cause)
}

func RateLimited(message string, retryAfter time.Duration) *Error {
	e := newErr(KindRateLimited, message, nil)
	e.RetryAfter = retryAfter
	return e
}

func CircuitOpen(dependency string, nextAttemptAt time.Time) *Error {
	e := newErr(KindCircuitOpen, fmt.Sprintf("circuit open for %s", dependency), nil)
	e.NextAttemptAt = nextAttemptAt
	return e
}

// KindOf extracts the Kind of err, defaulting to KindInternal for errors
// that were never classified by an adapter boundary.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return KindInternal
}

// Retryable reports whether an error's Kind is eligible for automatic
// retry. Only transient failures and rate-limiting (after the indicated
// delay) are retry-eligible; everything else is terminal from the
// resilience fabric's point of view.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindRateLimited:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a Kind to the status code an HTTP-facing boundary
// (outside this module's scope) would use to represent it.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return 400
	case KindAuth:
		return 401
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindRateLimited:
		return 429
	case KindTimeout:
		return 504
	case KindCancelled:
		return 499
	case KindCircuitOpen:
		return 503
	default:
		// KindTransient and KindInternal both surface as 500.
		return 500
	}
}
