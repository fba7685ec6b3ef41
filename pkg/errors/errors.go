// Package errors provides the closed error taxonomy shared by every
// subsystem of the workflow runtime: value/secret handling, resilience
// policies, credential management, resource pooling, sandboxing, action
// dispatch, and the engine coordinator.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for retry-disposition and reporting purposes.
// Layers add context as they propagate an error but must never change its
// Kind — retry conditions consult the innermost classification.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindPermissionDenied  Kind = "PERMISSION_DENIED"
	KindTimeout           Kind = "TIMEOUT"
	KindRateLimitExceeded Kind = "RATE_LIMIT_EXCEEDED"
	KindCircuitOpen       Kind = "CIRCUIT_OPEN"
	KindPoolExhausted     Kind = "POOL_EXHAUSTED"
	KindDecryptionFailed  Kind = "DECRYPTION_FAILED"
	KindSandboxViolation  Kind = "SANDBOX_VIOLATION"
	KindCancelled         Kind = "CANCELLED"
	KindLimitExceeded     Kind = "LIMIT_EXCEEDED"
	KindInternal          Kind = "INTERNAL"
)

// Retryable reports whether a caller may retry an error of this Kind:
// true for Timeout, RateLimitExceeded, CircuitOpen and PoolExhausted. Of
// these, only the RateLimitExceeded and CircuitOpen constructors also set
// a retry hint (RetryAfter).
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindRateLimitExceeded, KindCircuitOpen, KindPoolExhausted:
		return true
	default:
		return false
	}
}

// RuntimeError is the closed sum type every component returns. It carries a
// stable Kind, a human message, structured Details (stored as given;
// neither this package nor pkg/redaction scrubs them automatically), and
// an optional wrapped cause.
type RuntimeError struct {
	Kind       Kind
	Message    string
	Details    map[string]any
	RetryAfter time.Duration
	Err        error
}

func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value pair and returns the same error for
// chaining.
func (e *RuntimeError) WithDetails(key string, value any) *RuntimeError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a RuntimeError with no wrapped cause.
func New(kind Kind, message string) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: message}
}

// Wrap creates a RuntimeError that preserves an underlying cause. The
// wrapped error's own Kind (if it is itself a *RuntimeError) is NOT
// inherited — callers that want to preserve classification should use
// Propagate instead.
func Wrap(kind Kind, message string, err error) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: message, Err: err}
}

// Propagate adds context to err while preserving its original
// classification: layers add context but never change an error's Kind.
// If err is not a *RuntimeError, it is classified Internal.
func Propagate(message string, err error) *RuntimeError {
	if err == nil {
		return nil
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return &RuntimeError{Kind: re.Kind, Message: message, Details: re.Details, RetryAfter: re.RetryAfter, Err: err}
	}
	return &RuntimeError{Kind: KindInternal, Message: message, Err: err}
}

// Constructors for each error Kind.

func Validation(field, reason string) *RuntimeError {
	return New(KindValidation, "validation failed").WithDetails("field", field).WithDetails("reason", reason)
}

func NotFound(entity, id string) *RuntimeError {
	return New(KindNotFound, "entity not found").WithDetails("entity", entity).WithDetails("id", id)
}

func Unauthorized(message string) *RuntimeError {
	return New(KindUnauthorized, message)
}

func PermissionDenied(message string) *RuntimeError {
	return New(KindPermissionDenied, message)
}

func Timeout(operation string) *RuntimeError {
	return New(KindTimeout, "operation timed out").WithDetails("operation", operation)
}

func RateLimitExceeded(retryAfter time.Duration) *RuntimeError {
	e := New(KindRateLimitExceeded, "rate limit exceeded")
	e.RetryAfter = retryAfter
	return e
}

func CircuitOpen(resetIn time.Duration) *RuntimeError {
	e := New(KindCircuitOpen, "circuit breaker is open")
	e.RetryAfter = resetIn
	return e
}

func PoolExhausted(pool string) *RuntimeError {
	return New(KindPoolExhausted, "resource pool exhausted").WithDetails("pool", pool)
}

func DecryptionFailed() *RuntimeError {
	// Deliberately no cause/details distinguishing "key wrong" from
	// "ciphertext tampered".
	return New(KindDecryptionFailed, "decryption failed")
}

func SandboxViolation(capability, node string) *RuntimeError {
	return New(KindSandboxViolation, "required capability not granted").
		WithDetails("capability", capability).
		WithDetails("node", node)
}

func Cancelled() *RuntimeError {
	return New(KindCancelled, "operation cancelled")
}

func LimitExceeded(kind string, limit int) *RuntimeError {
	return New(KindLimitExceeded, "bound exceeded").WithDetails("type", kind).WithDetails("limit", limit)
}

func Internal(message string, err error) *RuntimeError {
	return Wrap(KindInternal, message, err)
}

// As extracts a *RuntimeError from an error chain, mirroring the teacher's
// IsServiceError/GetServiceError helper pair.
func As(err error) (*RuntimeError, bool) {
	var re *RuntimeError
	ok := errors.As(err, &re)
	return re, ok
}

// KindOf returns the Kind of err, or KindInternal if err is not (or does
// not wrap) a *RuntimeError.
func KindOf(err error) Kind {
	if re, ok := As(err); ok {
		return re.Kind
	}
	return KindInternal
}
