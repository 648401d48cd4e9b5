// Package problem implements the cross-cutting error taxonomy: a
// FailureKind-tagged error value that every internal boundary returns
// instead of raising, plus the HTTP adapter that renders it as a
// problem-details response.
package problem

import (
	"fmt"
	"time"
)

// FailureKind is the sum type every internal boundary returns errors as.
// Errors are values here, never exceptions; callers switch on Kind.
type FailureKind string

const (
	Validation       FailureKind = "validation"
	NotFound         FailureKind = "not_found"
	Unauthorized     FailureKind = "unauthorized"
	Conflict         FailureKind = "conflict"
	Transient        FailureKind = "transient"
	PermanentBackend FailureKind = "permanent_backend"
	TimeoutExceeded  FailureKind = "timeout_exceeded"
	Rejected         FailureKind = "rejected"
	ShuttingDown     FailureKind = "shutting_down"
)

// Failure is the error value carried across every internal boundary.
// Field shape is grounded on the teacher's UnifiedError, narrowed to the
// nine-member FailureKind sum type this spec names instead of the
// teacher's broader ErrorType enum.
type Failure struct {
	Kind      FailureKind
	Code      string
	Message   string
	Operation string
	Resource  string
	RequestID string
	UserID    string

	Retryable  bool
	RetryAfter time.Duration

	// FieldErrors carries the structured field->messages map for
	// Validation failures only (spec section 4.7's response shape).
	FieldErrors map[string][]string

	Cause error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Cause }

// WithOperation, WithResource, WithRequestID, WithUserID, WithCause return
// a shallow copy with the given field set, supporting the builder-style
// chaining the teacher's error constructors use.
func (f *Failure) WithOperation(op string) *Failure { c := *f; c.Operation = op; return &c }
func (f *Failure) WithResource(r string) *Failure    { c := *f; c.Resource = r; return &c }
func (f *Failure) WithRequestID(id string) *Failure  { c := *f; c.RequestID = id; return &c }
func (f *Failure) WithUserID(id string) *Failure     { c := *f; c.UserID = id; return &c }
func (f *Failure) WithCause(err error) *Failure      { c := *f; c.Cause = err; return &c }

func New(kind FailureKind, code, message string) *Failure {
	return &Failure{Kind: kind, Code: code, Message: message}
}

func NewValidation(code, message string, fieldErrors map[string][]string) *Failure {
	return &Failure{Kind: Validation, Code: code, Message: message, FieldErrors: fieldErrors}
}

func NewNotFound(code, message, resource string) *Failure {
	return &Failure{Kind: NotFound, Code: code, Message: message, Resource: resource}
}

func NewTransient(code, message string, cause error, retryAfter time.Duration) *Failure {
	return &Failure{Kind: Transient, Code: code, Message: message, Cause: cause, Retryable: true, RetryAfter: retryAfter}
}

func NewPermanentBackend(code, message string, cause error) *Failure {
	return &Failure{Kind: PermanentBackend, Code: code, Message: message, Cause: cause}
}

func NewTimeoutExceeded(code, message string) *Failure {
	return &Failure{Kind: TimeoutExceeded, Code: code, Message: message}
}

func NewRejected(code, message string, retryAfter time.Duration) *Failure {
	return &Failure{Kind: Rejected, Code: code, Message: message, Retryable: true, RetryAfter: retryAfter}
}

func NewShuttingDown(retryAfter time.Duration) *Failure {
	return &Failure{
		Kind:       ShuttingDown,
		Code:       "SHUTTING_DOWN",
		Message:    "the server is shutting down",
		Retryable:  true,
		RetryAfter: retryAfter,
	}
}

// As extracts a *Failure from any error, wrapping unknown errors as
// PermanentBackend so every error leaving the core is classifiable.
func As(err error) *Failure {
	if err == nil {
		return nil
	}
	if f, ok := err.(*Failure); ok {
		return f
	}
	return &Failure{Kind: PermanentBackend, Code: "UNCLASSIFIED", Message: err.Error(), Cause: err}
}
