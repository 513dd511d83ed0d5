package service

import (
	"errors"
	"fmt"
)

// Service-level errors returned to trigger surfaces. The API layer maps
// these onto HTTP statuses.
var (
	// ErrResponseNotFound indicates the questionnaire response does not
	// exist.
	ErrResponseNotFound = errors.New("questionnaire response not found")

	// ErrProcessorNotFound indicates the referenced processor does not
	// exist.
	ErrProcessorNotFound = errors.New("processor not found")

	// ErrResultNotFound indicates the referenced processing result does
	// not exist.
	ErrResultNotFound = errors.New("processing result not found")
)

// FailureKind labels why an invocation was marked failed. The label is
// the prefix of the persisted error message, so operators can tell a
// broken processor configuration from a flaky backend at a glance.
type FailureKind string

// Failure kinds recorded on failed results
const (
	FailureData          FailureKind = "data error"
	FailureConfiguration FailureKind = "configuration error"
	FailureBackend       FailureKind = "generation backend error"
	FailureSandbox       FailureKind = "post-processing error"
	FailureInternal      FailureKind = "internal error"
)

// failureMessage builds the error message persisted on a failed result.
func failureMessage(kind FailureKind, detail string) string {
	return fmt.Sprintf("%s: %s", kind, detail)
}

// DispatchError wraps an infrastructure failure during dispatch with the
// operation that hit it. Unlike per-invocation failures, these are
// returned to the caller because no result row exists to record them on.
type DispatchError struct {
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *DispatchError) Unwrap() error {
	return e.Err
}
