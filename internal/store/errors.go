package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is the generic version of the entity-specific not found
	// errors below.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g. a second non-failed result for the same
	// response/processor pair).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrResultNotFound indicates that the requested processing result does
	// not exist in the store.
	ErrResultNotFound = fmt.Errorf("%w: processing result", ErrNotFound)

	// ErrProcessorNotFound indicates that the requested processor does not
	// exist in the store.
	ErrProcessorNotFound = fmt.Errorf("%w: processor", ErrNotFound)

	// ErrResponseNotFound indicates that the requested questionnaire
	// response does not exist in the store.
	ErrResponseNotFound = fmt.Errorf("%w: questionnaire response", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
