package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/cognivers/pipeline/internal/domain"
)

// ResultStore defines the persistence operations on ProcessingResult
// records. It is the single source of truth the dispatcher and executor
// coordinate through.
type ResultStore interface {
	// Upsert creates the result row, or replaces the row for the same
	// (response, processor) pair in place while keeping its ID and
	// creation time, writing the kept values back into result. Exactly
	// one row per pair exists afterwards and result identifies it.
	Upsert(ctx context.Context, result *domain.ProcessingResult) error

	// GetByID retrieves a result by its unique ID.
	// Returns ErrResultNotFound if the result does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ProcessingResult, error)

	// FindByPair retrieves the result for the given (response, processor)
	// pair. Returns ErrResultNotFound if no row exists.
	FindByPair(ctx context.Context, responseID, processorID uuid.UUID) (*domain.ProcessingResult, error)

	// ListByResponse retrieves all results for a response, newest first.
	ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*domain.ProcessingResult, error)

	// Update persists the mutable fields of an existing result (prompt,
	// outputs, status, error message, updated_at).
	// Returns ErrResultNotFound if the row does not exist.
	Update(ctx context.Context, result *domain.ProcessingResult) error

	// DeleteByResponse deletes all result rows for a response and returns
	// the number of rows removed.
	DeleteByResponse(ctx context.Context, responseID uuid.UUID) (int64, error)

	// DeleteByPair deletes the result row for the given (response,
	// processor) pair, if present, and returns the number of rows removed.
	DeleteByPair(ctx context.Context, responseID, processorID uuid.UUID) (int64, error)

	// WithTx returns a new ResultStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) ResultStore
}
