package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/cognivers/pipeline/internal/domain"
)

// ProcessorStore is the pipeline's read-only view of the externally owned
// processor configuration and its question bindings.
type ProcessorStore interface {
	// GetByID retrieves a processor's stored configuration.
	// Returns ErrProcessorNotFound if the processor does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Processor, error)

	// ActiveBindings returns, for one questionnaire, every active processor
	// together with the question IDs it is bound to via active per-question
	// mappings. Processors without any active question binding are omitted.
	ActiveBindings(ctx context.Context, questionnaireID uuid.UUID) ([]domain.ProcessorBinding, error)
}

// ResponseStore is the pipeline's read-only view of the externally owned
// questionnaire response domain.
type ResponseStore interface {
	// GetMeta returns the response-level identifiers.
	// Returns ErrResponseNotFound if the response does not exist.
	GetMeta(ctx context.Context, responseID uuid.UUID) (*domain.ResponseMeta, error)

	// ListAnswers returns the stored question-answer snapshots for the
	// given question IDs of a response, ordered by question ID ascending.
	// Questions the response never answered are omitted.
	ListAnswers(ctx context.Context, responseID uuid.UUID, questionIDs []uuid.UUID) ([]domain.QuestionAnswer, error)

	// ListResponseIDs enumerates every response recorded for a
	// questionnaire, oldest first.
	ListResponseIDs(ctx context.Context, questionnaireID uuid.UUID) ([]uuid.UUID, error)
}
