package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cognivers/pipeline/internal/domain"
	"github.com/cognivers/pipeline/internal/platform/logger"
	"github.com/cognivers/pipeline/internal/store"
)

// PostgresProcessorStore implements the store.ProcessorStore interface.
// The processors and question_processor_mappings tables are owned by the
// admin application; this store only reads them.
type PostgresProcessorStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProcessorStore creates a new PostgreSQL implementation of
// the ProcessorStore interface.
func NewPostgresProcessorStore(db store.DBTX, logger *slog.Logger) *PostgresProcessorStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresProcessorStore{
		db:     db,
		logger: logger.With(slog.String("component", "processor_store")),
	}
}

// Ensure PostgresProcessorStore implements store.ProcessorStore
var _ store.ProcessorStore = (*PostgresProcessorStore)(nil)

const processorColumns = `
	id, name, version, prompt_template, post_processing_code,
	interpreter, status, generation_params, created_at, updated_at
`

// GetByID implements store.ProcessorStore.GetByID.
// Returns store.ErrProcessorNotFound if the processor does not exist.
func (s *PostgresProcessorStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Processor, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + processorColumns + ` FROM processors WHERE id = $1`

	processor, err := scanProcessor(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("processor not found", slog.String("processor_id", id.String()))
			return nil, store.ErrProcessorNotFound
		}
		log.Error("failed to get processor by ID",
			slog.String("error", err.Error()),
			slog.String("processor_id", id.String()))
		return nil, MapError(err)
	}

	return processor, nil
}

// ActiveBindings implements store.ProcessorStore.ActiveBindings. One
// binding per active processor with at least one active question mapping
// in the questionnaire, question IDs sorted ascending by the canonical
// UUID string so dispatch order is deterministic.
func (s *PostgresProcessorStore) ActiveBindings(ctx context.Context, questionnaireID uuid.UUID) ([]domain.ProcessorBinding, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT p.id, p.name, p.version, p.prompt_template, p.post_processing_code,
			p.interpreter, p.status, p.generation_params, p.created_at, p.updated_at,
			m.question_id
		FROM question_processor_mappings m
		JOIN questions q ON q.id = m.question_id
		JOIN processors p ON p.id = m.processor_id
		WHERE q.questionnaire_id = $1
		  AND m.active = TRUE
		  AND p.status = 'active'
		ORDER BY p.id, m.question_id::text
	`

	rows, err := s.db.QueryContext(ctx, query, questionnaireID)
	if err != nil {
		log.Error("failed to query processor bindings",
			slog.String("error", err.Error()),
			slog.String("questionnaire_id", questionnaireID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	acc := newBindingAccumulator()

	for rows.Next() {
		processor, questionID, err := scanProcessorWithQuestion(rows)
		if err != nil {
			log.Error("failed to scan binding row",
				slog.String("error", err.Error()),
				slog.String("questionnaire_id", questionnaireID.String()))
			return nil, MapError(err)
		}
		acc.add(processor, questionID)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	bindings := acc.result()
	log.Debug("loaded processor bindings",
		slog.String("questionnaire_id", questionnaireID.String()),
		slog.Int("count", len(bindings)))
	return bindings, nil
}

// bindingAccumulator folds flattened (processor, question) rows into one
// binding per processor. A question mapped to several processors lands in
// every one of their bindings; question IDs keep the order they arrive in,
// and bindings keep the order their processor first appears in.
type bindingAccumulator struct {
	bindings    []domain.ProcessorBinding
	byProcessor map[uuid.UUID]int
}

func newBindingAccumulator() *bindingAccumulator {
	return &bindingAccumulator{byProcessor: make(map[uuid.UUID]int)}
}

func (a *bindingAccumulator) add(processor *domain.Processor, questionID uuid.UUID) {
	idx, seen := a.byProcessor[processor.ID]
	if !seen {
		idx = len(a.bindings)
		a.byProcessor[processor.ID] = idx
		a.bindings = append(a.bindings, domain.ProcessorBinding{Processor: processor})
	}
	a.bindings[idx].QuestionIDs = append(a.bindings[idx].QuestionIDs, questionID)
}

func (a *bindingAccumulator) result() []domain.ProcessorBinding {
	return a.bindings
}

// scanProcessor maps one processors row onto the domain type.
func scanProcessor(row rowScanner) (*domain.Processor, error) {
	var (
		processor   domain.Processor
		interpreter string
		status      string
		generation  []byte
	)

	err := row.Scan(
		&processor.ID,
		&processor.Name,
		&processor.Version,
		&processor.PromptTemplate,
		&processor.PostProcessingCode,
		&interpreter,
		&status,
		&generation,
		&processor.CreatedAt,
		&processor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(generation) > 0 {
		if err := json.Unmarshal(generation, &processor.Generation); err != nil {
			return nil, fmt.Errorf("decoding generation params: %w", err)
		}
	}
	processor.Interpreter = domain.InterpreterType(interpreter)
	processor.Status = domain.ProcessorStatus(status)

	return &processor, nil
}

// scanProcessorWithQuestion scans a binding row: processor columns plus
// the mapped question ID.
func scanProcessorWithQuestion(rows *sql.Rows) (*domain.Processor, uuid.UUID, error) {
	var (
		processor   domain.Processor
		interpreter string
		status      string
		generation  []byte
		questionID  uuid.UUID
	)

	err := rows.Scan(
		&processor.ID,
		&processor.Name,
		&processor.Version,
		&processor.PromptTemplate,
		&processor.PostProcessingCode,
		&interpreter,
		&status,
		&generation,
		&processor.CreatedAt,
		&processor.UpdatedAt,
		&questionID,
	)
	if err != nil {
		return nil, uuid.Nil, err
	}

	if len(generation) > 0 {
		if err := json.Unmarshal(generation, &processor.Generation); err != nil {
			return nil, uuid.Nil, fmt.Errorf("decoding generation params: %w", err)
		}
	}
	processor.Interpreter = domain.InterpreterType(interpreter)
	processor.Status = domain.ProcessorStatus(status)

	return &processor, questionID, nil
}

// PostgresResponseStore implements the store.ResponseStore interface.
// The responses and response_answers tables are owned by the
// questionnaire application; this store only reads them.
type PostgresResponseStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresResponseStore creates a new PostgreSQL implementation of
// the ResponseStore interface.
func NewPostgresResponseStore(db store.DBTX, logger *slog.Logger) *PostgresResponseStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresResponseStore{
		db:     db,
		logger: logger.With(slog.String("component", "response_store")),
	}
}

// Ensure PostgresResponseStore implements store.ResponseStore
var _ store.ResponseStore = (*PostgresResponseStore)(nil)

// GetMeta implements store.ResponseStore.GetMeta.
// Returns store.ErrResponseNotFound if the response does not exist.
func (s *PostgresResponseStore) GetMeta(ctx context.Context, responseID uuid.UUID) (*domain.ResponseMeta, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT id, questionnaire_id, user_id FROM responses WHERE id = $1`

	var meta domain.ResponseMeta
	err := s.db.QueryRowContext(ctx, query, responseID).Scan(
		&meta.ID,
		&meta.QuestionnaireID,
		&meta.UserID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("response not found", slog.String("response_id", responseID.String()))
			return nil, store.ErrResponseNotFound
		}
		log.Error("failed to get response metadata",
			slog.String("error", err.Error()),
			slog.String("response_id", responseID.String()))
		return nil, MapError(err)
	}

	return &meta, nil
}

// ListAnswers implements store.ResponseStore.ListAnswers. Answers come
// back ordered by question ID ascending; questions the response never
// answered are simply absent.
func (s *PostgresResponseStore) ListAnswers(ctx context.Context, responseID uuid.UUID, questionIDs []uuid.UUID) ([]domain.QuestionAnswer, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(questionIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(questionIDs))
	for i, id := range questionIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT question_id, question_text, question_type, answer
		FROM response_answers
		WHERE response_id = $1 AND question_id = ANY($2::uuid[])
		ORDER BY question_id::text ASC
	`

	rows, err := s.db.QueryContext(ctx, query, responseID, ids)
	if err != nil {
		log.Error("failed to query response answers",
			slog.String("error", err.Error()),
			slog.String("response_id", responseID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var answers []domain.QuestionAnswer
	for rows.Next() {
		var (
			answer domain.QuestionAnswer
			raw    []byte
		)
		if err := rows.Scan(&answer.QuestionID, &answer.Text, &answer.Type, &raw); err != nil {
			log.Error("failed to scan answer row",
				slog.String("error", err.Error()),
				slog.String("response_id", responseID.String()))
			return nil, MapError(err)
		}
		answer.Answer = json.RawMessage(raw)
		answers = append(answers, answer)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return answers, nil
}

// ListResponseIDs implements store.ResponseStore.ListResponseIDs.
func (s *PostgresResponseStore) ListResponseIDs(ctx context.Context, questionnaireID uuid.UUID) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id
		FROM responses
		WHERE questionnaire_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, questionnaireID)
	if err != nil {
		log.Error("failed to list responses",
			slog.String("error", err.Error()),
			slog.String("questionnaire_id", questionnaireID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var responseIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		responseIDs = append(responseIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return responseIDs, nil
}
