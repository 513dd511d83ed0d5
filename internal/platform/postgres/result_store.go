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

// PostgresResultStore implements the store.ResultStore interface using a
// PostgreSQL database as the storage backend.
type PostgresResultStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresResultStore creates a new PostgreSQL implementation of the
// ResultStore interface. It accepts a database connection or transaction
// managed by the caller. If logger is nil, a default logger is used.
func NewPostgresResultStore(db store.DBTX, logger *slog.Logger) *PostgresResultStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresResultStore{
		db:     db,
		logger: logger.With(slog.String("component", "result_store")),
	}
}

// Ensure PostgresResultStore implements store.ResultStore
var _ store.ResultStore = (*PostgresResultStore)(nil)

const resultColumns = `
	id, response_id, processor_id, processor_version, question_ids,
	prompt, raw_output, processed_output, status, error_message,
	batch_index, created_at, updated_at
`

// Upsert implements store.ResultStore.Upsert. The (response, processor)
// pair is unique; an existing row is replaced in place keeping its ID and
// creation time, which are written back into result.
func (s *PostgresResultStore) Upsert(ctx context.Context, result *domain.ProcessingResult) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := result.Validate(); err != nil {
		log.Warn("result validation failed during upsert",
			slog.String("error", err.Error()),
			slog.String("result_id", result.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	questionIDs, err := json.Marshal(result.QuestionIDs)
	if err != nil {
		return fmt.Errorf("encoding question IDs: %w", err)
	}

	query := `
		INSERT INTO processing_results (
			id, response_id, processor_id, processor_version, question_ids,
			prompt, raw_output, processed_output, status, error_message,
			batch_index, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (response_id, processor_id) DO UPDATE SET
			processor_version = EXCLUDED.processor_version,
			question_ids = EXCLUDED.question_ids,
			prompt = EXCLUDED.prompt,
			raw_output = EXCLUDED.raw_output,
			processed_output = EXCLUDED.processed_output,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			batch_index = EXCLUDED.batch_index,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err = s.db.QueryRowContext(
		ctx,
		query,
		result.ID,
		result.ResponseID,
		result.ProcessorID,
		result.ProcessorVersion,
		questionIDs,
		result.Prompt,
		result.RawOutput,
		nullableJSON(result.ProcessedOutput),
		result.Status,
		result.ErrorMessage,
		result.BatchIndex,
		result.CreatedAt,
		result.UpdatedAt,
	).Scan(&result.ID, &result.CreatedAt)

	if err != nil {
		log.Error("failed to upsert result",
			slog.String("error", err.Error()),
			slog.String("response_id", result.ResponseID.String()),
			slog.String("processor_id", result.ProcessorID.String()))
		return MapError(err)
	}

	log.Debug("result upserted",
		slog.String("result_id", result.ID.String()),
		slog.String("status", string(result.Status)))
	return nil
}

// GetByID implements store.ResultStore.GetByID.
// Returns store.ErrResultNotFound if the result does not exist.
func (s *PostgresResultStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProcessingResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + resultColumns + ` FROM processing_results WHERE id = $1`

	result, err := scanResult(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("result not found", slog.String("result_id", id.String()))
			return nil, store.ErrResultNotFound
		}
		log.Error("failed to get result by ID",
			slog.String("error", err.Error()),
			slog.String("result_id", id.String()))
		return nil, MapError(err)
	}

	return result, nil
}

// FindByPair implements store.ResultStore.FindByPair.
// Returns store.ErrResultNotFound if no row exists for the pair.
func (s *PostgresResultStore) FindByPair(ctx context.Context, responseID, processorID uuid.UUID) (*domain.ProcessingResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + resultColumns + `
		FROM processing_results
		WHERE response_id = $1 AND processor_id = $2
	`

	result, err := scanResult(s.db.QueryRowContext(ctx, query, responseID, processorID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrResultNotFound
		}
		log.Error("failed to find result by pair",
			slog.String("error", err.Error()),
			slog.String("response_id", responseID.String()),
			slog.String("processor_id", processorID.String()))
		return nil, MapError(err)
	}

	return result, nil
}

// ListByResponse implements store.ResultStore.ListByResponse.
func (s *PostgresResultStore) ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*domain.ProcessingResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + resultColumns + `
		FROM processing_results
		WHERE response_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, responseID)
	if err != nil {
		log.Error("failed to list results by response",
			slog.String("error", err.Error()),
			slog.String("response_id", responseID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var results []*domain.ProcessingResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			log.Error("failed to scan result row",
				slog.String("error", err.Error()),
				slog.String("response_id", responseID.String()))
			return nil, MapError(err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return results, nil
}

// Update implements store.ResultStore.Update.
// Returns store.ErrResultNotFound if the row does not exist.
func (s *PostgresResultStore) Update(ctx context.Context, result *domain.ProcessingResult) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := result.Validate(); err != nil {
		log.Warn("result validation failed during update",
			slog.String("error", err.Error()),
			slog.String("result_id", result.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE processing_results
		SET prompt = $1,
			raw_output = $2,
			processed_output = $3,
			status = $4,
			error_message = $5,
			batch_index = $6,
			updated_at = $7
		WHERE id = $8
	`

	execResult, err := s.db.ExecContext(
		ctx,
		query,
		result.Prompt,
		result.RawOutput,
		nullableJSON(result.ProcessedOutput),
		result.Status,
		result.ErrorMessage,
		result.BatchIndex,
		result.UpdatedAt,
		result.ID,
	)
	if err != nil {
		log.Error("failed to update result",
			slog.String("error", err.Error()),
			slog.String("result_id", result.ID.String()))
		return MapError(err)
	}

	rowsAffected, err := execResult.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rowsAffected == 0 {
		log.Debug("result not found for update",
			slog.String("result_id", result.ID.String()))
		return store.ErrResultNotFound
	}

	log.Debug("result updated",
		slog.String("result_id", result.ID.String()),
		slog.String("status", string(result.Status)))
	return nil
}

// DeleteByResponse implements store.ResultStore.DeleteByResponse.
func (s *PostgresResultStore) DeleteByResponse(ctx context.Context, responseID uuid.UUID) (int64, error) {
	return s.deleteWhere(ctx,
		`DELETE FROM processing_results WHERE response_id = $1`,
		responseID)
}

// DeleteByPair implements store.ResultStore.DeleteByPair.
func (s *PostgresResultStore) DeleteByPair(ctx context.Context, responseID, processorID uuid.UUID) (int64, error) {
	return s.deleteWhere(ctx,
		`DELETE FROM processing_results WHERE response_id = $1 AND processor_id = $2`,
		responseID, processorID)
}

func (s *PostgresResultStore) deleteWhere(ctx context.Context, query string, args ...any) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	execResult, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to delete results", slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	deleted, err := execResult.RowsAffected()
	if err != nil {
		return 0, MapError(err)
	}

	log.Debug("results deleted", slog.Int64("count", deleted))
	return deleted, nil
}

// WithTx implements store.ResultStore.WithTx.
func (s *PostgresResultStore) WithTx(tx *sql.Tx) store.ResultStore {
	return &PostgresResultStore{
		db:     tx,
		logger: s.logger,
	}
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanResult maps one processing_results row onto the domain type.
func scanResult(row rowScanner) (*domain.ProcessingResult, error) {
	var (
		result      domain.ProcessingResult
		status      string
		questionIDs []byte
		processed   []byte
	)

	err := row.Scan(
		&result.ID,
		&result.ResponseID,
		&result.ProcessorID,
		&result.ProcessorVersion,
		&questionIDs,
		&result.Prompt,
		&result.RawOutput,
		&processed,
		&status,
		&result.ErrorMessage,
		&result.BatchIndex,
		&result.CreatedAt,
		&result.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(questionIDs, &result.QuestionIDs); err != nil {
		return nil, fmt.Errorf("decoding question IDs: %w", err)
	}
	if processed != nil {
		result.ProcessedOutput = json.RawMessage(processed)
	}
	result.Status = domain.ResultStatus(status)

	return &result, nil
}

// nullableJSON maps an absent JSON document to SQL NULL.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
