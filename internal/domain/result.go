package domain

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ResultStatus represents the processing state of a ProcessingResult.
type ResultStatus string

// Possible result status values
const (
	ResultStatusPending    ResultStatus = "pending"
	ResultStatusProcessing ResultStatus = "processing"
	ResultStatusCompleted  ResultStatus = "completed"
	ResultStatusFailed     ResultStatus = "failed"
)

// Common validation errors for ProcessingResult
var (
	ErrEmptyResultID          = errors.New("result ID cannot be empty")
	ErrEmptyResultResponseID  = errors.New("result response ID cannot be empty")
	ErrEmptyResultProcessorID = errors.New("result processor ID cannot be empty")
	ErrEmptyQuestionIDs       = errors.New("result question IDs cannot be empty")
	ErrInvalidResultStatus    = errors.New("invalid result status")
)

// ProcessingResult is one record per (questionnaire response, processor)
// pair the pipeline decided to run. It is created by the dispatcher,
// mutated by the executor as it progresses, and deleted only by requeue.
type ProcessingResult struct {
	ID               uuid.UUID       `json:"id"`
	ResponseID       uuid.UUID       `json:"response_id"`
	ProcessorID      uuid.UUID       `json:"processor_id"`
	ProcessorVersion string          `json:"processor_version"`
	QuestionIDs      []uuid.UUID     `json:"question_ids"`
	Prompt           *string         `json:"prompt,omitempty"`
	RawOutput        *string         `json:"raw_output,omitempty"`
	ProcessedOutput  json.RawMessage `json:"processed_output,omitempty"`
	Status           ResultStatus    `json:"status"`
	ErrorMessage     *string         `json:"error_message,omitempty"`
	BatchIndex       *int            `json:"batch_index,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewProcessingResult creates a ProcessingResult for the given pair with
// status processing. Question IDs are copied and sorted ascending so the
// stored order is stable regardless of how the bindings were returned.
func NewProcessingResult(
	responseID, processorID uuid.UUID,
	processorVersion string,
	questionIDs []uuid.UUID,
) (*ProcessingResult, error) {
	now := time.Now().UTC()
	result := &ProcessingResult{
		ID:               uuid.New(),
		ResponseID:       responseID,
		ProcessorID:      processorID,
		ProcessorVersion: processorVersion,
		QuestionIDs:      SortQuestionIDs(questionIDs),
		Status:           ResultStatusProcessing,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}

	return result, nil
}

// Validate checks if the ProcessingResult has valid data.
func (r *ProcessingResult) Validate() error {
	if r.ID == uuid.Nil {
		return ErrEmptyResultID
	}

	if r.ResponseID == uuid.Nil {
		return ErrEmptyResultResponseID
	}

	if r.ProcessorID == uuid.Nil {
		return ErrEmptyResultProcessorID
	}

	if len(r.QuestionIDs) == 0 {
		return ErrEmptyQuestionIDs
	}

	if !isValidResultStatus(r.Status) {
		return ErrInvalidResultStatus
	}

	return nil
}

// IsTerminal reports whether the result has reached a final status.
func (r *ProcessingResult) IsTerminal() bool {
	return r.Status == ResultStatusCompleted || r.Status == ResultStatusFailed
}

// MarkFailed sets the terminal failed status with the given message and
// bumps the updated timestamp.
func (r *ProcessingResult) MarkFailed(message string) {
	r.Status = ResultStatusFailed
	r.ErrorMessage = &message
	r.UpdatedAt = time.Now().UTC()
}

// MarkCompleted sets the terminal completed status and clears any error
// message left over from a previous attempt.
func (r *ProcessingResult) MarkCompleted() {
	r.Status = ResultStatusCompleted
	r.ErrorMessage = nil
	r.UpdatedAt = time.Now().UTC()
}

// SortQuestionIDs returns a sorted copy of the given question IDs.
// Ordering is ascending by the canonical string form, which gives the
// stable per-invocation question order the executor relies on.
func SortQuestionIDs(ids []uuid.UUID) []uuid.UUID {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})
	return sorted
}

// isValidResultStatus checks if the given status is a valid ResultStatus.
func isValidResultStatus(status ResultStatus) bool {
	switch status {
	case ResultStatusPending, ResultStatusProcessing, ResultStatusCompleted, ResultStatusFailed:
		return true
	default:
		return false
	}
}
