package domain

import (
	"sort"
	"testing"

	"github.com/google/uuid"
)

func TestNewProcessingResult(t *testing.T) {
	t.Parallel()
	responseID := uuid.New()
	processorID := uuid.New()
	questionIDs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	result, err := NewProcessingResult(responseID, processorID, "sentiment@v2", questionIDs)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if result.ResponseID != responseID {
		t.Errorf("Expected response ID %s, got %s", responseID, result.ResponseID)
	}

	if result.ProcessorID != processorID {
		t.Errorf("Expected processor ID %s, got %s", processorID, result.ProcessorID)
	}

	if result.ProcessorVersion != "sentiment@v2" {
		t.Errorf("Expected processor version sentiment@v2, got %s", result.ProcessorVersion)
	}

	if result.Status != ResultStatusProcessing {
		t.Errorf("Expected status %s, got %s", ResultStatusProcessing, result.Status)
	}

	if !sort.SliceIsSorted(result.QuestionIDs, func(i, j int) bool {
		return result.QuestionIDs[i].String() < result.QuestionIDs[j].String()
	}) {
		t.Error("Expected question IDs to be sorted ascending")
	}

	if result.CreatedAt.IsZero() || result.UpdatedAt.IsZero() {
		t.Error("Expected non-zero timestamps")
	}

	// Test invalid response ID
	_, err = NewProcessingResult(uuid.Nil, processorID, "v1", questionIDs)
	if err != ErrEmptyResultResponseID {
		t.Errorf("Expected error %v, got %v", ErrEmptyResultResponseID, err)
	}

	// Test invalid processor ID
	_, err = NewProcessingResult(responseID, uuid.Nil, "v1", questionIDs)
	if err != ErrEmptyResultProcessorID {
		t.Errorf("Expected error %v, got %v", ErrEmptyResultProcessorID, err)
	}

	// Test empty question IDs
	_, err = NewProcessingResult(responseID, processorID, "v1", nil)
	if err != ErrEmptyQuestionIDs {
		t.Errorf("Expected error %v, got %v", ErrEmptyQuestionIDs, err)
	}
}

func TestProcessingResultValidate(t *testing.T) {
	t.Parallel()
	valid := ProcessingResult{
		ID:          uuid.New(),
		ResponseID:  uuid.New(),
		ProcessorID: uuid.New(),
		QuestionIDs: []uuid.UUID{uuid.New()},
		Status:      ResultStatusProcessing,
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	invalidStatus := valid
	invalidStatus.Status = "finished"
	if err := invalidStatus.Validate(); err != ErrInvalidResultStatus {
		t.Errorf("Expected error %v, got %v", ErrInvalidResultStatus, err)
	}

	missingID := valid
	missingID.ID = uuid.Nil
	if err := missingID.Validate(); err != ErrEmptyResultID {
		t.Errorf("Expected error %v, got %v", ErrEmptyResultID, err)
	}
}

func TestProcessingResultTerminalTransitions(t *testing.T) {
	t.Parallel()
	result := ProcessingResult{
		ID:          uuid.New(),
		ResponseID:  uuid.New(),
		ProcessorID: uuid.New(),
		QuestionIDs: []uuid.UUID{uuid.New()},
		Status:      ResultStatusProcessing,
	}

	if result.IsTerminal() {
		t.Error("Expected processing result not to be terminal")
	}

	result.MarkFailed("backend unavailable")
	if !result.IsTerminal() {
		t.Error("Expected failed result to be terminal")
	}
	if result.ErrorMessage == nil || *result.ErrorMessage != "backend unavailable" {
		t.Errorf("Expected error message to be set, got %v", result.ErrorMessage)
	}

	result.MarkCompleted()
	if result.Status != ResultStatusCompleted {
		t.Errorf("Expected status %s, got %s", ResultStatusCompleted, result.Status)
	}
	if result.ErrorMessage != nil {
		t.Errorf("Expected error message to be cleared, got %v", *result.ErrorMessage)
	}
}

func TestSortQuestionIDs(t *testing.T) {
	t.Parallel()
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	c := uuid.MustParse("00000000-0000-0000-0000-000000000003")

	original := []uuid.UUID{c, a, b}
	sorted := SortQuestionIDs(original)

	if sorted[0] != a || sorted[1] != b || sorted[2] != c {
		t.Errorf("Expected [%s %s %s], got %v", a, b, c, sorted)
	}

	// Input must not be mutated
	if original[0] != c {
		t.Error("Expected input slice to be left unmodified")
	}
}
