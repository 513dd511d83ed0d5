package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cognivers/pipeline/internal/api/shared"
	"github.com/cognivers/pipeline/internal/domain"
	"github.com/cognivers/pipeline/internal/store"
)

// ResultResponse represents one processing result on the wire.
type ResultResponse struct {
	ID               string          `json:"id"`
	ResponseID       string          `json:"response_id"`
	ProcessorID      string          `json:"processor_id"`
	ProcessorVersion string          `json:"processor_version"`
	QuestionIDs      []string        `json:"question_ids"`
	Prompt           *string         `json:"prompt,omitempty"`
	RawOutput        *string         `json:"raw_output,omitempty"`
	ProcessedOutput  json.RawMessage `json:"processed_output,omitempty"`
	Status           string          `json:"status"`
	ErrorMessage     *string         `json:"error_message,omitempty"`
	BatchIndex       *int            `json:"batch_index,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ResultsHandler serves the stored processing results.
type ResultsHandler struct {
	results store.ResultStore
	logger  *slog.Logger
}

// NewResultsHandler creates a new ResultsHandler.
func NewResultsHandler(results store.ResultStore, logger *slog.Logger) *ResultsHandler {
	return &ResultsHandler{
		results: results,
		logger:  logger.With(slog.String("component", "results_handler")),
	}
}

// ListResponseResults handles GET /api/responses/{id}/results requests.
// A response with no results yields an empty list, not 404: results may
// simply not exist yet.
func (h *ResultsHandler) ListResponseResults(w http.ResponseWriter, r *http.Request) {
	responseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid response ID", err)
		return
	}

	results, err := h.results.ListByResponse(r.Context(), responseID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to load results", err)
		return
	}

	responses := make([]ResultResponse, len(results))
	for i, result := range results {
		responses[i] = resultToResponse(result)
	}

	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// GetResult handles GET /api/results/{id} requests.
func (h *ResultsHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	resultID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid result ID", err)
		return
	}

	result, err := h.results.GetByID(r.Context(), resultID)
	if err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Result not found", nil)
			return
		}
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to load result", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resultToResponse(result))
}

// resultToResponse converts a domain.ProcessingResult to its wire form.
func resultToResponse(result *domain.ProcessingResult) ResultResponse {
	questionIDs := make([]string, len(result.QuestionIDs))
	for i, id := range result.QuestionIDs {
		questionIDs[i] = id.String()
	}

	return ResultResponse{
		ID:               result.ID.String(),
		ResponseID:       result.ResponseID.String(),
		ProcessorID:      result.ProcessorID.String(),
		ProcessorVersion: result.ProcessorVersion,
		QuestionIDs:      questionIDs,
		Prompt:           result.Prompt,
		RawOutput:        result.RawOutput,
		ProcessedOutput:  result.ProcessedOutput,
		Status:           string(result.Status),
		ErrorMessage:     result.ErrorMessage,
		BatchIndex:       result.BatchIndex,
		CreatedAt:        result.CreatedAt,
		UpdatedAt:        result.UpdatedAt,
	}
}
