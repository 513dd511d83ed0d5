package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cognivers/pipeline/internal/api/shared"
	"github.com/cognivers/pipeline/internal/events"
	"github.com/cognivers/pipeline/internal/store"
)

// RequeueRequest is the optional body of a requeue call. Without a
// processor ID the whole response is requeued.
type RequeueRequest struct {
	ProcessorID string `json:"processor_id" validate:"omitempty,uuid4"`
}

// AcceptedResponse acknowledges an asynchronously handled request.
type AcceptedResponse struct {
	Job             string `json:"job"`
	EventID         string `json:"event_id"`
	ResponseID      string `json:"response_id,omitempty"`
	QuestionnaireID string `json:"questionnaire_id,omitempty"`
}

// PipelineHandler handles the write side of the API: requests that
// trigger background processing.
type PipelineHandler struct {
	emitter   events.EventEmitter
	responses store.ResponseStore
	logger    *slog.Logger
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(emitter events.EventEmitter, responses store.ResponseStore, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{
		emitter:   emitter,
		responses: responses,
		logger:    logger.With(slog.String("component", "pipeline_handler")),
	}
}

// DispatchResponse handles POST /api/responses/{id}/dispatch requests.
func (h *PipelineHandler) DispatchResponse(w http.ResponseWriter, r *http.Request) {
	responseID, ok := h.knownResponseID(w, r)
	if !ok {
		return
	}

	h.emitJob(w, r, events.JobDispatchResponse,
		events.DispatchPayload{ResponseID: responseID},
		AcceptedResponse{Job: events.JobDispatchResponse, ResponseID: responseID.String()})
}

// RequeueResponse handles POST /api/responses/{id}/requeue requests.
func (h *PipelineHandler) RequeueResponse(w http.ResponseWriter, r *http.Request) {
	responseID, ok := h.knownResponseID(w, r)
	if !ok {
		return
	}

	var req RequeueRequest
	if err := shared.DecodeJSONOptional(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error(), nil)
		return
	}

	payload := events.RequeuePayload{ResponseID: responseID}
	if req.ProcessorID != "" {
		processorID, err := uuid.Parse(req.ProcessorID)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid processor ID", err)
			return
		}
		payload.ProcessorID = &processorID
	}

	h.emitJob(w, r, events.JobRequeueProcessing, payload,
		AcceptedResponse{Job: events.JobRequeueProcessing, ResponseID: responseID.String()})
}

// QueueAll handles POST /api/questionnaires/{id}/queue-all requests.
// An unknown or empty questionnaire is not an error: the pass simply
// dispatches nothing.
func (h *PipelineHandler) QueueAll(w http.ResponseWriter, r *http.Request) {
	questionnaireID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid questionnaire ID", err)
		return
	}

	// The fan-out over the questionnaire's responses happens inside the
	// dispatch service, on a worker.
	h.emitJob(w, r, events.JobQueueAll,
		events.QueueAllPayload{QuestionnaireID: questionnaireID},
		AcceptedResponse{Job: events.JobQueueAll, QuestionnaireID: questionnaireID.String()})
}

// knownResponseID parses the response ID from the URL and verifies the
// response exists, writing the error response itself when it does not.
func (h *PipelineHandler) knownResponseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	responseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid response ID", err)
		return uuid.Nil, false
	}

	if _, err := h.responses.GetMeta(r.Context(), responseID); err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Response not found", nil)
		} else {
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to load response", err)
		}
		return uuid.Nil, false
	}

	return responseID, true
}

// emitJob builds and emits the job-request event and acknowledges with
// 202 Accepted.
func (h *PipelineHandler) emitJob(w http.ResponseWriter, r *http.Request, job string, payload any, ack AcceptedResponse) {
	event, err := events.NewTaskRequestEvent(job, payload)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to build job request", err)
		return
	}

	if err := h.emitter.EmitEvent(r.Context(), event); err != nil {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to enqueue job", err)
		return
	}

	h.logger.Info("job accepted",
		slog.String("job", job),
		slog.String("event_id", event.ID.String()))

	ack.EventID = event.ID.String()
	shared.RespondWithJSON(w, r, http.StatusAccepted, ack)
}
