package events

import "github.com/google/uuid"

// Job kinds carried in TaskRequestEvent.Type. The task factory uses these
// to reconstruct the right task from a persisted row, so the strings are
// part of the durable task format and must stay stable.
const (
	JobDispatchResponse  = "dispatch_response"
	JobExecuteProcessor  = "execute_processor"
	JobRequeueProcessing = "requeue_processing"
	JobQueueAll          = "queue_all_processing"
)

// DispatchPayload asks for a full dispatch pass over one response.
type DispatchPayload struct {
	ResponseID uuid.UUID `json:"response_id"`
}

// ExecutePayload asks for one processor invocation, identified by the
// already-persisted result row it must fill in.
type ExecutePayload struct {
	ResultID uuid.UUID `json:"result_id"`
}

// RequeuePayload asks to clear previous results for a response and
// dispatch it again. When ProcessorID is set only that processor's result
// is cleared; the others keep their terminal state and are skipped.
type RequeuePayload struct {
	ResponseID  uuid.UUID  `json:"response_id"`
	ProcessorID *uuid.UUID `json:"processor_id,omitempty"`
}

// QueueAllPayload asks for a dispatch pass over every response of a
// questionnaire.
type QueueAllPayload struct {
	QuestionnaireID uuid.UUID `json:"questionnaire_id"`
}
