package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ResponseMeta carries the response-level identifiers the pipeline needs
// from the external questionnaire domain.
type ResponseMeta struct {
	ID              uuid.UUID `json:"id"`
	QuestionnaireID uuid.UUID `json:"questionnaire_id"`
	UserID          uuid.UUID `json:"user_id"`
}

// QuestionAnswer is the stored snapshot of one answered question: the
// question's text, type, and configuration as they were when the response
// was submitted, plus the answer payload.
type QuestionAnswer struct {
	QuestionID uuid.UUID       `json:"question_id"`
	Text       string          `json:"text"`
	Type       string          `json:"type"`
	Answer     json.RawMessage `json:"answer"`
}

// AnswerText renders the answer payload as a plain string for templating.
// String answers are unquoted; any other JSON shape is passed through in
// its compact encoded form.
func (q QuestionAnswer) AnswerText() string {
	var s string
	if err := json.Unmarshal(q.Answer, &s); err == nil {
		return s
	}
	return string(q.Answer)
}

// ProcessorBinding couples an active processor with the question IDs it is
// bound to for one questionnaire. The dispatcher turns each binding into a
// single unit of work; bindings of different processors may overlap.
type ProcessorBinding struct {
	Processor   *Processor  `json:"processor"`
	QuestionIDs []uuid.UUID `json:"question_ids"`
}
