// Package render builds the prompt context for a processor invocation and
// renders the processor's template against it. It is pure: no I/O, no
// clock, no randomness.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"

	"github.com/google/uuid"

	"github.com/cognivers/pipeline/internal/domain"
)

// Common renderer errors
var (
	ErrEmptyTemplate = errors.New("prompt template cannot be empty")
	ErrNoQuestions   = errors.New("render context must contain at least one question")
)

// Question is one entry of the render context: the stored snapshot of an
// answered question plus its 1-based position in the invocation.
// The JSON field names are part of the post-processing contract: the
// sandbox receives this structure as prompt_data.
type Question struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Type   string `json:"type"`
	Answer string `json:"answer"`
	Index  int    `json:"index"`
}

// Context is the data a prompt template is executed against. Template
// authors iterate .Questions and reference the response identifiers; no
// other data is reachable from a template.
type Context struct {
	QuestionnaireID string     `json:"questionnaire_id"`
	UserID          string     `json:"user_id"`
	Questions       []Question `json:"questions"`
}

// BuildContext assembles the render context from the response metadata and
// the question-answer snapshots. Answers must already be in their final
// order (question ID ascending); Index is assigned 1-based across it.
func BuildContext(meta domain.ResponseMeta, answers []domain.QuestionAnswer) Context {
	questions := make([]Question, len(answers))
	for i, answer := range answers {
		questions[i] = Question{
			ID:     answer.QuestionID.String(),
			Text:   answer.Text,
			Type:   answer.Type,
			Answer: answer.AnswerText(),
			Index:  i + 1,
		}
	}

	return Context{
		QuestionnaireID: meta.QuestionnaireID.String(),
		UserID:          meta.UserID.String(),
		Questions:       questions,
	}
}

// Render parses the template source and executes it against the context.
// Missing fields are errors rather than empty output so a typoed template
// fails loudly at execution instead of producing a silently wrong prompt.
// Any returned error is a configuration problem: the same template and
// context will fail the same way on every attempt.
func Render(templateSource string, renderCtx Context) (string, error) {
	if templateSource == "" {
		return "", ErrEmptyTemplate
	}

	if len(renderCtx.Questions) == 0 {
		return "", ErrNoQuestions
	}

	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(templateSource)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, renderCtx); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return buf.String(), nil
}

// SortAnswers returns the answers sorted ascending by question ID, the
// canonical order for both prompt rendering and the stored question_ids.
func SortAnswers(answers []domain.QuestionAnswer) []domain.QuestionAnswer {
	ids := make([]uuid.UUID, len(answers))
	byID := make(map[uuid.UUID]domain.QuestionAnswer, len(answers))
	for i, answer := range answers {
		ids[i] = answer.QuestionID
		byID[answer.QuestionID] = answer
	}

	sorted := make([]domain.QuestionAnswer, 0, len(answers))
	for _, id := range domain.SortQuestionIDs(ids) {
		sorted = append(sorted, byID[id])
	}
	return sorted
}
