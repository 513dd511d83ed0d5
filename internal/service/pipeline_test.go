package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognivers/pipeline/internal/domain"
	"github.com/cognivers/pipeline/internal/events"
)

// pipelineFixture composes the dispatcher and the executor over one set
// of shared fakes, the way the task runner drives them in production.
type pipelineFixture struct {
	dispatcher *DispatchService
	executor   *ExecutorService
	results    *fakeResultStore
	processors *fakeProcessorStore
	responses  *fakeResponseStore
	emitter    *fakeEmitter
	generator  *fakeGenerator
	sandbox    *fakeSandbox

	executed int
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		results:    newFakeResultStore(),
		processors: newFakeProcessorStore(),
		responses:  newFakeResponseStore(),
		emitter:    &fakeEmitter{},
		generator:  &fakeGenerator{output: "generated output"},
		sandbox:    &fakeSandbox{output: []byte(`{"score":5}`)},
	}

	dispatcher, err := NewDispatchService(
		&fakeTxRunner{}, f.results, f.processors, f.responses, f.emitter,
		slog.Default(), 4)
	require.NoError(t, err)
	f.dispatcher = dispatcher

	executor, err := NewExecutorService(
		f.results, f.processors, f.responses, f.generator, f.sandbox,
		slog.Default())
	require.NoError(t, err)
	f.executor = executor

	return f
}

// addProcessor registers an active processor bound to the given question.
func (f *pipelineFixture) addProcessor(questionnaireID uuid.UUID, name, template string, questionID uuid.UUID) *domain.Processor {
	processor := &domain.Processor{
		ID:             uuid.New(),
		Name:           name,
		Version:        "v1",
		PromptTemplate: template,
		Interpreter:    domain.InterpreterNone,
		Status:         domain.ProcessorStatusActive,
	}
	f.processors.processors[processor.ID] = processor
	f.processors.bindings[questionnaireID] = append(
		f.processors.bindings[questionnaireID],
		domain.ProcessorBinding{Processor: processor, QuestionIDs: []uuid.UUID{questionID}},
	)
	return processor
}

// executeEmitted runs the executor for every job queued since the
// previous call.
func (f *pipelineFixture) executeEmitted(t *testing.T) {
	t.Helper()
	emitted := f.emitter.emitted()
	for _, event := range emitted[f.executed:] {
		require.Equal(t, events.JobExecuteProcessor, event.Type)

		var payload events.ExecutePayload
		require.NoError(t, event.UnmarshalPayload(&payload))
		require.NoError(t, f.executor.Execute(context.Background(), payload.ResultID))
	}
	f.executed = len(emitted)
}

// One processor hitting a generation failure must not disturb the
// results of its siblings on the same response.
func TestPipeline_FailureDoesNotAffectSiblings(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t)

	questionnaireID := uuid.New()
	questionID := uuid.New()
	summary := f.addProcessor(questionnaireID, "summary",
		"Summarize:\n{{range .Questions}}{{.Answer}}{{end}}", questionID)
	scoring := f.addProcessor(questionnaireID, "scoring",
		"Score the answers:\n{{range .Questions}}{{.Answer}}{{end}}", questionID)

	responseID := uuid.New()
	f.responses.metas[responseID] = &domain.ResponseMeta{
		ID:              responseID,
		QuestionnaireID: questionnaireID,
		UserID:          uuid.New(),
	}
	f.responses.answers[responseID] = []domain.QuestionAnswer{
		{QuestionID: questionID, Text: "Rate the course", Type: "free_text", Answer: []byte(`"Great"`)},
	}

	// Only the scoring prompt hits the backend failure.
	f.generator.failContaining = "Score the answers"
	f.generator.failErr = errors.New("model overloaded")

	outcome, err := f.dispatcher.Dispatch(context.Background(), responseID)
	require.NoError(t, err)
	require.Equal(t, DispatchOutcome{Queued: 2, Skipped: 0}, outcome)

	f.executeEmitted(t)

	summaryRow := f.results.rowByPair(responseID, summary.ID)
	require.NotNil(t, summaryRow)
	assert.Equal(t, domain.ResultStatusCompleted, summaryRow.Status)
	require.NotNil(t, summaryRow.RawOutput)
	assert.Equal(t, "generated output", *summaryRow.RawOutput)
	assert.Nil(t, summaryRow.ErrorMessage)

	scoringRow := f.results.rowByPair(responseID, scoring.ID)
	require.NotNil(t, scoringRow)
	assert.Equal(t, domain.ResultStatusFailed, scoringRow.Status)
	require.NotNil(t, scoringRow.ErrorMessage)
	assert.Contains(t, *scoringRow.ErrorMessage, "generation backend error")
	assert.Contains(t, *scoringRow.ErrorMessage, "model overloaded")

	// A later requeue of just the failed processor leaves the completed
	// sibling untouched.
	f.generator.failContaining = ""
	requeued, err := f.dispatcher.Requeue(context.Background(), responseID, &scoring.ID)
	require.NoError(t, err)
	assert.Equal(t, DispatchOutcome{Queued: 1, Skipped: 1}, requeued)

	f.executeEmitted(t)

	scoringRow = f.results.rowByPair(responseID, scoring.ID)
	require.NotNil(t, scoringRow)
	assert.Equal(t, domain.ResultStatusCompleted, scoringRow.Status)

	after := f.results.rowByPair(responseID, summary.ID)
	require.NotNil(t, after)
	assert.Equal(t, summaryRow.ID, after.ID)
	assert.Equal(t, domain.ResultStatusCompleted, after.Status)
}
