package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cognivers/pipeline/internal/events"
	"github.com/cognivers/pipeline/internal/service"
)

// Common task construction errors
var (
	ErrNilDispatcher        = errors.New("dispatcher cannot be nil")
	ErrNilExecutor          = errors.New("executor cannot be nil")
	ErrNilLogger            = errors.New("logger cannot be nil")
	ErrEmptyResponseID      = errors.New("response ID cannot be empty")
	ErrEmptyResultID        = errors.New("result ID cannot be empty")
	ErrEmptyQuestionnaireID = errors.New("questionnaire ID cannot be empty")
)

// Dispatcher is the slice of the dispatch service the tasks use.
type Dispatcher interface {
	Dispatch(ctx context.Context, responseID uuid.UUID) (service.DispatchOutcome, error)
	Requeue(ctx context.Context, responseID uuid.UUID, processorID *uuid.UUID) (service.DispatchOutcome, error)
	QueueAll(ctx context.Context, questionnaireID uuid.UUID) (service.QueueAllOutcome, error)
}

// Executor runs one processor invocation against its result row.
type Executor interface {
	Execute(ctx context.Context, resultID uuid.UUID) error
}

// baseTask carries the identity and lifecycle state shared by all
// pipeline tasks.
type baseTask struct {
	id       uuid.UUID
	taskType string
	payload  []byte
	status   TaskStatus
}

func newBaseTask(taskType string, payload any) (baseTask, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return baseTask{}, fmt.Errorf("marshaling %s payload: %w", taskType, err)
	}
	return baseTask{
		id:       uuid.New(),
		taskType: taskType,
		payload:  data,
		status:   TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier.
func (t *baseTask) ID() uuid.UUID { return t.id }

// Type returns the task type identifier.
func (t *baseTask) Type() string { return t.taskType }

// Payload returns the task data as a byte slice.
func (t *baseTask) Payload() []byte { return t.payload }

// Status returns the current task status.
func (t *baseTask) Status() TaskStatus { return t.status }

// restore rebinds a reconstructed task to its persisted identity.
func (t *baseTask) restore(id uuid.UUID, status TaskStatus) {
	t.id = id
	t.status = status
}

// DispatchTask runs a full dispatch pass over one response.
type DispatchTask struct {
	baseTask
	responseID uuid.UUID
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewDispatchTask creates a pending dispatch task for the response.
func NewDispatchTask(responseID uuid.UUID, dispatcher Dispatcher, logger *slog.Logger) (*DispatchTask, error) {
	if dispatcher == nil {
		return nil, ErrNilDispatcher
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if responseID == uuid.Nil {
		return nil, ErrEmptyResponseID
	}

	base, err := newBaseTask(TaskTypeDispatch, events.DispatchPayload{ResponseID: responseID})
	if err != nil {
		return nil, err
	}

	return &DispatchTask{
		baseTask:   base,
		responseID: responseID,
		dispatcher: dispatcher,
		logger:     logger.With("task_type", TaskTypeDispatch, "response_id", responseID),
	}, nil
}

// Execute runs the dispatch pass.
func (t *DispatchTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing

	outcome, err := t.dispatcher.Dispatch(ctx, t.responseID)
	if err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("dispatching response %s: %w", t.responseID, err)
	}

	t.status = TaskStatusCompleted
	t.logger.Info("dispatch task finished",
		"queued", outcome.Queued,
		"skipped", outcome.Skipped)
	return nil
}

// ExecuteTask runs one processor invocation, identified by the committed
// result row the dispatcher created for it.
type ExecuteTask struct {
	baseTask
	resultID uuid.UUID
	executor Executor
	logger   *slog.Logger
}

// NewExecuteTask creates a pending execute task for the result row.
func NewExecuteTask(resultID uuid.UUID, executor Executor, logger *slog.Logger) (*ExecuteTask, error) {
	if executor == nil {
		return nil, ErrNilExecutor
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if resultID == uuid.Nil {
		return nil, ErrEmptyResultID
	}

	base, err := newBaseTask(TaskTypeExecute, events.ExecutePayload{ResultID: resultID})
	if err != nil {
		return nil, err
	}

	return &ExecuteTask{
		baseTask: base,
		resultID: resultID,
		executor: executor,
		logger:   logger.With("task_type", TaskTypeExecute, "result_id", resultID),
	}, nil
}

// Execute runs the invocation.
func (t *ExecuteTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing

	if err := t.executor.Execute(ctx, t.resultID); err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("executing result %s: %w", t.resultID, err)
	}

	t.status = TaskStatusCompleted
	return nil
}

// RequeueTask clears previous results for a response and dispatches it
// again, optionally scoped to a single processor.
type RequeueTask struct {
	baseTask
	responseID  uuid.UUID
	processorID *uuid.UUID
	dispatcher  Dispatcher
	logger      *slog.Logger
}

// NewRequeueTask creates a pending requeue task.
func NewRequeueTask(
	responseID uuid.UUID,
	processorID *uuid.UUID,
	dispatcher Dispatcher,
	logger *slog.Logger,
) (*RequeueTask, error) {
	if dispatcher == nil {
		return nil, ErrNilDispatcher
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if responseID == uuid.Nil {
		return nil, ErrEmptyResponseID
	}

	base, err := newBaseTask(TaskTypeRequeue, events.RequeuePayload{
		ResponseID:  responseID,
		ProcessorID: processorID,
	})
	if err != nil {
		return nil, err
	}

	return &RequeueTask{
		baseTask:    base,
		responseID:  responseID,
		processorID: processorID,
		dispatcher:  dispatcher,
		logger:      logger.With("task_type", TaskTypeRequeue, "response_id", responseID),
	}, nil
}

// Execute clears old results and dispatches the response again.
func (t *RequeueTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing

	outcome, err := t.dispatcher.Requeue(ctx, t.responseID, t.processorID)
	if err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("requeueing response %s: %w", t.responseID, err)
	}

	t.status = TaskStatusCompleted
	t.logger.Info("requeue task finished",
		"queued", outcome.Queued,
		"skipped", outcome.Skipped)
	return nil
}

// QueueAllTask dispatches every response of a questionnaire.
type QueueAllTask struct {
	baseTask
	questionnaireID uuid.UUID
	dispatcher      Dispatcher
	logger          *slog.Logger
}

// NewQueueAllTask creates a pending queue-all task.
func NewQueueAllTask(questionnaireID uuid.UUID, dispatcher Dispatcher, logger *slog.Logger) (*QueueAllTask, error) {
	if dispatcher == nil {
		return nil, ErrNilDispatcher
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if questionnaireID == uuid.Nil {
		return nil, ErrEmptyQuestionnaireID
	}

	base, err := newBaseTask(TaskTypeQueueAll, events.QueueAllPayload{QuestionnaireID: questionnaireID})
	if err != nil {
		return nil, err
	}

	return &QueueAllTask{
		baseTask:        base,
		questionnaireID: questionnaireID,
		dispatcher:      dispatcher,
		logger:          logger.With("task_type", TaskTypeQueueAll, "questionnaire_id", questionnaireID),
	}, nil
}

// Execute runs the full pass. Per-response failures are part of the
// outcome, not task failures: the pass itself succeeded.
func (t *QueueAllTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing

	outcome, err := t.dispatcher.QueueAll(ctx, t.questionnaireID)
	if err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("queueing questionnaire %s: %w", t.questionnaireID, err)
	}

	t.status = TaskStatusCompleted
	t.logger.Info("queue-all task finished",
		"responses", outcome.Responses,
		"queued", outcome.Queued,
		"skipped", outcome.Skipped,
		"failures", len(outcome.Failures))
	return nil
}
