package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cognivers/pipeline/internal/events"
)

// ErrUnknownTaskType is returned when a task type has no registered
// construction logic.
var ErrUnknownTaskType = errors.New("unknown task type")

// TaskFactory builds executable pipeline tasks, either fresh from an
// event payload or reconstructed from a persisted task row.
type TaskFactory struct {
	dispatcher Dispatcher
	executor   Executor
	logger     *slog.Logger
}

// NewTaskFactory creates a factory wired to the pipeline services.
func NewTaskFactory(dispatcher Dispatcher, executor Executor, logger *slog.Logger) (*TaskFactory, error) {
	if dispatcher == nil {
		return nil, ErrNilDispatcher
	}
	if executor == nil {
		return nil, ErrNilExecutor
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &TaskFactory{
		dispatcher: dispatcher,
		executor:   executor,
		logger:     logger,
	}, nil
}

// CreateTask builds a new pending task of the given type from its JSON
// payload.
func (f *TaskFactory) CreateTask(taskType string, payload []byte) (Task, error) {
	switch taskType {
	case TaskTypeDispatch:
		var p events.DispatchPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", taskType, err)
		}
		return NewDispatchTask(p.ResponseID, f.dispatcher, f.logger)

	case TaskTypeExecute:
		var p events.ExecutePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", taskType, err)
		}
		return NewExecuteTask(p.ResultID, f.executor, f.logger)

	case TaskTypeRequeue:
		var p events.RequeuePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", taskType, err)
		}
		return NewRequeueTask(p.ResponseID, p.ProcessorID, f.dispatcher, f.logger)

	case TaskTypeQueueAll:
		var p events.QueueAllPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", taskType, err)
		}
		return NewQueueAllTask(p.QuestionnaireID, f.dispatcher, f.logger)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}
}

// Reconstruct rebuilds a task from its persisted row so recovery runs it
// with the same wiring as a fresh submission.
func (f *TaskFactory) Reconstruct(
	id uuid.UUID,
	taskType string,
	payload []byte,
	status TaskStatus,
) (Task, error) {
	created, err := f.CreateTask(taskType, payload)
	if err != nil {
		return nil, err
	}

	switch t := created.(type) {
	case *DispatchTask:
		t.restore(id, status)
	case *ExecuteTask:
		t.restore(id, status)
	case *RequeueTask:
		t.restore(id, status)
	case *QueueAllTask:
		t.restore(id, status)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}

	return created, nil
}

// Ensure TaskFactory satisfies the recovery contract.
var _ Reconstructor = (*TaskFactory)(nil)
