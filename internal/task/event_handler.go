package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cognivers/pipeline/internal/events"
)

// TaskCreator builds a task from an event's type and payload.
type TaskCreator interface {
	CreateTask(taskType string, payload []byte) (Task, error)
}

// TaskSubmitter accepts tasks for background execution.
type TaskSubmitter interface {
	Submit(ctx context.Context, task Task) error
}

// TaskEventHandler bridges the event emitter and the task runner: every
// task-request event becomes a persisted, queued task.
type TaskEventHandler struct {
	factory   TaskCreator
	submitter TaskSubmitter
	logger    *slog.Logger
}

// NewTaskEventHandler creates the handler with validated dependencies.
func NewTaskEventHandler(factory TaskCreator, submitter TaskSubmitter, logger *slog.Logger) (*TaskEventHandler, error) {
	if factory == nil {
		return nil, fmt.Errorf("task factory cannot be nil")
	}
	if submitter == nil {
		return nil, fmt.Errorf("task submitter cannot be nil")
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &TaskEventHandler{
		factory:   factory,
		submitter: submitter,
		logger:    logger.With("component", "task_event_handler"),
	}, nil
}

// HandleEvent turns the event into a task and submits it. Events with a
// type the factory does not know are logged and dropped rather than
// failing the emit, so adding new event kinds stays backward compatible.
func (h *TaskEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	log := h.logger.With(
		"event_id", event.ID,
		"event_type", event.Type)

	created, err := h.factory.CreateTask(event.Type, event.Payload)
	if err != nil {
		if errors.Is(err, ErrUnknownTaskType) {
			log.Warn("ignoring event with unknown type")
			return nil
		}
		log.Error("failed to create task from event", "error", err)
		return fmt.Errorf("creating task from event: %w", err)
	}

	if err := h.submitter.Submit(ctx, created); err != nil {
		log.Error("failed to submit task", "error", err, "task_id", created.ID())
		return fmt.Errorf("submitting task: %w", err)
	}

	log.Debug("task created and submitted", "task_id", created.ID())
	return nil
}

// Ensure TaskEventHandler implements events.EventHandler.
var _ events.EventHandler = (*TaskEventHandler)(nil)
