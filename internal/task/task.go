package task

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cognivers/pipeline/internal/events"
)

// TaskStatus represents the current state of a task row.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task type identifiers. These equal the event job kinds so a persisted
// task row and the event that requested it carry the same type string.
const (
	TaskTypeDispatch = events.JobDispatchResponse
	TaskTypeExecute  = events.JobExecuteProcessor
	TaskTypeRequeue  = events.JobRequeueProcessing
	TaskTypeQueueAll = events.JobQueueAll
)

// Task represents a unit of background work to be processed.
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Payload returns the task data as a byte slice
	Payload() []byte

	// Status returns the current task status
	Status() TaskStatus

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// Reconstructor rebuilds an executable Task from its persisted type and
// payload. The task store uses it when loading rows after a restart, so
// recovered tasks run with the same wiring as freshly submitted ones.
type Reconstructor interface {
	Reconstruct(id uuid.UUID, taskType string, payload []byte, status TaskStatus) (Task, error)
}

// TaskStore defines the interface for persisting tasks.
type TaskStore interface {
	// SaveTask persists a task to the database
	SaveTask(ctx context.Context, task Task) error

	// UpdateTaskStatus updates the status of a task
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error

	// GetPendingTasks retrieves tasks with "pending" status. If olderThan
	// is non-zero, only tasks that entered the state longer ago than the
	// given duration are returned.
	GetPendingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error)

	// GetProcessingTasks retrieves tasks with "processing" status, with
	// the same olderThan semantics as GetPendingTasks.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
