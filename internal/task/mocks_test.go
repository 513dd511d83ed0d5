package task

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cognivers/pipeline/internal/service"
)

// testTask is a controllable Task implementation for runner and queue
// tests.
type testTask struct {
	id        uuid.UUID
	taskType  string
	payload   []byte
	status    TaskStatus
	executeFn func(ctx context.Context) error

	mu       sync.Mutex
	executed int
	done     chan struct{}
}

func newTestTask() *testTask {
	return &testTask{
		id:       uuid.New(),
		taskType: "test_task",
		payload:  []byte(`{}`),
		status:   TaskStatusPending,
		done:     make(chan struct{}, 16),
	}
}

func (t *testTask) ID() uuid.UUID      { return t.id }
func (t *testTask) Type() string       { return t.taskType }
func (t *testTask) Payload() []byte    { return t.payload }
func (t *testTask) Status() TaskStatus { return t.status }

func (t *testTask) Execute(ctx context.Context) error {
	t.mu.Lock()
	t.executed++
	t.mu.Unlock()

	var err error
	if t.executeFn != nil {
		err = t.executeFn(ctx)
	}
	t.done <- struct{}{}
	return err
}

func (t *testTask) executions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.executed
}

// waitForExecution blocks until the task ran once or the timeout expires.
func (t *testTask) waitForExecution(timeout time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// storedTask is one row of the in-memory task store.
type storedTask struct {
	task      Task
	status    TaskStatus
	errorMsg  string
	updatedAt time.Time
}

// memoryTaskStore is an in-memory TaskStore for runner tests.
type memoryTaskStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*storedTask

	saveErr   error
	updateErr error
	listErr   error
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{rows: make(map[uuid.UUID]*storedTask)}
}

func (s *memoryTaskStore) SaveTask(ctx context.Context, t Task) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[t.ID()] = &storedTask{
		task:      t,
		status:    t.Status(),
		updatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *memoryTaskStore) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[taskID]
	if !ok {
		return sql.ErrNoRows
	}
	row.status = status
	row.errorMsg = errorMsg
	row.updatedAt = time.Now().UTC()
	return nil
}

func (s *memoryTaskStore) GetPendingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error) {
	return s.listByStatus(TaskStatusPending, olderThan)
}

func (s *memoryTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error) {
	return s.listByStatus(TaskStatusProcessing, olderThan)
}

func (s *memoryTaskStore) listByStatus(status TaskStatus, olderThan time.Duration) ([]Task, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var tasks []Task
	for _, row := range s.rows {
		if row.status != status {
			continue
		}
		if olderThan > 0 && row.updatedAt.After(cutoff) {
			continue
		}
		tasks = append(tasks, row.task)
	}
	return tasks, nil
}

func (s *memoryTaskStore) WithTx(tx *sql.Tx) TaskStore {
	return s
}

func (s *memoryTaskStore) statusOf(taskID uuid.UUID) (TaskStatus, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[taskID]
	if !ok {
		return "", ""
	}
	return row.status, row.errorMsg
}

// age backdates a row so the stuck sweep sees it.
func (s *memoryTaskStore) age(taskID uuid.UUID, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[taskID]; ok {
		row.updatedAt = row.updatedAt.Add(-d)
	}
}

// fakeDispatcher records dispatch, requeue, and queue-all calls.
type fakeDispatcher struct {
	mu              sync.Mutex
	dispatchErr     error
	requeueErr      error
	queueAllErr     error
	outcome         service.DispatchOutcome
	queueAllOutcome service.QueueAllOutcome
	dispatched      []uuid.UUID
	requeued        []uuid.UUID
	requeueScope    []*uuid.UUID
	queuedAll       []uuid.UUID
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, responseID uuid.UUID) (service.DispatchOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, responseID)
	return f.outcome, f.dispatchErr
}

func (f *fakeDispatcher) Requeue(ctx context.Context, responseID uuid.UUID, processorID *uuid.UUID) (service.DispatchOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeued = append(f.requeued, responseID)
	f.requeueScope = append(f.requeueScope, processorID)
	return f.outcome, f.requeueErr
}

func (f *fakeDispatcher) QueueAll(ctx context.Context, questionnaireID uuid.UUID) (service.QueueAllOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queuedAll = append(f.queuedAll, questionnaireID)
	return f.queueAllOutcome, f.queueAllErr
}

// fakeExecutor records executed result IDs.
type fakeExecutor struct {
	mu       sync.Mutex
	err      error
	executed []uuid.UUID
}

func (f *fakeExecutor) Execute(ctx context.Context, resultID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, resultID)
	return f.err
}

var (
	_ Task       = (*testTask)(nil)
	_ TaskStore  = (*memoryTaskStore)(nil)
	_ Dispatcher = (*fakeDispatcher)(nil)
	_ Executor   = (*fakeExecutor)(nil)
)
