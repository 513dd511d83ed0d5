package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TaskRunnerConfig holds configuration for the task runner.
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks.
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue.
	QueueSize int

	// StuckTaskAge defines how long a task may sit in one state before
	// the sweep considers it stuck and re-enqueues it.
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often the sweep runs.
	// If zero, defaults to 5 minutes.
	StuckTaskCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults.
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner manages background task processing: it persists submitted
// tasks, feeds them through the queue to a worker pool, and reconciles
// tasks that lost their in-memory slot (crash, full queue, dropped
// enqueue) back into circulation.
type TaskRunner struct {
	store      TaskStore
	queue      *TaskQueue
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
}

// NewTaskRunner creates a new TaskRunner.
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		store:      store,
		queue:      NewTaskQueue(config.QueueSize, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger.With("component", "task_runner"),
	}
}

// Submit persists the task and adds it to the queue. The durable row is
// written first: if the process dies between the two steps the sweep
// finds the pending row and re-enqueues it.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.queue.Enqueue(task); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// Start recovers unfinished tasks and launches the worker pool and the
// stuck-task sweep.
func (r *TaskRunner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	return nil
}

// Stop gracefully shuts down the task runner. In-flight tasks finish;
// queued tasks stay pending in the store and are recovered on the next
// start.
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.queue.Close()
}

// Recover re-enqueues tasks a previous run left unfinished: pending rows
// whose queue slot died with the process, and processing rows interrupted
// mid-execution.
func (r *TaskRunner) Recover() error {
	ctx := context.Background()

	pendingTasks, err := r.store.GetPendingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	processingTasks, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"processing_count", len(processingTasks))

	for _, t := range pendingTasks {
		r.requeue(ctx, t, false)
	}

	for _, t := range processingTasks {
		r.requeue(ctx, t, true)
	}

	return nil
}

// requeue puts a recovered task back into circulation, resetting its row
// to pending first when it was left at processing.
func (r *TaskRunner) requeue(ctx context.Context, t Task, resetStatus bool) {
	if resetStatus {
		if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusPending, "reset after interruption"); err != nil {
			r.logger.Error("failed to reset task status",
				"task_id", t.ID(),
				"task_type", t.Type(),
				"error", err)
			return
		}
	}

	if err := r.queue.Enqueue(t); err != nil {
		// The durable row keeps its pending status, so the next sweep or
		// restart tries again.
		r.logger.Error("failed to requeue task",
			"task_id", t.ID(),
			"task_type", t.Type(),
			"error", err)
		return
	}

	r.logger.Info("requeued task",
		"task_id", t.ID(),
		"task_type", t.Type())
}

// worker processes tasks from the queue.
func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case t, ok := <-r.queue.GetChannel():
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			r.processTask(t, id)
		}
	}
}

// processTask handles execution of a single task.
func (r *TaskRunner) processTask(t Task, workerID int) {
	ctx := context.Background()
	logger := r.logger.With(
		"task_id", t.ID(),
		"task_type", t.Type(),
		"worker_id", workerID,
	)

	if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusProcessing, ""); err != nil {
		logger.Error("failed to update task status to processing", "error", err)
		return
	}

	logger.Info("processing task")

	if err := t.Execute(ctx); err != nil {
		logger.Error("task execution failed", "error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			logger.Error("failed to update task status to failed", "error", updateErr)
		}
		return
	}

	logger.Info("task completed")
	if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusCompleted, ""); err != nil {
		logger.Error("failed to update task status to completed", "error", err)
	}
}

// stuckTaskMonitor periodically reconciles the durable rows with the
// queue: processing rows older than StuckTaskAge are reset and
// re-enqueued, and pending rows of the same age (a lost enqueue or a
// full queue at submission time) go back into the queue too.
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.sweepStuckTasks()
		}
	}
}

// sweepStuckTasks runs one reconciliation pass.
func (r *TaskRunner) sweepStuckTasks() {
	ctx := context.Background()

	stuckProcessing, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
	if err != nil {
		r.logger.Error("failed to check for stuck processing tasks", "error", err)
	} else {
		for _, t := range stuckProcessing {
			r.logger.Warn("resetting stuck processing task",
				"task_id", t.ID(),
				"task_type", t.Type())
			r.requeue(ctx, t, true)
		}
	}

	stalePending, err := r.store.GetPendingTasks(ctx, r.config.StuckTaskAge)
	if err != nil {
		r.logger.Error("failed to check for stale pending tasks", "error", err)
		return
	}
	for _, t := range stalePending {
		r.logger.Warn("re-enqueueing stale pending task",
			"task_id", t.ID(),
			"task_type", t.Type())
		r.requeue(ctx, t, false)
	}
}
