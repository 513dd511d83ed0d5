package task

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWait = 3 * time.Second

func newTestRunner(store TaskStore, config TaskRunnerConfig) *TaskRunner {
	return NewTaskRunner(store, config, slog.Default())
}

func TestTaskRunner_SubmitAndExecute(t *testing.T) {
	t.Parallel()

	store := newMemoryTaskStore()
	runner := newTestRunner(store, TaskRunnerConfig{WorkerCount: 2, QueueSize: 10})
	require.NoError(t, runner.Start())
	defer runner.Stop()

	submitted := newTestTask()
	require.NoError(t, runner.Submit(context.Background(), submitted))

	require.True(t, submitted.waitForExecution(testWait), "task was not executed")

	// Status writes race the execution signal briefly.
	assert.Eventually(t, func() bool {
		status, _ := store.statusOf(submitted.ID())
		return status == TaskStatusCompleted
	}, testWait, 10*time.Millisecond)
}

func TestTaskRunner_FailedTaskRecorded(t *testing.T) {
	t.Parallel()

	store := newMemoryTaskStore()
	runner := newTestRunner(store, TaskRunnerConfig{WorkerCount: 1, QueueSize: 10})
	require.NoError(t, runner.Start())
	defer runner.Stop()

	failing := newTestTask()
	failing.executeFn = func(ctx context.Context) error {
		return errors.New("invocation exploded")
	}
	require.NoError(t, runner.Submit(context.Background(), failing))

	require.True(t, failing.waitForExecution(testWait))
	assert.Eventually(t, func() bool {
		status, errorMsg := store.statusOf(failing.ID())
		return status == TaskStatusFailed && errorMsg == "invocation exploded"
	}, testWait, 10*time.Millisecond)
}

func TestTaskRunner_SubmitPersistsBeforeEnqueue(t *testing.T) {
	t.Parallel()

	store := newMemoryTaskStore()
	store.saveErr = errors.New("database unavailable")
	runner := newTestRunner(store, TaskRunnerConfig{WorkerCount: 1, QueueSize: 10})

	err := runner.Submit(context.Background(), newTestTask())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save task")
}

func TestTaskRunner_SubmitQueueFull(t *testing.T) {
	t.Parallel()

	store := newMemoryTaskStore()
	// No workers started, so the single slot stays occupied.
	runner := newTestRunner(store, TaskRunnerConfig{WorkerCount: 1, QueueSize: 1})

	require.NoError(t, runner.Submit(context.Background(), newTestTask()))
	err := runner.Submit(context.Background(), newTestTask())

	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestTaskRunner_RecoverRequeuesUnfinishedTasks(t *testing.T) {
	t.Parallel()

	store := newMemoryTaskStore()

	// Rows left behind by a previous process.
	pending := newTestTask()
	require.NoError(t, store.SaveTask(context.Background(), pending))

	interrupted := newTestTask()
	require.NoError(t, store.SaveTask(context.Background(), interrupted))
	require.NoError(t, store.UpdateTaskStatus(
		context.Background(), interrupted.ID(), TaskStatusProcessing, ""))

	runner := newTestRunner(store, TaskRunnerConfig{WorkerCount: 2, QueueSize: 10})
	require.NoError(t, runner.Start())
	defer runner.Stop()

	require.True(t, pending.waitForExecution(testWait), "pending task was not recovered")
	require.True(t, interrupted.waitForExecution(testWait), "processing task was not recovered")

	assert.Eventually(t, func() bool {
		pendingStatus, _ := store.statusOf(pending.ID())
		interruptedStatus, _ := store.statusOf(interrupted.ID())
		return pendingStatus == TaskStatusCompleted && interruptedStatus == TaskStatusCompleted
	}, testWait, 10*time.Millisecond)
}

func TestTaskRunner_SweepRequeuesStuckTasks(t *testing.T) {
	t.Parallel()

	store := newMemoryTaskStore()
	runner := newTestRunner(store, TaskRunnerConfig{
		WorkerCount:            1,
		QueueSize:              10,
		StuckTaskAge:           50 * time.Millisecond,
		StuckTaskCheckInterval: 20 * time.Millisecond,
	})
	require.NoError(t, runner.Start())
	defer runner.Stop()

	// A row stuck at processing, e.g. after a worker crash elsewhere.
	stuck := newTestTask()
	require.NoError(t, store.SaveTask(context.Background(), stuck))
	require.NoError(t, store.UpdateTaskStatus(
		context.Background(), stuck.ID(), TaskStatusProcessing, ""))
	store.age(stuck.ID(), time.Minute)

	// A pending row that never made it into the queue.
	dropped := newTestTask()
	require.NoError(t, store.SaveTask(context.Background(), dropped))
	store.age(dropped.ID(), time.Minute)

	require.True(t, stuck.waitForExecution(testWait), "stuck processing task was not swept")
	require.True(t, dropped.waitForExecution(testWait), "stale pending task was not swept")
}

func TestTaskRunner_SweepLeavesFailedTasksAlone(t *testing.T) {
	t.Parallel()

	store := newMemoryTaskStore()
	runner := newTestRunner(store, TaskRunnerConfig{
		WorkerCount:            1,
		QueueSize:              10,
		StuckTaskAge:           50 * time.Millisecond,
		StuckTaskCheckInterval: 20 * time.Millisecond,
	})
	require.NoError(t, runner.Start())
	defer runner.Stop()

	// A row the runner already gave up on, aged well past the stuck
	// threshold.
	failed := newTestTask()
	require.NoError(t, store.SaveTask(context.Background(), failed))
	require.NoError(t, store.UpdateTaskStatus(
		context.Background(), failed.ID(), TaskStatusFailed, "store unavailable"))
	store.age(failed.ID(), time.Minute)

	// Failed rows wait for a manual requeue; the sweep must not loop
	// them back into the queue.
	assert.False(t, failed.waitForExecution(300*time.Millisecond),
		"sweep retried a failed task")
	status, errorMsg := store.statusOf(failed.ID())
	assert.Equal(t, TaskStatusFailed, status)
	assert.Equal(t, "store unavailable", errorMsg)
}

func TestTaskRunner_StopWaitsForWorkers(t *testing.T) {
	t.Parallel()

	store := newMemoryTaskStore()
	runner := newTestRunner(store, TaskRunnerConfig{WorkerCount: 1, QueueSize: 10})
	require.NoError(t, runner.Start())

	slow := newTestTask()
	started := make(chan struct{})
	slow.executeFn = func(ctx context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	require.NoError(t, runner.Submit(context.Background(), slow))

	select {
	case <-started:
	case <-time.After(testWait):
		t.Fatal("task never started")
	}

	runner.Stop()

	assert.Equal(t, 1, slow.executions(), "in-flight task finishes before Stop returns")
	status, _ := store.statusOf(slow.ID())
	assert.Equal(t, TaskStatusCompleted, status)
}
