package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recovererFunc func(ctx context.Context) ([]Task, error)

func (f recovererFunc) PendingTasks(ctx context.Context) ([]Task, error) {
	return f(ctx)
}

func TestTaskRunner_SubmitAndRun(t *testing.T) {
	runner := NewTaskRunner(nil, TaskRunnerConfig{WorkerCount: 2, QueueSize: 10}, setupTestLogger(t))
	require.NoError(t, runner.Start(context.Background()))
	defer runner.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		task := newMockTask()
		task.execFn = func(ctx context.Context) error {
			wg.Done()
			return nil
		}
		require.NoError(t, runner.Submit(context.Background(), task))
	}

	waitOrFail(t, &wg)
}

func TestTaskRunner_SubmitErrors(t *testing.T) {
	t.Run("queue full", func(t *testing.T) {
		runner := NewTaskRunner(nil, TaskRunnerConfig{WorkerCount: 1, QueueSize: 1}, setupTestLogger(t))
		defer runner.Stop()

		require.NoError(t, runner.Submit(context.Background(), newMockTask()))
		err := runner.Submit(context.Background(), newMockTask())
		assert.ErrorIs(t, err, ErrQueueFull)
	})

	t.Run("cancelled context", func(t *testing.T) {
		runner := NewTaskRunner(nil, DefaultTaskRunnerConfig(), setupTestLogger(t))
		defer runner.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, runner.Submit(ctx, newMockTask()), context.Canceled)
	})

	t.Run("after stop", func(t *testing.T) {
		runner := NewTaskRunner(nil, DefaultTaskRunnerConfig(), setupTestLogger(t))
		require.NoError(t, runner.Start(context.Background()))
		runner.Stop()
		runner.Stop()

		assert.ErrorIs(t, runner.Submit(context.Background(), newMockTask()), ErrQueueClosed)
		assert.ErrorIs(t, runner.Start(context.Background()), ErrQueueClosed)
	})
}

func TestTaskRunner_RecoversPendingTasks(t *testing.T) {
	var wg sync.WaitGroup
	recovered := make([]Task, 0, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		task := newMockTask()
		task.execFn = func(ctx context.Context) error {
			wg.Done()
			return nil
		}
		recovered = append(recovered, task)
	}

	recoverer := recovererFunc(func(ctx context.Context) ([]Task, error) {
		return recovered, nil
	})
	runner := NewTaskRunner(recoverer, TaskRunnerConfig{WorkerCount: 1, QueueSize: 10}, setupTestLogger(t))
	require.NoError(t, runner.Start(context.Background()))
	defer runner.Stop()

	waitOrFail(t, &wg)
}

func TestTaskRunner_RecoveryOverflowIsSkipped(t *testing.T) {
	recoverer := recovererFunc(func(ctx context.Context) ([]Task, error) {
		return []Task{newMockTask(), newMockTask(), newMockTask()}, nil
	})
	runner := NewTaskRunner(recoverer, TaskRunnerConfig{WorkerCount: 1, QueueSize: 2}, setupTestLogger(t))

	require.NoError(t, runner.recover(context.Background()))
	assert.Equal(t, 2, runner.queue.Len())
	runner.Stop()
}

func TestTaskRunner_RecoveryFailure(t *testing.T) {
	listErr := errors.New("list failed")
	recoverer := recovererFunc(func(ctx context.Context) ([]Task, error) {
		return nil, listErr
	})
	runner := NewTaskRunner(recoverer, DefaultTaskRunnerConfig(), setupTestLogger(t))
	defer runner.Stop()

	err := runner.Start(context.Background())
	assert.ErrorIs(t, err, listErr)
}

func TestTaskRunner_ErrorHandler(t *testing.T) {
	runner := NewTaskRunner(nil, TaskRunnerConfig{WorkerCount: 1, QueueSize: 1}, setupTestLogger(t))
	failures := make(chan error, 1)
	runner.SetErrorHandler(func(task Task, err error) { failures <- err })
	require.NoError(t, runner.Start(context.Background()))
	defer runner.Stop()

	task := newMockTask()
	task.execFn = func(ctx context.Context) error { return errors.New("nope") }
	require.NoError(t, runner.Submit(context.Background(), task))

	select {
	case err := <-failures:
		assert.EqualError(t, err, "nope")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error handler")
	}
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tasks")
	}
}
