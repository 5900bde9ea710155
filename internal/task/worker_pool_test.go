package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTaskQueue implements TaskQueueReader for testing
type mockTaskQueue struct {
	ch chan Task
}

func newMockTaskQueue() *mockTaskQueue {
	return &mockTaskQueue{
		ch: make(chan Task, 10),
	}
}

func (m *mockTaskQueue) GetChannel() <-chan Task {
	return m.ch
}

func TestNewWorkerPool(t *testing.T) {
	log := setupTestLogger(t)
	taskQueue := newMockTaskQueue()

	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 5}, log)
	assert.Equal(t, 5, pool.workerCount)
	assert.Nil(t, pool.errorHandler)

	for _, count := range []int{0, -5} {
		pool = NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: count}, log)
		assert.Equal(t, 1, pool.workerCount)
	}
}

func TestWorkerPool_ProcessesTasks(t *testing.T) {
	taskQueue := newMockTaskQueue()
	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 3}, setupTestLogger(t))

	var executed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		task := newMockTask()
		task.execFn = func(ctx context.Context) error {
			defer wg.Done()
			executed.Add(1)
			return nil
		}
		taskQueue.ch <- task
	}

	pool.Start()
	pool.Start()
	wg.Wait()
	pool.Stop()

	assert.Equal(t, int32(6), executed.Load())
}

func TestWorkerPool_ErrorHandler(t *testing.T) {
	taskQueue := newMockTaskQueue()
	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger(t))

	taskErr := errors.New("task failed")
	failed := make(chan error, 2)
	pool.SetErrorHandler(func(task Task, err error) {
		failed <- err
	})

	bad := newMockTask()
	bad.execFn = func(ctx context.Context) error { return taskErr }
	panicky := newMockTask()
	panicky.execFn = func(ctx context.Context) error { panic("boom") }

	taskQueue.ch <- bad
	taskQueue.ch <- panicky
	pool.Start()
	defer pool.Stop()

	for i, want := range []string{"task failed", "task panicked: boom"} {
		select {
		case err := <-failed:
			assert.EqualError(t, err, want, "failure %d", i)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for error handler")
		}
	}
}

func TestWorkerPool_StopCancelsRunningTasks(t *testing.T) {
	taskQueue := newMockTaskQueue()
	pool := NewWorkerPool(taskQueue, WorkerPoolConfig{WorkerCount: 1}, setupTestLogger(t))

	started := make(chan struct{})
	var sawCancel atomic.Bool
	task := newMockTask()
	task.execFn = func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}
	taskQueue.ch <- task

	pool.Start()
	<-started
	pool.Stop()
	pool.Stop()

	assert.True(t, sawCancel.Load())
}

func TestWorkerPool_StopsWhenQueueClosed(t *testing.T) {
	queue := NewTaskQueue(1, setupTestLogger(t))
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 2}, setupTestLogger(t))
	pool.Start()

	queue.Close()

	done := make(chan struct{})
	go func() {
		pool.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not exit after the queue closed")
	}
	require.NotPanics(t, pool.Stop)
}
