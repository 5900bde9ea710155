package task

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTask implements the Task interface for testing
type mockTask struct {
	id       uuid.UUID
	taskType string
	execFn   func(ctx context.Context) error
}

func (m *mockTask) ID() uuid.UUID {
	return m.id
}

func (m *mockTask) Type() string {
	return m.taskType
}

func (m *mockTask) Execute(ctx context.Context) error {
	if m.execFn != nil {
		return m.execFn(ctx)
	}
	return nil
}

func newMockTask() *mockTask {
	return &mockTask{
		id:       uuid.New(),
		taskType: "mock",
	}
}

func setupTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	_, log := logger.NewTestLogger(t)
	return log
}

func TestNewTaskQueue(t *testing.T) {
	queue := NewTaskQueue(10, setupTestLogger(t))

	assert.NotNil(t, queue)
	assert.Equal(t, 10, cap(queue.tasks))
	assert.False(t, queue.closed)

	// Non-positive sizes still produce a usable queue.
	assert.Equal(t, 1, cap(NewTaskQueue(0, nil).tasks))
}

func TestEnqueue(t *testing.T) {
	queue := NewTaskQueue(2, setupTestLogger(t))

	require.NoError(t, queue.Enqueue(newMockTask()))
	require.NoError(t, queue.Enqueue(newMockTask()))
	assert.Equal(t, 2, queue.Len())

	task3 := newMockTask()
	err := queue.Enqueue(task3)
	assert.ErrorIs(t, err, ErrQueueFull)

	// Dequeue one item to make space
	<-queue.tasks

	assert.NoError(t, queue.Enqueue(task3))
}

func TestClose(t *testing.T) {
	queue := NewTaskQueue(10, setupTestLogger(t))

	task := newMockTask()
	require.NoError(t, queue.Enqueue(task))

	queue.Close()
	queue.Close()
	assert.True(t, queue.closed)

	err := queue.Enqueue(newMockTask())
	assert.ErrorIs(t, err, ErrQueueClosed)

	// Queued tasks remain readable after Close.
	received := <-queue.GetChannel()
	assert.Equal(t, task.ID(), received.ID())

	select {
	case _, ok := <-queue.GetChannel():
		assert.False(t, ok, "Channel should be closed")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timed out waiting for closed channel read")
	}
}

func TestConcurrentEnqueue(t *testing.T) {
	queue := NewTaskQueue(100, setupTestLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, queue.Enqueue(newMockTask()))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, queue.Len())
}
