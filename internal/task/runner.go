package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount: 2,
		QueueSize:   100,
	}
}

// TaskRunner manages background task processing: a bounded queue drained by
// a worker pool, plus recovery of unfinished work on start.
type TaskRunner struct {
	queue     *TaskQueue
	pool      *WorkerPool
	recoverer Recoverer
	logger    *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewTaskRunner creates a new TaskRunner. recoverer may be nil when there is
// no persisted work to resume.
func NewTaskRunner(recoverer Recoverer, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "task_runner"))

	queue := NewTaskQueue(config.QueueSize, logger)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger)

	return &TaskRunner{
		queue:     queue,
		pool:      pool,
		recoverer: recoverer,
		logger:    logger,
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.pool.SetErrorHandler(handler)
}

// Submit adds a task to the queue without blocking. It fails with
// ErrQueueFull when the queue is at capacity and ErrQueueClosed after Stop.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.queue.Enqueue(task)
}

// Start re-queues unfinished work and starts the workers.
func (r *TaskRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrQueueClosed
	}
	if r.started {
		return nil
	}

	if err := r.recover(ctx); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	r.pool.Start()
	r.started = true
	return nil
}

// Stop closes the queue to new submissions, cancels running tasks and waits
// for the workers to exit.
func (r *TaskRunner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.stopped = true

	r.queue.Close()
	r.pool.Stop()
}

func (r *TaskRunner) recover(ctx context.Context) error {
	if r.recoverer == nil {
		return nil
	}

	tasks, err := r.recoverer.PendingTasks(ctx)
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "recovering unfinished tasks", slog.Int("count", len(tasks)))

	for _, t := range tasks {
		if err := r.queue.Enqueue(t); err != nil {
			if errors.Is(err, ErrQueueFull) {
				r.logger.ErrorContext(ctx, "failed to requeue task, queue is full",
					slog.String("task_id", t.ID().String()),
					slog.String("task_type", t.Type()))
				continue
			}
			return err
		}
	}
	return nil
}
