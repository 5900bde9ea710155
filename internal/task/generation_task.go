package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/generation"
	"github.com/phrazzld/cards-api/internal/store"
)

// Common errors
var (
	ErrNilSessionStore = errors.New("generation session store cannot be nil")
	ErrNilGenerator    = errors.New("generator cannot be nil")
	ErrEmptySessionID  = errors.New("session ID cannot be empty")
)

// Client-safe failure messages stored on failed sessions.
const (
	failureBlocked     = "the input text was blocked by content safety filters"
	failureBadResponse = "the model returned a response that could not be used"
	failureUnavailable = "the generation service is temporarily unavailable"
	failureGeneric     = "flashcard generation failed"
)

// GenerationTask generates suggestions for one generation session.
type GenerationTask struct {
	id        uuid.UUID
	sessionID uuid.UUID
	sessions  store.GenerationSessionStore
	generator generation.Generator
	logger    *slog.Logger
}

var _ Task = (*GenerationTask)(nil)

// NewGenerationTask creates a task for the session with the given id.
func NewGenerationTask(
	sessionID uuid.UUID,
	sessions store.GenerationSessionStore,
	generator generation.Generator,
	logger *slog.Logger,
) (*GenerationTask, error) {
	if sessions == nil {
		return nil, ErrNilSessionStore
	}
	if generator == nil {
		return nil, ErrNilGenerator
	}
	if sessionID == uuid.Nil {
		return nil, ErrEmptySessionID
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GenerationTask{
		id:        uuid.New(),
		sessionID: sessionID,
		sessions:  sessions,
		generator: generator,
		logger: logger.With(
			slog.String("task_type", TaskTypeGeneration),
			slog.String("session_id", sessionID.String()),
		),
	}, nil
}

// ID returns the task's unique identifier
func (t *GenerationTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *GenerationTask) Type() string {
	return TaskTypeGeneration
}

// SessionID returns the id of the session the task works on.
func (t *GenerationTask) SessionID() uuid.UUID {
	return t.sessionID
}

// Execute moves the session to PROCESSING, runs the generator and records
// the outcome. Sessions already COMPLETED or FAILED are left untouched. When
// ctx is cancelled mid-generation the session stays PROCESSING so that it is
// picked up again on the next start.
func (t *GenerationTask) Execute(ctx context.Context) error {
	session, err := t.sessions.GetByID(ctx, t.sessionID)
	if err != nil {
		return fmt.Errorf("failed to retrieve generation session: %w", err)
	}

	if session.Status.IsTerminal() {
		t.logger.InfoContext(ctx, "session already finished, skipping",
			slog.String("status", string(session.Status)))
		return nil
	}

	if err := session.MarkProcessing(); err != nil {
		return fmt.Errorf("failed to mark session processing: %w", err)
	}
	if err := t.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to update session status to processing: %w", err)
	}

	t.logger.InfoContext(ctx, "generating suggestions",
		slog.Int("input_length", len(session.InputText)))

	suggestions, genErr := t.generator.GenerateCards(ctx, session.InputText)
	if genErr != nil {
		if ctx.Err() != nil {
			t.logger.WarnContext(ctx, "generation interrupted, session left for recovery")
			return fmt.Errorf("generation interrupted: %w", ctx.Err())
		}

		if err := session.Fail(failureMessage(genErr)); err != nil {
			return fmt.Errorf("failed to mark session failed: %w", err)
		}
		if err := t.sessions.Update(ctx, session); err != nil {
			t.logger.ErrorContext(ctx, "failed to record generation failure",
				slog.String("error", err.Error()))
		}
		return fmt.Errorf("failed to generate suggestions: %w", genErr)
	}

	if err := session.Complete(suggestions); err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	if err := t.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to save generated suggestions: %w", err)
	}

	t.logger.InfoContext(ctx, "generation session completed",
		slog.Int("suggestion_count", len(suggestions)))
	return nil
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, generation.ErrContentBlocked):
		return failureBlocked
	case errors.Is(err, generation.ErrInvalidResponse):
		return failureBadResponse
	case errors.Is(err, generation.ErrTransientFailure):
		return failureUnavailable
	default:
		return failureGeneric
	}
}

// GenerationTaskFactory creates GenerationTask instances and finds the
// sessions left unfinished by a previous run.
type GenerationTaskFactory struct {
	sessions  store.GenerationSessionStore
	generator generation.Generator
	logger    *slog.Logger
}

var _ Recoverer = (*GenerationTaskFactory)(nil)

// NewGenerationTaskFactory creates a new factory for GenerationTasks.
func NewGenerationTaskFactory(
	sessions store.GenerationSessionStore,
	generator generation.Generator,
	logger *slog.Logger,
) *GenerationTaskFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationTaskFactory{
		sessions:  sessions,
		generator: generator,
		logger:    logger.With(slog.String("component", "generation_task_factory")),
	}
}

// CreateTask creates a new GenerationTask for the specified session.
func (f *GenerationTaskFactory) CreateTask(sessionID uuid.UUID) (Task, error) {
	return NewGenerationTask(sessionID, f.sessions, f.generator, f.logger)
}

// PendingTasks returns a task for every PENDING or PROCESSING session.
func (f *GenerationTaskFactory) PendingTasks(ctx context.Context) ([]Task, error) {
	sessions, err := f.sessions.ListByStatus(ctx,
		domain.GenerationStatusPending, domain.GenerationStatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished sessions: %w", err)
	}

	tasks := make([]Task, 0, len(sessions))
	for _, s := range sessions {
		t, err := f.CreateTask(s.ID)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
