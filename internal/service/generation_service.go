package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/platform/logger"
	"github.com/phrazzld/cards-api/internal/store"
	"github.com/phrazzld/cards-api/internal/task"
)

// TaskRunner defines the interface for submitting background tasks
type TaskRunner interface {
	// Submit adds a task to the processing queue
	Submit(ctx context.Context, task task.Task) error
}

// GenerationTaskFactory creates the task that processes a session.
type GenerationTaskFactory interface {
	CreateTask(sessionID uuid.UUID) (task.Task, error)
}

// ApprovedSuggestion selects a suggestion for approval. Non-nil content
// fields replace the suggested text.
type ApprovedSuggestion struct {
	SuggestionID uuid.UUID
	FrontContent *string
	BackContent  *string
}

// ApproveSuggestionsCommand approves suggestions from one session.
type ApproveSuggestionsCommand struct {
	UserID      uuid.UUID
	SessionID   uuid.UUID
	Suggestions []ApprovedSuggestion
}

// GenerationService runs AI generation sessions.
type GenerationService interface {
	// Enabled reports whether sessions can be created.
	Enabled() bool

	// CreateSession stores a PENDING session and queues its generation.
	CreateSession(ctx context.Context, userID uuid.UUID, inputText string) (*domain.GenerationSession, error)

	// GetSession returns a session owned by userID.
	GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*domain.GenerationSession, error)

	// GetSuggestions returns a COMPLETED session owned by userID.
	GetSuggestions(ctx context.Context, userID, sessionID uuid.UUID) (*domain.GenerationSession, error)

	// ApproveSuggestions turns suggestions into GENERATED flashcards in one
	// transaction and returns the created cards.
	ApproveSuggestions(ctx context.Context, cmd ApproveSuggestionsCommand) ([]*domain.Flashcard, error)
}

type generationServiceImpl struct {
	sessions   store.GenerationSessionStore
	transactor store.Transactor
	runner     TaskRunner
	tasks      GenerationTaskFactory
	model      string
	logger     *slog.Logger
}

// NewGenerationService creates a GenerationService. runner and tasks may be
// nil, in which case session creation reports ErrGenerationUnavailable while
// existing sessions remain readable.
func NewGenerationService(
	sessions store.GenerationSessionStore,
	transactor store.Transactor,
	runner TaskRunner,
	tasks GenerationTaskFactory,
	model string,
	logger *slog.Logger,
) (GenerationService, error) {
	if sessions == nil {
		return nil, domain.NewValidationError("sessions", "cannot be nil", domain.ErrValidation)
	}
	if transactor == nil {
		return nil, domain.NewValidationError("transactor", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &generationServiceImpl{
		sessions:   sessions,
		transactor: transactor,
		runner:     runner,
		tasks:      tasks,
		model:      model,
		logger:     logger.With(slog.String("component", "generation_service")),
	}, nil
}

func (s *generationServiceImpl) Enabled() bool {
	return s.runner != nil && s.tasks != nil
}

func (s *generationServiceImpl) CreateSession(
	ctx context.Context,
	userID uuid.UUID,
	inputText string,
) (*domain.GenerationSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !s.Enabled() {
		return nil, ErrGenerationUnavailable
	}

	session, err := domain.NewGenerationSession(userID, inputText, s.model)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		log.ErrorContext(ctx, "failed to save generation session",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, NewServiceError("generation", "create_session", "failed to save session", err)
	}

	t, err := s.tasks.CreateTask(session.ID)
	if err == nil {
		err = s.runner.Submit(ctx, t)
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to queue generation task",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))

		if failErr := session.Fail("generation could not be queued"); failErr == nil {
			if updateErr := s.sessions.Update(ctx, session); updateErr != nil {
				log.ErrorContext(ctx, "failed to mark unqueued session failed",
					slog.String("error", updateErr.Error()))
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}

	log.InfoContext(ctx, "generation session created",
		slog.String("session_id", session.ID.String()),
		slog.String("user_id", userID.String()))

	return session, nil
}

func (s *generationServiceImpl) GetSession(
	ctx context.Context,
	userID, sessionID uuid.UUID,
) (*domain.GenerationSession, error) {
	return s.ownedSession(ctx, s.sessions.GetByID, userID, sessionID)
}

func (s *generationServiceImpl) GetSuggestions(
	ctx context.Context,
	userID, sessionID uuid.UUID,
) (*domain.GenerationSession, error) {
	session, err := s.ownedSession(ctx, s.sessions.GetByID, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.GenerationStatusCompleted {
		return nil, domain.ErrSessionNotCompleted
	}
	return session, nil
}

func (s *generationServiceImpl) ApproveSuggestions(
	ctx context.Context,
	cmd ApproveSuggestionsCommand,
) ([]*domain.Flashcard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(cmd.Suggestions) == 0 {
		return nil, domain.NewValidationError("approvedSuggestions", "must not be empty", domain.ErrValidation)
	}
	seen := make(map[uuid.UUID]struct{}, len(cmd.Suggestions))
	for _, a := range cmd.Suggestions {
		if _, dup := seen[a.SuggestionID]; dup {
			return nil, domain.NewValidationError("approvedSuggestions",
				"contains a suggestion more than once", domain.ErrValidation)
		}
		seen[a.SuggestionID] = struct{}{}
	}

	var created []*domain.Flashcard
	err := s.transactor.InTx(ctx, func(ctx context.Context, tx store.Stores) error {
		// The row lock keeps concurrent approvals from losing accepted counts.
		session, err := s.ownedSession(ctx, tx.Sessions.GetForUpdate, cmd.UserID, cmd.SessionID)
		if err != nil {
			return err
		}
		if session.Status != domain.GenerationStatusCompleted {
			return domain.ErrSessionNotCompleted
		}

		cards := make([]*domain.Flashcard, 0, len(cmd.Suggestions))
		for _, a := range cmd.Suggestions {
			sg, ok := session.Suggestion(a.SuggestionID)
			if !ok {
				return domain.NewValidationError("approvedSuggestions",
					fmt.Sprintf("suggestion %s does not belong to this session", a.SuggestionID),
					domain.ErrUnknownSuggestion)
			}

			front, back := sg.FrontContent, sg.BackContent
			if a.FrontContent != nil {
				front = *a.FrontContent
			}
			if a.BackContent != nil {
				back = *a.BackContent
			}

			card, err := domain.NewGeneratedFlashcard(cmd.UserID, front, back)
			if err != nil {
				return err
			}
			cards = append(cards, card)
		}

		if err := tx.Flashcards.SaveMultiple(ctx, cards); err != nil {
			return NewServiceError("generation", "approve_suggestions", "failed to save flashcards", err)
		}
		if err := session.RecordAccepted(len(cards)); err != nil {
			return err
		}
		if err := tx.Sessions.Update(ctx, session); err != nil {
			return NewServiceError("generation", "approve_suggestions", "failed to update session", err)
		}

		created = cards
		return nil
	})
	if err != nil {
		var vErr *domain.ValidationError
		if !errors.As(err, &vErr) && !errors.Is(err, ErrNotOwned) && !store.IsNotFoundError(err) &&
			!errors.Is(err, domain.ErrSessionNotCompleted) {
			log.ErrorContext(ctx, "failed to approve suggestions",
				slog.String("error", err.Error()),
				slog.String("session_id", cmd.SessionID.String()))
		}
		return nil, err
	}

	log.InfoContext(ctx, "suggestions approved",
		slog.String("session_id", cmd.SessionID.String()),
		slog.Int("created_count", len(created)))

	return created, nil
}

// ownedSession loads a session and checks that userID owns it.
func (s *generationServiceImpl) ownedSession(
	ctx context.Context,
	get func(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error),
	userID, sessionID uuid.UUID,
) (*domain.GenerationSession, error) {
	session, err := get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		logger.FromContextOrDefault(ctx, s.logger).WarnContext(ctx, "session access by non-owner",
			slog.String("session_id", sessionID.String()),
			slog.String("user_id", userID.String()))
		return nil, ErrNotOwned
	}
	return session, nil
}
