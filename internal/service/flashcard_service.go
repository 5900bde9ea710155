package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/platform/logger"
	"github.com/phrazzld/cards-api/internal/store"
)

// CreateFlashcardCommand asks for a MANUAL flashcard owned by UserID.
type CreateFlashcardCommand struct {
	UserID       uuid.UUID
	FrontContent string
	BackContent  string
}

// CreateFlashcardResponse describes a newly created flashcard.
type CreateFlashcardResponse struct {
	ID           uuid.UUID              `json:"id"`
	FrontContent string                 `json:"frontContent"`
	BackContent  string                 `json:"backContent"`
	Source       domain.FlashcardSource `json:"source"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// GetFlashcardsCommand selects one page of a user's flashcards. Nil fields
// take their defaults.
type GetFlashcardsCommand struct {
	UserID uuid.UUID
	Source *string
	Sort   *string
	Page   *int
	Size   *int
}

// FlashcardSummary is one flashcard in a page of results.
type FlashcardSummary struct {
	ID           uuid.UUID              `json:"id"`
	FrontContent string                 `json:"frontContent"`
	BackContent  string                 `json:"backContent"`
	Source       domain.FlashcardSource `json:"source"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// PageInfo describes where a page sits in the full result set.
type PageInfo struct {
	Page          int `json:"page"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

// GetFlashcardsResponse is one page of flashcards with its metadata.
type GetFlashcardsResponse struct {
	Content  []FlashcardSummary `json:"content"`
	PageInfo PageInfo           `json:"pageInfo"`
}

// FlashcardService provides flashcard-related operations
type FlashcardService interface {
	// CreateFlashcard creates a MANUAL flashcard.
	CreateFlashcard(ctx context.Context, cmd CreateFlashcardCommand) (*CreateFlashcardResponse, error)

	// GetFlashcards filters, sorts and pages the user's flashcards.
	GetFlashcards(ctx context.Context, cmd GetFlashcardsCommand) (*GetFlashcardsResponse, error)
}

// flashcardServiceImpl implements the FlashcardService interface
type flashcardServiceImpl struct {
	flashcards store.FlashcardStore
	logger     *slog.Logger
}

// NewFlashcardService creates a new FlashcardService
// It returns an error if the store is nil.
func NewFlashcardService(flashcards store.FlashcardStore, logger *slog.Logger) (FlashcardService, error) {
	if flashcards == nil {
		return nil, domain.NewValidationError("flashcards", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &flashcardServiceImpl{
		flashcards: flashcards,
		logger:     logger.With(slog.String("component", "flashcard_service")),
	}, nil
}

// CreateFlashcard implements FlashcardService.CreateFlashcard
func (s *flashcardServiceImpl) CreateFlashcard(
	ctx context.Context,
	cmd CreateFlashcardCommand,
) (*CreateFlashcardResponse, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	card, err := domain.NewManualFlashcard(cmd.UserID, cmd.FrontContent, cmd.BackContent)
	if err != nil {
		log.DebugContext(ctx, "rejected flashcard", slog.String("error", err.Error()))
		return nil, err
	}

	saved, err := s.flashcards.Save(ctx, card)
	if err != nil {
		log.ErrorContext(ctx, "failed to save flashcard",
			slog.String("error", err.Error()),
			slog.String("user_id", cmd.UserID.String()))
		return nil, NewServiceError("flashcard", "create_flashcard", "failed to save flashcard", err)
	}

	log.InfoContext(ctx, "flashcard created",
		slog.String("flashcard_id", saved.ID.String()),
		slog.String("user_id", saved.UserID.String()))

	return &CreateFlashcardResponse{
		ID:           saved.ID,
		FrontContent: saved.FrontContent,
		BackContent:  saved.BackContent,
		Source:       saved.Source,
		CreatedAt:    saved.CreatedAt,
	}, nil
}

// GetFlashcards implements FlashcardService.GetFlashcards
func (s *flashcardServiceImpl) GetFlashcards(
	ctx context.Context,
	cmd GetFlashcardsCommand,
) (*GetFlashcardsResponse, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, err := domain.NewFlashcardQuery(cmd.UserID, cmd.Source, cmd.Sort, cmd.Page, cmd.Size)
	if err != nil {
		return nil, err
	}

	if query.SourcePolicy == domain.SourceFilterIgnored {
		log.DebugContext(ctx, "ignoring unrecognised source filter",
			slog.String("source", query.RawSource))
	}

	snapshots, total, err := s.flashcards.FindPage(ctx, query)
	if err != nil {
		log.ErrorContext(ctx, "failed to load flashcards",
			slog.String("error", err.Error()),
			slog.String("user_id", cmd.UserID.String()))
		return nil, NewServiceError("flashcard", "get_flashcards", "failed to load flashcards", err)
	}

	content := make([]FlashcardSummary, 0, len(snapshots))
	for _, snap := range snapshots {
		content = append(content, FlashcardSummary{
			ID:           snap.ID,
			FrontContent: snap.FrontContent,
			BackContent:  snap.BackContent,
			Source:       snap.Source,
			CreatedAt:    snap.CreatedAt,
			UpdatedAt:    snap.UpdatedAt,
		})
	}

	log.DebugContext(ctx, "listed flashcards",
		slog.Int("page", query.Page),
		slog.Int("size", query.Size),
		slog.Int("total", total),
		slog.String("sort", string(query.SortField)+" "+string(query.SortDirection)),
		slog.String("source_filter", query.SourcePolicy.String()))

	return &GetFlashcardsResponse{
		Content: content,
		PageInfo: PageInfo{
			Page:          query.Page,
			Size:          query.Size,
			TotalElements: total,
			TotalPages:    query.TotalPages(total),
		},
	}, nil
}
