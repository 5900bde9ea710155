package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/cards-api/internal/api/shared"
	"github.com/phrazzld/cards-api/internal/platform/logger"
	"github.com/phrazzld/cards-api/internal/service"
)

// FlashcardHandler handles flashcard HTTP requests.
type FlashcardHandler struct {
	flashcards service.FlashcardService
	users      UserResolver
	logger     *slog.Logger
}

// NewFlashcardHandler creates a new FlashcardHandler.
func NewFlashcardHandler(
	flashcards service.FlashcardService,
	users UserResolver,
	logger *slog.Logger,
) *FlashcardHandler {
	if flashcards == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("flashcards cannot be nil for FlashcardHandler")
	}
	if users == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("users cannot be nil for FlashcardHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FlashcardHandler{
		flashcards: flashcards,
		users:      users,
		logger:     logger.With(slog.String("component", "flashcard_handler")),
	}
}

// CreateFlashcard handles POST /api/flashcards.
func (h *FlashcardHandler) CreateFlashcard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := resolveUserID(w, r, h.users, log)
	if !ok {
		return
	}

	var req CreateFlashcardRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.flashcards.CreateFlashcard(r.Context(), service.CreateFlashcardCommand{
		UserID:       userID,
		FrontContent: req.FrontContent,
		BackContent:  req.BackContent,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create flashcard")
		return
	}

	log.DebugContext(r.Context(), "flashcard created",
		slog.String("user_id", userID.String()),
		slog.String("flashcard_id", resp.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, resp)
}

// GetFlashcards handles GET /api/flashcards?page&size&sort&source.
func (h *FlashcardHandler) GetFlashcards(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := resolveUserID(w, r, h.users, log)
	if !ok {
		return
	}

	page, err := queryInt(r, "page")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	size, err := queryInt(r, "size")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp, err := h.flashcards.GetFlashcards(r.Context(), service.GetFlashcardsCommand{
		UserID: userID,
		Source: queryString(r, "source"),
		Sort:   queryString(r, "sort"),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list flashcards")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
