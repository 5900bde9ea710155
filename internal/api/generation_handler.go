package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/api/shared"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/platform/logger"
	"github.com/phrazzld/cards-api/internal/service"
)

// GenerationHandler handles AI generation session requests.
type GenerationHandler struct {
	generation service.GenerationService
	users      UserResolver
	logger     *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(
	generation service.GenerationService,
	users UserResolver,
	logger *slog.Logger,
) *GenerationHandler {
	if generation == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("generation cannot be nil for GenerationHandler")
	}
	if users == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("users cannot be nil for GenerationHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationHandler{
		generation: generation,
		users:      users,
		logger:     logger.With(slog.String("component", "generation_handler")),
	}
}

// CreateSession handles POST /api/ai/sessions. Generation runs in the
// background, so the response is 202 with the PENDING session.
func (h *GenerationHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := resolveUserID(w, r, h.users, log)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session, err := h.generation.CreateSession(r.Context(), userID, req.InputText)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create generation session")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, CreateSessionResponse{
		SessionID: session.ID,
		Status:    session.Status,
		CreatedAt: session.CreatedAt,
	})
}

// GetSession handles GET /api/ai/sessions/{id}.
func (h *GenerationHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := resolveUserID(w, r, h.users, log)
	if !ok {
		return
	}
	sessionID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	session, err := h.generation.GetSession(r.Context(), userID, sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get generation session")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, sessionToResponse(session))
}

// GetSuggestions handles GET /api/ai/sessions/{id}/suggestions.
func (h *GenerationHandler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := resolveUserID(w, r, h.users, log)
	if !ok {
		return
	}
	sessionID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	session, err := h.generation.GetSuggestions(r.Context(), userID, sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get suggestions")
		return
	}

	suggestions := make([]SuggestionResponse, 0, len(session.Suggestions))
	for _, sg := range session.Suggestions {
		suggestions = append(suggestions, SuggestionResponse{
			ID:           sg.ID,
			FrontContent: sg.FrontContent,
			BackContent:  sg.BackContent,
		})
	}

	shared.RespondWithJSON(w, r, http.StatusOK, SuggestionsResponse{
		SessionID:   session.ID,
		Status:      session.Status,
		Suggestions: suggestions,
	})
}

// ApproveSuggestions handles POST /api/ai/sessions/{id}/approve.
func (h *GenerationHandler) ApproveSuggestions(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := resolveUserID(w, r, h.users, log)
	if !ok {
		return
	}
	sessionID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req ApproveSuggestionsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	approved := make([]service.ApprovedSuggestion, 0, len(req.ApprovedSuggestions))
	for _, a := range req.ApprovedSuggestions {
		id, err := uuid.Parse(a.SuggestionID)
		if err != nil {
			HandleAPIError(w, r,
				domain.NewValidationError("suggestionId", "has invalid format", domain.ErrInvalidID), "")
			return
		}
		approved = append(approved, service.ApprovedSuggestion{
			SuggestionID: id,
			FrontContent: a.FrontContent,
			BackContent:  a.BackContent,
		})
	}

	cards, err := h.generation.ApproveSuggestions(r.Context(), service.ApproveSuggestionsCommand{
		UserID:      userID,
		SessionID:   sessionID,
		Suggestions: approved,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to approve suggestions")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, ApproveSuggestionsResponse{CreatedCount: len(cards)})
}
