package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
)

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Username  string `json:"username"  validate:"required,min=3,max=50"`
	Password  string `json:"password"  validate:"required,min=8,max=72"`
	Email     string `json:"email"     validate:"required,email,max=100"`
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName"  validate:"required,max=50"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	UserID uuid.UUID `json:"userId"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	Username     string `json:"username"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expiresIn"`
}

// CreateFlashcardRequest defines the payload for creating a flashcard.
type CreateFlashcardRequest struct {
	FrontContent string `json:"frontContent" validate:"required,max=1000"`
	BackContent  string `json:"backContent"  validate:"required,max=1000"`
}

// CreateSessionRequest starts an AI generation session.
type CreateSessionRequest struct {
	InputText string `json:"inputText" validate:"required"`
}

// CreateSessionResponse is returned when a session has been accepted.
type CreateSessionResponse struct {
	SessionID uuid.UUID               `json:"sessionId"`
	Status    domain.GenerationStatus `json:"status"`
	CreatedAt time.Time               `json:"createdAt"`
}

// SessionResponse describes a generation session.
type SessionResponse struct {
	SessionID      uuid.UUID               `json:"sessionId"`
	Status         domain.GenerationStatus `json:"status"`
	GeneratedCount int                     `json:"generatedCount"`
	AcceptedCount  int                     `json:"acceptedCount"`
	AIModel        string                  `json:"aiModel"`
	ErrorMessage   string                  `json:"errorMessage,omitempty"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

// SuggestionResponse is one suggested flashcard.
type SuggestionResponse struct {
	ID           uuid.UUID `json:"id"`
	FrontContent string    `json:"frontContent"`
	BackContent  string    `json:"backContent"`
}

// SuggestionsResponse lists the suggestions of a completed session.
type SuggestionsResponse struct {
	SessionID   uuid.UUID               `json:"sessionId"`
	Status      domain.GenerationStatus `json:"status"`
	Suggestions []SuggestionResponse    `json:"suggestions"`
}

// ApprovedSuggestionRequest selects one suggestion, optionally with edits.
type ApprovedSuggestionRequest struct {
	SuggestionID string  `json:"suggestionId"           validate:"required,uuid"`
	FrontContent *string `json:"frontContent,omitempty" validate:"omitempty,max=1000"`
	BackContent  *string `json:"backContent,omitempty"  validate:"omitempty,max=1000"`
}

// ApproveSuggestionsRequest approves suggestions into flashcards.
type ApproveSuggestionsRequest struct {
	ApprovedSuggestions []ApprovedSuggestionRequest `json:"approvedSuggestions" validate:"required,min=1,dive"`
}

// ApproveSuggestionsResponse reports how many flashcards were created.
type ApproveSuggestionsResponse struct {
	CreatedCount int `json:"createdCount"`
}

func sessionToResponse(s *domain.GenerationSession) SessionResponse {
	return SessionResponse{
		SessionID:      s.ID,
		Status:         s.Status,
		GeneratedCount: len(s.Suggestions),
		AcceptedCount:  s.AcceptedCount,
		AIModel:        s.Model,
		ErrorMessage:   s.ErrorMessage,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}
