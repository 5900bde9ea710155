package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Input text limits for a generation session, in characters.
const (
	MinGenerationInputLength = 1000
	MaxGenerationInputLength = 10000
)

// GenerationStatus represents the processing state of a generation session.
type GenerationStatus string

// Possible generation status values
const (
	GenerationStatusPending    GenerationStatus = "PENDING"
	GenerationStatusProcessing GenerationStatus = "PROCESSING"
	GenerationStatusCompleted  GenerationStatus = "COMPLETED"
	GenerationStatusFailed     GenerationStatus = "FAILED"
)

// Generation session errors
var (
	ErrInvalidInputText        = errors.New("invalid input text")
	ErrInvalidGenerationStatus = errors.New("invalid generation status")
	ErrInvalidStatusTransition = errors.New("invalid generation status transition")
	ErrSessionNotCompleted     = errors.New("generation session is not completed")
	ErrUnknownSuggestion       = errors.New("suggestion does not belong to session")
)

// Suggestion is a flashcard proposed by the generator, waiting for approval.
type Suggestion struct {
	ID           uuid.UUID `json:"id"`
	FrontContent string    `json:"front_content"`
	BackContent  string    `json:"back_content"`
}

// GenerationSession is one AI run over user-supplied text. It moves from
// PENDING through PROCESSING to COMPLETED or FAILED.
type GenerationSession struct {
	ID            uuid.UUID        `json:"id"`
	UserID        uuid.UUID        `json:"user_id"`
	InputText     string           `json:"input_text"`
	Status        GenerationStatus `json:"status"`
	Suggestions   []Suggestion     `json:"suggestions"`
	AcceptedCount int              `json:"accepted_count"`
	Model         string           `json:"model"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewGenerationSession creates a PENDING session for userID.
func NewGenerationSession(userID uuid.UUID, inputText, model string) (*GenerationSession, error) {
	now := time.Now().UTC()
	session := &GenerationSession{
		ID:          uuid.New(),
		UserID:      userID,
		InputText:   inputText,
		Status:      GenerationStatusPending,
		Suggestions: []Suggestion{},
		Model:       model,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}

	return session, nil
}

// ValidateGenerationInput checks the input text length after trimming.
func ValidateGenerationInput(text string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	if n < MinGenerationInputLength || n > MaxGenerationInputLength {
		return NewValidationError("inputText", "must be between 1000 and 10000 characters", ErrInvalidInputText)
	}
	return nil
}

// Validate checks if the GenerationSession has valid data.
func (s *GenerationSession) Validate() error {
	if s.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if s.UserID == uuid.Nil {
		return NewValidationError("userId", "cannot be empty", ErrInvalidID)
	}
	if err := ValidateGenerationInput(s.InputText); err != nil {
		return err
	}
	if !s.Status.IsValid() {
		return NewValidationError("status", "unknown status", ErrInvalidGenerationStatus)
	}
	return nil
}

// IsValid reports whether the status is one of the known values.
func (s GenerationStatus) IsValid() bool {
	switch s {
	case GenerationStatusPending, GenerationStatusProcessing,
		GenerationStatusCompleted, GenerationStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationStatusCompleted || s == GenerationStatusFailed
}

// MarkProcessing moves a PENDING session to PROCESSING. A session that is
// already PROCESSING is accepted so interrupted work can be resumed.
func (s *GenerationSession) MarkProcessing() error {
	if s.Status != GenerationStatusPending && s.Status != GenerationStatusProcessing {
		return ErrInvalidStatusTransition
	}
	s.Status = GenerationStatusProcessing
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete records the generated suggestions and marks the session COMPLETED.
func (s *GenerationSession) Complete(suggestions []Suggestion) error {
	if s.Status != GenerationStatusProcessing {
		return ErrInvalidStatusTransition
	}
	s.Suggestions = suggestions
	s.Status = GenerationStatusCompleted
	s.ErrorMessage = ""
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail marks the session FAILED with a client-safe message.
func (s *GenerationSession) Fail(message string) error {
	if s.Status.IsTerminal() {
		return ErrInvalidStatusTransition
	}
	s.Status = GenerationStatusFailed
	s.ErrorMessage = message
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Suggestion returns the suggestion with the given id.
func (s *GenerationSession) Suggestion(id uuid.UUID) (Suggestion, bool) {
	for _, sg := range s.Suggestions {
		if sg.ID == id {
			return sg, true
		}
	}
	return Suggestion{}, false
}

// RecordAccepted adds n to the accepted count. Only completed sessions can
// have suggestions accepted.
func (s *GenerationSession) RecordAccepted(n int) error {
	if s.Status != GenerationStatusCompleted {
		return ErrSessionNotCompleted
	}
	s.AcceptedCount += n
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// NewSuggestion creates a suggestion with a fresh id.
func NewSuggestion(front, back string) Suggestion {
	return Suggestion{ID: uuid.New(), FrontContent: front, BackContent: back}
}
