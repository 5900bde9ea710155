package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxFlashcardContentLength is the maximum number of characters on either
// side of a flashcard.
const MaxFlashcardContentLength = 1000

// FlashcardSource tags where a flashcard came from.
type FlashcardSource string

// Known flashcard sources.
const (
	FlashcardSourceManual    FlashcardSource = "MANUAL"
	FlashcardSourceGenerated FlashcardSource = "GENERATED"
	FlashcardSourceImported  FlashcardSource = "IMPORTED"
)

// FlashcardSources lists every known source in declaration order.
var FlashcardSources = []FlashcardSource{
	FlashcardSourceManual,
	FlashcardSourceGenerated,
	FlashcardSourceImported,
}

// ParseFlashcardSource matches s case-insensitively against the known
// sources. Surrounding whitespace is not trimmed.
func ParseFlashcardSource(s string) (FlashcardSource, bool) {
	candidate := FlashcardSource(strings.ToUpper(s))
	for _, src := range FlashcardSources {
		if src == candidate {
			return src, true
		}
	}
	return "", false
}

// IsValid reports whether s is one of the known sources.
func (s FlashcardSource) IsValid() bool {
	for _, src := range FlashcardSources {
		if s == src {
			return true
		}
	}
	return false
}

// Flashcard is a two-sided study card owned by a single user.
type Flashcard struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	FrontContent string          `json:"front_content"`
	BackContent  string          `json:"back_content"`
	Source       FlashcardSource `json:"source"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// FlashcardSnapshot is a point-in-time copy of a Flashcard's fields.
// Being a value type, a snapshot is unaffected by later changes to the card.
type FlashcardSnapshot struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	FrontContent string
	BackContent  string
	Source       FlashcardSource
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewManualFlashcard creates a MANUAL flashcard for userID stamped with the
// current time. Returns an error if validation fails.
func NewManualFlashcard(userID uuid.UUID, front, back string) (*Flashcard, error) {
	return newFlashcard(userID, front, back, FlashcardSourceManual)
}

// NewGeneratedFlashcard creates a GENERATED flashcard for userID, used when a
// user approves an AI suggestion.
func NewGeneratedFlashcard(userID uuid.UUID, front, back string) (*Flashcard, error) {
	return newFlashcard(userID, front, back, FlashcardSourceGenerated)
}

func newFlashcard(userID uuid.UUID, front, back string, source FlashcardSource) (*Flashcard, error) {
	now := time.Now().UTC()
	card := &Flashcard{
		ID:           uuid.New(),
		UserID:       userID,
		FrontContent: front,
		BackContent:  back,
		Source:       source,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// Validate checks if the Flashcard has valid data.
func (f *Flashcard) Validate() error {
	if f.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if f.UserID == uuid.Nil {
		return NewValidationError("userId", "cannot be empty", ErrInvalidID)
	}
	if err := ValidateFlashcardContent("frontContent", f.FrontContent); err != nil {
		return err
	}
	if err := ValidateFlashcardContent("backContent", f.BackContent); err != nil {
		return err
	}
	if !f.Source.IsValid() {
		return NewValidationError("source", "unknown flashcard source", ErrInvalidFormat)
	}
	return nil
}

// ValidateFlashcardContent checks one side of a flashcard: it must contain a
// non-whitespace character and be at most MaxFlashcardContentLength
// characters long.
func ValidateFlashcardContent(field, content string) error {
	if strings.TrimSpace(content) == "" {
		return NewValidationError(field, "cannot be empty", ErrEmptyContent)
	}
	if utf8.RuneCountInString(content) > MaxFlashcardContentLength {
		return NewValidationError(field, "must be at most 1000 characters", ErrContentTooLong)
	}
	return nil
}

// Snapshot returns an immutable view of the card's current state.
func (f *Flashcard) Snapshot() FlashcardSnapshot {
	return FlashcardSnapshot{
		ID:           f.ID,
		UserID:       f.UserID,
		FrontContent: f.FrontContent,
		BackContent:  f.BackContent,
		Source:       f.Source,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}
