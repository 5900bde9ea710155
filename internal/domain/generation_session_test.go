package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() string { return strings.Repeat("a", MinGenerationInputLength) }

func TestNewGenerationSession(t *testing.T) {
	userID := uuid.New()
	s, err := NewGenerationSession(userID, validInput(), "gemini-test")

	require.NoError(t, err)
	assert.Equal(t, GenerationStatusPending, s.Status)
	assert.Equal(t, userID, s.UserID)
	assert.Empty(t, s.Suggestions)
	assert.Equal(t, "gemini-test", s.Model)
}

func TestValidateGenerationInput(t *testing.T) {
	assert.NoError(t, ValidateGenerationInput(validInput()))
	assert.NoError(t, ValidateGenerationInput(strings.Repeat("b", MaxGenerationInputLength)))
	assert.ErrorIs(t, ValidateGenerationInput(strings.Repeat("a", 999)), ErrInvalidInputText)
	assert.ErrorIs(t, ValidateGenerationInput(strings.Repeat("a", 10001)), ErrInvalidInputText)
	assert.ErrorIs(t, ValidateGenerationInput("  "+strings.Repeat("a", 999)+"  "), ErrInvalidInputText)
}

func TestGenerationSessionLifecycle(t *testing.T) {
	s, err := NewGenerationSession(uuid.New(), validInput(), "m")
	require.NoError(t, err)

	assert.ErrorIs(t, s.RecordAccepted(1), ErrSessionNotCompleted)
	assert.ErrorIs(t, s.Complete(nil), ErrInvalidStatusTransition)

	require.NoError(t, s.MarkProcessing())
	require.NoError(t, s.MarkProcessing(), "resuming a processing session is allowed")

	suggestion := NewSuggestion("Q", "A")
	require.NoError(t, s.Complete([]Suggestion{suggestion}))
	assert.Equal(t, GenerationStatusCompleted, s.Status)

	got, ok := s.Suggestion(suggestion.ID)
	assert.True(t, ok)
	assert.Equal(t, suggestion, got)
	_, ok = s.Suggestion(uuid.New())
	assert.False(t, ok)

	require.NoError(t, s.RecordAccepted(2))
	assert.Equal(t, 2, s.AcceptedCount)

	assert.ErrorIs(t, s.MarkProcessing(), ErrInvalidStatusTransition)
	assert.ErrorIs(t, s.Fail("late"), ErrInvalidStatusTransition)
}

func TestGenerationSessionFail(t *testing.T) {
	s, err := NewGenerationSession(uuid.New(), validInput(), "m")
	require.NoError(t, err)

	require.NoError(t, s.Fail("generation failed"))
	assert.Equal(t, GenerationStatusFailed, s.Status)
	assert.Equal(t, "generation failed", s.ErrorMessage)
	assert.True(t, s.Status.IsTerminal())
}
