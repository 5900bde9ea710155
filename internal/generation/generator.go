package generation

import (
	"context"

	"github.com/phrazzld/cards-api/internal/domain"
)

// Generator defines the interface for generating flashcard suggestions from text.
// It is the boundary between the application core and external LLM services.
type Generator interface {
	// GenerateCards produces suggestions for the given input text.
	// Failures are reported with the sentinel errors in errors.go.
	GenerateCards(ctx context.Context, inputText string) ([]domain.Suggestion, error)

	// Model returns the model name recorded on generation sessions.
	Model() string
}

// IsPermanent reports whether err should fail a generation session outright
// rather than leave it eligible for another attempt.
func IsPermanent(err error) bool {
	return err != nil && !isTransient(err)
}
