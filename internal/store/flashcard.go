package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
)

// FlashcardStore defines the interface for flashcard data persistence.
type FlashcardStore interface {
	// Save persists a new flashcard and returns the stored record.
	Save(ctx context.Context, card *domain.Flashcard) (*domain.Flashcard, error)

	// SaveMultiple persists several flashcards. It should run inside a
	// transaction (see Transactor) to be atomic.
	SaveMultiple(ctx context.Context, cards []*domain.Flashcard) error

	// GetByID retrieves a flashcard by its ID.
	// Returns ErrFlashcardNotFound if the flashcard does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Flashcard, error)

	// FindByUserID returns every flashcard owned by userID, oldest first.
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Flashcard, error)

	// FindPage returns one page of the user's flashcards as selected by
	// query, together with the number of flashcards matching the filter.
	FindPage(ctx context.Context, query domain.FlashcardQuery) ([]domain.FlashcardSnapshot, int, error)

	// WithTx returns a new FlashcardStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) FlashcardStore
}
