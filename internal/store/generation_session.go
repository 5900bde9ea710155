package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
)

// GenerationSessionStore defines the interface for generation session persistence.
type GenerationSessionStore interface {
	// Create saves a new session.
	Create(ctx context.Context, session *domain.GenerationSession) error

	// GetByID retrieves a session by its ID.
	// Returns ErrGenerationSessionNotFound if the session does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error)

	// GetForUpdate retrieves a session and locks its row until the enclosing
	// transaction ends. Use it inside a transaction before a read-modify-write.
	// Returns ErrGenerationSessionNotFound if the session does not exist.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error)

	// Update saves status, suggestions, accepted count and error message.
	// Returns ErrGenerationSessionNotFound if the session does not exist.
	Update(ctx context.Context, session *domain.GenerationSession) error

	// ListByStatus returns sessions in any of the given statuses, oldest first.
	ListByStatus(ctx context.Context, statuses ...domain.GenerationStatus) ([]*domain.GenerationSession, error)

	// WithTx returns a new GenerationSessionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) GenerationSessionStore
}
