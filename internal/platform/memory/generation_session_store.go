package memory

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/store"
)

// GenerationSessionStore implements store.GenerationSessionStore in memory.
type GenerationSessionStore struct {
	db   *DB
	undo *undoLog
}

var _ store.GenerationSessionStore = (*GenerationSessionStore)(nil)

// Create implements store.GenerationSessionStore.Create.
func (s *GenerationSessionStore) Create(_ context.Context, session *domain.GenerationSession) error {
	if err := session.Validate(); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.users[session.UserID]; !ok {
		return fmt.Errorf("%w: user with ID %s not found", store.ErrInvalidEntity, session.UserID)
	}
	s.db.sessions[session.ID] = cloneSession(*session)
	id := session.ID
	s.undo.record(func() { delete(s.db.sessions, id) })
	return nil
}

// GetByID implements store.GenerationSessionStore.GetByID.
func (s *GenerationSessionStore) GetByID(_ context.Context, id uuid.UUID) (*domain.GenerationSession, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	session, ok := s.db.sessions[id]
	if !ok {
		return nil, store.ErrGenerationSessionNotFound
	}
	out := cloneSession(session)
	return &out, nil
}

// GetForUpdate implements store.GenerationSessionStore.GetForUpdate. InTx
// already serializes transactions, so no row lock is taken.
func (s *GenerationSessionStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.GenerationSession, error) {
	return s.GetByID(ctx, id)
}

// Update implements store.GenerationSessionStore.Update.
func (s *GenerationSessionStore) Update(_ context.Context, session *domain.GenerationSession) error {
	if err := session.Validate(); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	existing, ok := s.db.sessions[session.ID]
	if !ok {
		return store.ErrGenerationSessionNotFound
	}

	previous := cloneSession(existing)
	existing.Status = session.Status
	existing.Suggestions = append([]domain.Suggestion{}, session.Suggestions...)
	existing.AcceptedCount = session.AcceptedCount
	existing.ErrorMessage = session.ErrorMessage
	existing.UpdatedAt = session.UpdatedAt
	s.db.sessions[session.ID] = existing

	written := existing
	s.undo.record(func() {
		// A later update from outside the transaction wins over the revert.
		if current, ok := s.db.sessions[previous.ID]; ok && sameRevision(current, written) {
			s.db.sessions[previous.ID] = previous
		}
	})
	return nil
}

func sameRevision(a, b domain.GenerationSession) bool {
	return a.Status == b.Status && a.AcceptedCount == b.AcceptedCount && a.UpdatedAt.Equal(b.UpdatedAt)
}

// ListByStatus implements store.GenerationSessionStore.ListByStatus.
func (s *GenerationSessionStore) ListByStatus(
	_ context.Context,
	statuses ...domain.GenerationStatus,
) ([]*domain.GenerationSession, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := []*domain.GenerationSession{}
	for _, session := range s.db.sessions {
		if slices.Contains(statuses, session.Status) {
			c := cloneSession(session)
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *domain.GenerationSession) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// WithTx implements store.GenerationSessionStore.WithTx. The transaction is ignored.
func (s *GenerationSessionStore) WithTx(_ *sql.Tx) store.GenerationSessionStore {
	return s
}
