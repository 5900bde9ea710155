package mocks

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/store"
)

// MockFlashcardStore implements store.FlashcardStore for testing. Without
// function overrides it keeps cards in memory and pages them with
// domain.FlashcardQuery.Apply.
type MockFlashcardStore struct {
	SaveFn         func(ctx context.Context, card *domain.Flashcard) (*domain.Flashcard, error)
	SaveMultipleFn func(ctx context.Context, cards []*domain.Flashcard) error
	GetByIDFn      func(ctx context.Context, id uuid.UUID) (*domain.Flashcard, error)
	FindByUserIDFn func(ctx context.Context, userID uuid.UUID) ([]*domain.Flashcard, error)
	FindPageFn     func(ctx context.Context, q domain.FlashcardQuery) ([]domain.FlashcardSnapshot, int, error)

	mu      sync.Mutex
	Cards   []*domain.Flashcard
	Queries []domain.FlashcardQuery
}

var _ store.FlashcardStore = (*MockFlashcardStore)(nil)

// Save implements store.FlashcardStore
func (m *MockFlashcardStore) Save(ctx context.Context, card *domain.Flashcard) (*domain.Flashcard, error) {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, card)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cards = append(m.Cards, card)
	return card, nil
}

// SaveMultiple implements store.FlashcardStore
func (m *MockFlashcardStore) SaveMultiple(ctx context.Context, cards []*domain.Flashcard) error {
	if m.SaveMultipleFn != nil {
		return m.SaveMultipleFn(ctx, cards)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cards = append(m.Cards, cards...)
	return nil
}

// GetByID implements store.FlashcardStore
func (m *MockFlashcardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Flashcard, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Cards {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, store.ErrFlashcardNotFound
}

// FindByUserID implements store.FlashcardStore
func (m *MockFlashcardStore) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Flashcard, error) {
	if m.FindByUserIDFn != nil {
		return m.FindByUserIDFn(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Flashcard{}
	for _, c := range m.Cards {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

// FindPage implements store.FlashcardStore. Every query is recorded in Queries.
func (m *MockFlashcardStore) FindPage(
	ctx context.Context,
	q domain.FlashcardQuery,
) ([]domain.FlashcardSnapshot, int, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, q)
	m.mu.Unlock()

	if m.FindPageFn != nil {
		return m.FindPageFn(ctx, q)
	}

	cards, err := m.FindByUserID(ctx, q.UserID)
	if err != nil {
		return nil, 0, err
	}
	snapshots := make([]domain.FlashcardSnapshot, 0, len(cards))
	for _, c := range cards {
		snapshots = append(snapshots, c.Snapshot())
	}
	page, total := q.Apply(snapshots)
	return page, total, nil
}

// WithTx implements store.FlashcardStore. The mock ignores the transaction.
func (m *MockFlashcardStore) WithTx(_ *sql.Tx) store.FlashcardStore {
	return m
}
