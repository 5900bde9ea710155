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

// FlashcardStore implements store.FlashcardStore in memory. Listing runs the
// in-memory query algorithm over the user's cards in insertion order.
type FlashcardStore struct {
	db   *DB
	undo *undoLog
}

var _ store.FlashcardStore = (*FlashcardStore)(nil)

// Save implements store.FlashcardStore.Save.
func (s *FlashcardStore) Save(ctx context.Context, card *domain.Flashcard) (*domain.Flashcard, error) {
	if err := s.SaveMultiple(ctx, []*domain.Flashcard{card}); err != nil {
		return nil, err
	}
	return card, nil
}

// SaveMultiple implements store.FlashcardStore.SaveMultiple. Either all
// cards are stored or none.
func (s *FlashcardStore) SaveMultiple(_ context.Context, cards []*domain.Flashcard) error {
	for _, card := range cards {
		if err := card.Validate(); err != nil {
			return err
		}
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, card := range cards {
		if _, ok := s.db.users[card.UserID]; !ok {
			return fmt.Errorf("%w: user with ID %s not found", store.ErrInvalidEntity, card.UserID)
		}
		if _, ok := s.db.flashcards[card.ID]; ok {
			return fmt.Errorf("%w: flashcard %s", store.ErrDuplicate, card.ID)
		}
	}
	for _, card := range cards {
		s.db.flashcards[card.ID] = *card
		s.db.flashcardOrder = append(s.db.flashcardOrder, card.ID)
		id := card.ID
		s.undo.record(func() { s.db.removeFlashcard(id) })
	}
	return nil
}

// removeFlashcard deletes a card and its position. Callers hold db.mu.
func (db *DB) removeFlashcard(id uuid.UUID) {
	delete(db.flashcards, id)
	if i := slices.Index(db.flashcardOrder, id); i >= 0 {
		db.flashcardOrder = slices.Delete(db.flashcardOrder, i, i+1)
	}
}

// GetByID implements store.FlashcardStore.GetByID.
func (s *FlashcardStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Flashcard, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	card, ok := s.db.flashcards[id]
	if !ok {
		return nil, store.ErrFlashcardNotFound
	}
	return &card, nil
}

// FindByUserID implements store.FlashcardStore.FindByUserID.
func (s *FlashcardStore) FindByUserID(_ context.Context, userID uuid.UUID) ([]*domain.Flashcard, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	cards := []*domain.Flashcard{}
	for _, id := range s.db.flashcardOrder {
		card := s.db.flashcards[id]
		if card.UserID == userID {
			cards = append(cards, &card)
		}
	}
	return cards, nil
}

// FindPage implements store.FlashcardStore.FindPage using FlashcardQuery.Apply.
func (s *FlashcardStore) FindPage(
	ctx context.Context,
	q domain.FlashcardQuery,
) ([]domain.FlashcardSnapshot, int, error) {
	cards, err := s.FindByUserID(ctx, q.UserID)
	if err != nil {
		return nil, 0, err
	}

	snapshots := make([]domain.FlashcardSnapshot, len(cards))
	for i, card := range cards {
		snapshots[i] = card.Snapshot()
	}

	content, total := q.Apply(snapshots)
	return content, total, nil
}

// WithTx implements store.FlashcardStore.WithTx. The transaction is ignored.
func (s *FlashcardStore) WithTx(_ *sql.Tx) store.FlashcardStore {
	return s
}
