package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/mocks"
	"github.com/phrazzld/cards-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func seedCards(t *testing.T, userID uuid.UUID, n int, source domain.FlashcardSource) []*domain.Flashcard {
	t.Helper()
	cards := make([]*domain.Flashcard, 0, n)
	for i := 0; i < n; i++ {
		var card *domain.Flashcard
		var err error
		if source == domain.FlashcardSourceGenerated {
			card, err = domain.NewGeneratedFlashcard(userID, fmt.Sprintf("Q%02d", i), "A")
		} else {
			card, err = domain.NewManualFlashcard(userID, fmt.Sprintf("Q%02d", i), "A")
		}
		require.NoError(t, err)
		cards = append(cards, card)
	}
	return cards
}

func TestNewFlashcardService(t *testing.T) {
	t.Run("nil store", func(t *testing.T) {
		svc, err := NewFlashcardService(nil, nil)
		assert.Nil(t, svc)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("nil logger uses default", func(t *testing.T) {
		svc, err := NewFlashcardService(&mocks.MockFlashcardStore{}, nil)
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestCreateFlashcard(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name    string
		front   string
		back    string
		wantErr error
	}{
		{name: "valid", front: "What is Go?", back: "A language"},
		{name: "blank front", front: "   ", back: "A", wantErr: domain.ErrEmptyContent},
		{name: "empty back", front: "Q", back: "", wantErr: domain.ErrEmptyContent},
		{name: "front too long", front: strings.Repeat("x", 1001), back: "A", wantErr: domain.ErrContentTooLong},
		{name: "exactly 1000 characters", front: strings.Repeat("é", 1000), back: "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := &mocks.MockFlashcardStore{}
			svc, err := NewFlashcardService(cards, nil)
			require.NoError(t, err)

			resp, err := svc.CreateFlashcard(context.Background(), CreateFlashcardCommand{
				UserID:       userID,
				FrontContent: tt.front,
				BackContent:  tt.back,
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, domain.ErrValidation)
				assert.Nil(t, resp)
				assert.Empty(t, cards.Cards)
				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, resp.ID)
			assert.Equal(t, tt.front, resp.FrontContent)
			assert.Equal(t, tt.back, resp.BackContent)
			assert.Equal(t, domain.FlashcardSourceManual, resp.Source)
			assert.False(t, resp.CreatedAt.IsZero())
			require.Len(t, cards.Cards, 1)
			assert.Equal(t, userID, cards.Cards[0].UserID)
		})
	}
}

func TestCreateFlashcard_StoreError(t *testing.T) {
	dbErr := errors.New("connection refused")
	cards := &mocks.MockFlashcardStore{
		SaveFn: func(ctx context.Context, card *domain.Flashcard) (*domain.Flashcard, error) {
			return nil, dbErr
		},
	}
	svc, err := NewFlashcardService(cards, nil)
	require.NoError(t, err)

	_, err = svc.CreateFlashcard(context.Background(), CreateFlashcardCommand{
		UserID:       uuid.New(),
		FrontContent: "Q",
		BackContent:  "A",
	})

	assert.ErrorIs(t, err, dbErr)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "create_flashcard", svcErr.Operation)
}

func TestGetFlashcards_Paging(t *testing.T) {
	userID := uuid.New()
	cards := &mocks.MockFlashcardStore{Cards: seedCards(t, userID, 25, domain.FlashcardSourceManual)}
	svc, err := NewFlashcardService(cards, nil)
	require.NoError(t, err)

	tests := []struct {
		name          string
		page, size    *int
		wantLen       int
		wantPage      int
		wantSize      int
		wantTotalPage int
	}{
		{name: "defaults", wantLen: 20, wantPage: 0, wantSize: 20, wantTotalPage: 2},
		{name: "last partial page", page: intPtr(2), size: intPtr(10), wantLen: 5, wantPage: 2, wantSize: 10, wantTotalPage: 3},
		{name: "page past the end", page: intPtr(9), size: intPtr(10), wantLen: 0, wantPage: 9, wantSize: 10, wantTotalPage: 3},
		{name: "size capped", size: intPtr(500), wantLen: 25, wantPage: 0, wantSize: 100, wantTotalPage: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.GetFlashcards(context.Background(), GetFlashcardsCommand{
				UserID: userID,
				Page:   tt.page,
				Size:   tt.size,
			})
			require.NoError(t, err)

			assert.Len(t, resp.Content, tt.wantLen)
			assert.NotNil(t, resp.Content)
			assert.Equal(t, tt.wantPage, resp.PageInfo.Page)
			assert.Equal(t, tt.wantSize, resp.PageInfo.Size)
			assert.Equal(t, 25, resp.PageInfo.TotalElements)
			assert.Equal(t, tt.wantTotalPage, resp.PageInfo.TotalPages)
		})
	}
}

func TestGetFlashcards_InvalidPageRequest(t *testing.T) {
	cards := &mocks.MockFlashcardStore{}
	svc, err := NewFlashcardService(cards, nil)
	require.NoError(t, err)

	tests := []struct {
		name       string
		page, size *int
	}{
		{name: "negative page", page: intPtr(-1)},
		{name: "zero size", size: intPtr(0)},
		{name: "negative size", size: intPtr(-5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetFlashcards(context.Background(), GetFlashcardsCommand{
				UserID: uuid.New(),
				Page:   tt.page,
				Size:   tt.size,
			})
			assert.ErrorIs(t, err, domain.ErrInvalidPageRequest)
		})
	}
	assert.Empty(t, cards.Queries, "invalid requests must not reach the store")
}

func TestGetFlashcards_SourceFilter(t *testing.T) {
	userID := uuid.New()
	seeded := append(
		seedCards(t, userID, 3, domain.FlashcardSourceManual),
		seedCards(t, userID, 2, domain.FlashcardSourceGenerated)...,
	)
	cards := &mocks.MockFlashcardStore{Cards: seeded}
	svc, err := NewFlashcardService(cards, nil)
	require.NoError(t, err)

	tests := []struct {
		name      string
		source    *string
		wantTotal int
	}{
		{name: "absent", source: nil, wantTotal: 5},
		{name: "blank", source: strPtr("  "), wantTotal: 5},
		{name: "generated lower case", source: strPtr("generated"), wantTotal: 2},
		{name: "manual", source: strPtr("MANUAL"), wantTotal: 3},
		{name: "unknown is ignored", source: strPtr("bogus"), wantTotal: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.GetFlashcards(context.Background(), GetFlashcardsCommand{
				UserID: userID,
				Source: tt.source,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, resp.PageInfo.TotalElements)
		})
	}
}

func TestGetFlashcards_OnlyOwnCards(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	cards := &mocks.MockFlashcardStore{
		Cards: append(seedCards(t, owner, 2, domain.FlashcardSourceManual),
			seedCards(t, other, 4, domain.FlashcardSourceManual)...),
	}
	svc, err := NewFlashcardService(cards, nil)
	require.NoError(t, err)

	resp, err := svc.GetFlashcards(context.Background(), GetFlashcardsCommand{UserID: owner})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.PageInfo.TotalElements)
}

func TestGetFlashcards_SortPassedToStore(t *testing.T) {
	cards := &mocks.MockFlashcardStore{}
	svc, err := NewFlashcardService(cards, nil)
	require.NoError(t, err)

	_, err = svc.GetFlashcards(context.Background(), GetFlashcardsCommand{
		UserID: uuid.New(),
		Sort:   strPtr("frontContent, desc "),
	})
	require.NoError(t, err)

	require.Len(t, cards.Queries, 1)
	assert.Equal(t, domain.SortByFrontContent, cards.Queries[0].SortField)
	assert.Equal(t, domain.SortDescending, cards.Queries[0].SortDirection)
}

func TestGetFlashcards_StoreError(t *testing.T) {
	cards := &mocks.MockFlashcardStore{
		FindPageFn: func(ctx context.Context, q domain.FlashcardQuery) ([]domain.FlashcardSnapshot, int, error) {
			return nil, 0, store.ErrTransactionFailed
		},
	}
	svc, err := NewFlashcardService(cards, nil)
	require.NoError(t, err)

	resp, err := svc.GetFlashcards(context.Background(), GetFlashcardsCommand{UserID: uuid.New()})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, store.ErrTransactionFailed)
}
