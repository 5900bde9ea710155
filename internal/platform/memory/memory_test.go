package memory_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/platform/memory"
	"github.com/phrazzld/cards-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func createUser(t *testing.T, stores store.Stores, username string) *domain.User {
	t.Helper()
	user, err := domain.NewUser(username, username+"@example.com", "Str0ng!pass", "Test", "User")
	require.NoError(t, err)
	user.HashedPassword = "hash"
	require.NoError(t, stores.Users.Create(context.Background(), user))
	return user
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	stores := memory.New(nil).Stores()
	user := createUser(t, stores, "alice")

	got, err := stores.Users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Empty(t, got.Password, "plaintext password is never stored")

	_, err = stores.Users.GetByUsername(ctx, "ALICE")
	assert.ErrorIs(t, err, store.ErrUserNotFound)

	_, err = stores.Users.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrUserNotFound)

	dup, err := domain.NewUser("alice", "other@example.com", "Str0ng!pass", "A", "B")
	require.NoError(t, err)
	dup.HashedPassword = "hash"
	assert.ErrorIs(t, stores.Users.Create(ctx, dup), store.ErrUsernameExists)

	dupEmail, err := domain.NewUser("alice2", "alice@example.com", "Str0ng!pass", "A", "B")
	require.NoError(t, err)
	dupEmail.HashedPassword = "hash"
	assert.ErrorIs(t, stores.Users.Create(ctx, dupEmail), store.ErrEmailExists)
}

func TestFlashcardStore_FindPage(t *testing.T) {
	ctx := context.Background()
	stores := memory.New(nil).Stores()
	owner := createUser(t, stores, "owner")
	other := createUser(t, stores, "other")

	for i := 0; i < 25; i++ {
		card, err := domain.NewManualFlashcard(owner.ID, fmt.Sprintf("Q%02d", i), "A")
		require.NoError(t, err)
		_, err = stores.Flashcards.Save(ctx, card)
		require.NoError(t, err)
	}
	foreign, err := domain.NewManualFlashcard(other.ID, "foreign", "A")
	require.NoError(t, err)
	_, err = stores.Flashcards.Save(ctx, foreign)
	require.NoError(t, err)

	q, err := domain.NewFlashcardQuery(owner.ID, nil, nil, intPtr(2), intPtr(10))
	require.NoError(t, err)

	content, total, err := stores.Flashcards.FindPage(ctx, q)

	require.NoError(t, err)
	assert.Len(t, content, 5)
	assert.Equal(t, 25, total)
	assert.Equal(t, 3, q.TotalPages(total))
	for _, s := range content {
		assert.Equal(t, owner.ID, s.UserID)
	}

	all, err := stores.Flashcards.FindByUserID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, all, 25)
	assert.Equal(t, "Q00", all[0].FrontContent)
}

func TestFlashcardStore_SaveErrors(t *testing.T) {
	ctx := context.Background()
	stores := memory.New(nil).Stores()
	user := createUser(t, stores, "bob")

	orphan, err := domain.NewManualFlashcard(uuid.New(), "Q", "A")
	require.NoError(t, err)
	_, err = stores.Flashcards.Save(ctx, orphan)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	good, err := domain.NewManualFlashcard(user.ID, "Q", "A")
	require.NoError(t, err)
	err = stores.Flashcards.SaveMultiple(ctx, []*domain.Flashcard{good, orphan})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	cards, err := stores.Flashcards.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, cards, "a failed batch stores nothing")

	_, err = stores.Flashcards.GetByID(ctx, good.ID)
	assert.ErrorIs(t, err, store.ErrFlashcardNotFound)
}

func TestGenerationSessionStore(t *testing.T) {
	ctx := context.Background()
	stores := memory.New(nil).Stores()
	user := createUser(t, stores, "carol")

	session, err := domain.NewGenerationSession(user.ID, strings.Repeat("x", 1000), "m")
	require.NoError(t, err)
	require.NoError(t, stores.Sessions.Create(ctx, session))

	require.NoError(t, session.MarkProcessing())
	require.NoError(t, session.Complete([]domain.Suggestion{domain.NewSuggestion("Q", "A")}))
	require.NoError(t, stores.Sessions.Update(ctx, session))

	loaded, err := stores.Sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GenerationStatusCompleted, loaded.Status)
	require.Len(t, loaded.Suggestions, 1)

	loaded.Suggestions[0].FrontContent = "mutated"
	again, err := stores.Sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q", again.Suggestions[0].FrontContent, "returned sessions are copies")

	pending, err := stores.Sessions.ListByStatus(ctx, domain.GenerationStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	completed, err := stores.Sessions.ListByStatus(ctx, domain.GenerationStatusCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 1)

	_, err = stores.Sessions.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrGenerationSessionNotFound)
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := memory.New(nil)
	stores := db.Stores()
	user := createUser(t, stores, "dave")
	boom := errors.New("boom")

	err := db.InTx(ctx, func(ctx context.Context, tx store.Stores) error {
		card, err := domain.NewGeneratedFlashcard(user.ID, "Q", "A")
		require.NoError(t, err)
		_, err = tx.Flashcards.Save(ctx, card)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	cards, err := stores.Flashcards.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, cards)

	err = db.InTx(ctx, func(ctx context.Context, tx store.Stores) error {
		card, err := domain.NewGeneratedFlashcard(user.ID, "Q", "A")
		require.NoError(t, err)
		_, err = tx.Flashcards.Save(ctx, card)
		return err
	})
	require.NoError(t, err)

	cards, err = stores.Flashcards.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestInTxRollbackKeepsOtherWriters(t *testing.T) {
	ctx := context.Background()
	db := memory.New(nil)
	stores := db.Stores()
	alice := createUser(t, stores, "alice")
	bob := createUser(t, stores, "bob")
	boom := errors.New("duplicate username")

	running, err := domain.NewGenerationSession(bob.ID, strings.Repeat("x", 1000), "m")
	require.NoError(t, err)
	require.NoError(t, stores.Sessions.Create(ctx, running))
	require.NoError(t, running.MarkProcessing())
	require.NoError(t, stores.Sessions.Update(ctx, running))

	var newUserID uuid.UUID
	err = db.InTx(ctx, func(ctx context.Context, tx store.Stores) error {
		card, err := domain.NewManualFlashcard(alice.ID, "rolled back", "A")
		require.NoError(t, err)
		_, err = tx.Flashcards.Save(ctx, card)
		require.NoError(t, err)

		newUser := createUser(t, tx, "frank")
		newUserID = newUser.ID

		// Another request and a worker write outside the transaction.
		done := make(chan error, 1)
		go func() {
			bobCard, err := domain.NewManualFlashcard(bob.ID, "kept", "A")
			if err != nil {
				done <- err
				return
			}
			if _, err := stores.Flashcards.Save(ctx, bobCard); err != nil {
				done <- err
				return
			}
			if err := running.Complete([]domain.Suggestion{domain.NewSuggestion("Q", "A")}); err != nil {
				done <- err
				return
			}
			done <- stores.Sessions.Update(ctx, running)
		}()
		require.NoError(t, <-done)

		return boom
	})
	assert.ErrorIs(t, err, boom)

	aliceCards, err := stores.Flashcards.FindByUserID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, aliceCards)

	_, err = stores.Users.GetByID(ctx, newUserID)
	assert.ErrorIs(t, err, store.ErrUserNotFound)

	bobCards, err := stores.Flashcards.FindByUserID(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobCards, 1)
	assert.Equal(t, "kept", bobCards[0].FrontContent)

	session, err := stores.Sessions.GetByID(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GenerationStatusCompleted, session.Status)
}

func TestInTxRollbackRestoresUpdatedSession(t *testing.T) {
	ctx := context.Background()
	db := memory.New(nil)
	stores := db.Stores()
	user := createUser(t, stores, "grace")
	boom := errors.New("unknown suggestion")

	session, err := domain.NewGenerationSession(user.ID, strings.Repeat("x", 1000), "m")
	require.NoError(t, err)
	require.NoError(t, stores.Sessions.Create(ctx, session))
	require.NoError(t, session.MarkProcessing())
	require.NoError(t, session.Complete([]domain.Suggestion{domain.NewSuggestion("Q", "A")}))
	require.NoError(t, stores.Sessions.Update(ctx, session))

	err = db.InTx(ctx, func(ctx context.Context, tx store.Stores) error {
		locked, err := tx.Sessions.GetForUpdate(ctx, session.ID)
		require.NoError(t, err)
		require.NoError(t, locked.RecordAccepted(1))
		require.NoError(t, tx.Sessions.Update(ctx, locked))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	loaded, err := stores.Sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Zero(t, loaded.AcceptedCount)
}

func TestConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	stores := memory.New(nil).Stores()
	user := createUser(t, stores, "erin")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			card, err := domain.NewManualFlashcard(user.ID, fmt.Sprintf("Q%d", i), "A")
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := stores.Flashcards.Save(ctx, card); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	cards, err := stores.Flashcards.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 50)
}
