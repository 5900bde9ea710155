package memory

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/store"
)

// UserStore implements store.UserStore in memory.
type UserStore struct {
	db   *DB
	undo *undoLog
}

var _ store.UserStore = (*UserStore)(nil)

// Create implements store.UserStore.Create.
func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	if user.HashedPassword == "" {
		return store.ErrInvalidEntity
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, existing := range s.db.users {
		if existing.Username == user.Username {
			return store.ErrUsernameExists
		}
		if existing.Email == user.Email {
			return store.ErrEmailExists
		}
	}

	stored := *user
	stored.Password = ""
	s.db.users[stored.ID] = stored
	s.undo.record(func() { delete(s.db.users, stored.ID) })
	return nil
}

// GetByID implements store.UserStore.GetByID.
func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	user, ok := s.db.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &user, nil
}

// GetByUsername implements store.UserStore.GetByUsername.
func (s *UserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, user := range s.db.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

// WithTx implements store.UserStore.WithTx. The transaction is ignored.
func (s *UserStore) WithTx(_ *sql.Tx) store.UserStore {
	return s
}
