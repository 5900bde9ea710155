package mocks

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/store"
)

// MockUserStore implements store.UserStore for testing
type MockUserStore struct {
	// Function fields for customizable behavior
	CreateFn        func(ctx context.Context, user *domain.User) error
	GetByIDFn       func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsernameFn func(ctx context.Context, username string) (*domain.User, error)

	// Data for default implementation, keyed by username
	mu         sync.Mutex
	Users      map[string]*domain.User
	LastUserID uuid.UUID
}

var _ store.UserStore = (*MockUserStore)(nil)

// NewMockUserStore creates a new mock store with initialized defaults
func NewMockUserStore(users ...*domain.User) *MockUserStore {
	m := &MockUserStore{Users: make(map[string]*domain.User)}
	for _, u := range users {
		m.Users[u.Username] = u
	}
	return m
}

// Create implements the UserStore interface
func (m *MockUserStore) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, user)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.Users[user.Username]; exists {
		return store.ErrUsernameExists
	}
	for _, u := range m.Users {
		if u.Email == user.Email {
			return store.ErrEmailExists
		}
	}

	m.Users[user.Username] = user
	m.LastUserID = user.ID
	return nil
}

// GetByID implements the UserStore interface
func (m *MockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.Users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, store.ErrUserNotFound
}

// GetByUsername implements the UserStore interface
func (m *MockUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.GetByUsernameFn != nil {
		return m.GetByUsernameFn(ctx, username)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.Users[username]
	if !exists {
		return nil, store.ErrUserNotFound
	}
	return user, nil
}

// WithTx implements the UserStore interface. The mock ignores the transaction.
func (m *MockUserStore) WithTx(_ *sql.Tx) store.UserStore {
	return m
}
