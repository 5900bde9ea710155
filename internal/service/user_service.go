package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/platform/logger"
	"github.com/phrazzld/cards-api/internal/service/auth"
	"github.com/phrazzld/cards-api/internal/store"
)

// RegisterCommand carries the fields of a registration request.
type RegisterCommand struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
}

// UserService provides registration and credential checks.
type UserService interface {
	// Register validates and stores a new user with a hashed password.
	Register(ctx context.Context, cmd RegisterCommand) (*domain.User, error)

	// Authenticate returns the user when the password matches.
	// Any mismatch or unknown username yields ErrInvalidCredentials.
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)

	// GetUser retrieves a user by their ID
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	users      store.UserStore
	transactor store.Transactor
	hasher     auth.PasswordHasher
	verifier   auth.PasswordVerifier
	logger     *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(
	users store.UserStore,
	transactor store.Transactor,
	hasher auth.PasswordHasher,
	verifier auth.PasswordVerifier,
	logger *slog.Logger,
) *UserServiceImpl {
	if users == nil || transactor == nil || hasher == nil || verifier == nil {
		panic("user service dependencies cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserServiceImpl{
		users:      users,
		transactor: transactor,
		hasher:     hasher,
		verifier:   verifier,
		logger:     logger.With(slog.String("component", "user_service")),
	}
}

var _ UserService = (*UserServiceImpl)(nil)

// Register creates a new user. Uses a transaction to ensure atomicity of the operation.
func (s *UserServiceImpl) Register(ctx context.Context, cmd RegisterCommand) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(cmd.Username, cmd.Email, cmd.Password, cmd.FirstName, cmd.LastName)
	if err != nil {
		log.DebugContext(ctx, "rejected registration", slog.String("error", err.Error()))
		return nil, err
	}

	hashed, err := s.hasher.Hash(user.Password)
	if err != nil {
		log.ErrorContext(ctx, "failed to hash password", slog.String("error", err.Error()))
		return nil, NewServiceError("user", "register", "failed to hash password", err)
	}
	user.HashedPassword = hashed
	user.Password = ""

	err = s.transactor.InTx(ctx, func(ctx context.Context, tx store.Stores) error {
		return tx.Users.Create(ctx, user)
	})
	if err != nil {
		if store.IsDuplicateError(err) {
			log.DebugContext(ctx, "attempted to register existing user",
				slog.String("username", cmd.Username))
			return nil, err
		}
		log.ErrorContext(ctx, "failed to save user",
			slog.String("error", err.Error()),
			slog.String("username", cmd.Username))
		return nil, NewServiceError("user", "register", "failed to save user", err)
	}

	log.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("username", user.Username))

	return user, nil
}

// Authenticate checks a username and password pair.
func (s *UserServiceImpl) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.DebugContext(ctx, "login for unknown user", slog.String("username", username))
			return nil, ErrInvalidCredentials
		}
		log.ErrorContext(ctx, "failed to look up user",
			slog.String("error", err.Error()),
			slog.String("username", username))
		return nil, NewServiceError("user", "authenticate", "failed to look up user", err)
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		log.DebugContext(ctx, "password mismatch", slog.String("username", username))
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetUser retrieves a user by their ID
func (s *UserServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}
