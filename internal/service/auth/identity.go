package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/platform/logger"
	"github.com/phrazzld/cards-api/internal/store"
)

// Principal is the authenticated identity taken from a validated access token.
type Principal struct {
	Username      string
	Authenticated bool
}

// UserLookup finds users by username.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// IdentityResolver maps an authenticated principal to its stored user id.
type IdentityResolver struct {
	users  UserLookup
	logger *slog.Logger
}

// NewIdentityResolver creates an IdentityResolver backed by users.
func NewIdentityResolver(users UserLookup, logger *slog.Logger) *IdentityResolver {
	if users == nil {
		panic("user lookup cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityResolver{
		users:  users,
		logger: logger.With(slog.String("component", "identity_resolver")),
	}
}

// Resolve returns the id of the user behind p.
//
// It returns ErrUnauthenticated when p is not an authenticated principal with
// a username and ErrUserNotFound when no user has that username. Any other
// lookup failure is returned unchanged.
func (r *IdentityResolver) Resolve(ctx context.Context, p Principal) (uuid.UUID, error) {
	if !p.Authenticated || p.Username == "" {
		return uuid.Nil, ErrUnauthenticated
	}

	user, err := r.users.GetByUsername(ctx, p.Username)
	if err != nil {
		if store.IsNotFoundError(err) {
			logger.FromContextOrDefault(ctx, r.logger).WarnContext(ctx,
				"authenticated principal has no stored user",
				slog.String("username", p.Username))
			return uuid.Nil, fmt.Errorf("%w: %w", ErrUserNotFound, err)
		}
		return uuid.Nil, err
	}

	return user.ID, nil
}
