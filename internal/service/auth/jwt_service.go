package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed access token whose subject is the username.
	GenerateToken(ctx context.Context, userID uuid.UUID, username string) (string, error)

	// ValidateToken validates an access token and extracts its claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)

	// GenerateRefreshToken creates a signed refresh token. Refresh tokens live
	// longer and are exchanged for a new token pair.
	GenerateRefreshToken(ctx context.Context, userID uuid.UUID, username string) (string, error)

	// ValidateRefreshToken validates a refresh token and extracts its claims.
	ValidateRefreshToken(ctx context.Context, tokenString string) (*Claims, error)

	// AccessTokenLifetime reports how long issued access tokens stay valid.
	AccessTokenLifetime() time.Duration
}

// Claims represents the validated contents of a token.
type Claims struct {
	// UserID is the unique identifier of the user the token was issued for.
	UserID uuid.UUID `json:"uid,omitempty"`

	// TokenType indicates the purpose of the token ("access" or "refresh").
	TokenType string `json:"type,omitempty"`

	// Subject is the username.
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}

// Principal returns the authenticated identity carried by the claims.
func (c *Claims) Principal() Principal {
	return Principal{Username: c.Subject, Authenticated: c.Subject != ""}
}
