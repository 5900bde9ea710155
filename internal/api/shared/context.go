package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/phrazzld/cards-api/internal/platform/logger"
	"github.com/phrazzld/cards-api/internal/service/auth"
)

// ContextKey is the type of request context keys owned by the API layer.
type ContextKey string

const (
	// PrincipalContextKey is the context key for the authenticated principal.
	PrincipalContextKey ContextKey = "principal"

	// TraceIDLength is the number of random bytes in a generated trace ID.
	TraceIDLength = 16 // 32 hex characters
)

// WithPrincipal returns a copy of ctx carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// PrincipalFromContext returns the principal placed in ctx by the auth
// middleware. The zero Principal is returned when there is none, which the
// identity resolver rejects as unauthenticated.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(auth.Principal)
	return p, ok
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	return logger.TraceID(ctx)
}

// NewTraceID creates a random 32-character hex trace ID.
func NewTraceID() string {
	b := make([]byte, TraceIDLength)
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
