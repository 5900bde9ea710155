package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/api/shared"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/service/auth"
)

// UserResolver maps the request principal to a stored user id.
type UserResolver interface {
	Resolve(ctx context.Context, p auth.Principal) (uuid.UUID, error)
}

// resolveUserID resolves the authenticated user behind r. It writes an error
// response and returns false when that fails.
func resolveUserID(w http.ResponseWriter, r *http.Request, resolver UserResolver, log *slog.Logger) (uuid.UUID, bool) {
	principal, _ := shared.PrincipalFromContext(r.Context())

	userID, err := resolver.Resolve(r.Context(), principal)
	if err != nil {
		log.DebugContext(r.Context(), "could not resolve authenticated user",
			slog.String("error", err.Error()))
		HandleAPIError(w, r, err, "Failed to resolve user")
		return uuid.Nil, false
	}
	return userID, true
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}

// queryInt parses an optional integer query parameter. Absent parameters
// yield nil.
func queryInt(r *http.Request, name string) (*int, error) {
	q := r.URL.Query()
	if !q.Has(name) {
		return nil, nil
	}
	n, err := strconv.Atoi(q.Get(name))
	if err != nil {
		return nil, domain.NewValidationError(name, "must be an integer", domain.ErrInvalidFormat)
	}
	return &n, nil
}

// queryString returns an optional query parameter. Absent parameters yield nil.
func queryString(r *http.Request, name string) *string {
	q := r.URL.Query()
	if !q.Has(name) {
		return nil
	}
	v := q.Get(name)
	return &v
}

// decodeAndValidate decodes the JSON body into req and validates it. It
// writes a 400 response and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := shared.DecodeJSON(w, r, req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}
