package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/cards-api/internal/api/shared"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/platform/logger"
	"github.com/phrazzld/cards-api/internal/service"
	"github.com/phrazzld/cards-api/internal/service/auth"
)

// AuthHandler handles authentication-related API requests.
type AuthHandler struct {
	users      service.UserService
	jwtService auth.JWTService
	logger     *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(users service.UserService, jwtService auth.JWTService, logger *slog.Logger) *AuthHandler {
	if users == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("users cannot be nil for AuthHandler")
	}
	if jwtService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("jwtService cannot be nil for AuthHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		users:      users,
		jwtService: jwtService,
		logger:     logger.With(slog.String("component", "auth_handler")),
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), service.RegisterCommand{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to register user")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, RegisterResponse{UserID: user.ID})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to authenticate user", shared.WithElevatedLogLevel())
		return
	}

	h.respondWithTokens(w, r, user)
}

// RefreshToken handles POST /api/auth/refresh. A valid refresh token is
// exchanged for a new access and refresh token pair.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req RefreshTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to refresh token", shared.WithElevatedLogLevel())
		return
	}

	user, err := h.users.GetUser(r.Context(), claims.UserID)
	if err != nil {
		log.WarnContext(r.Context(), "refresh token for unknown user",
			slog.String("user_id", claims.UserID.String()))
		HandleAPIError(w, r, auth.ErrInvalidRefreshToken, "Failed to refresh token")
		return
	}

	h.respondWithTokens(w, r, user)
}

func (h *AuthHandler) respondWithTokens(w http.ResponseWriter, r *http.Request, user *domain.User) {
	access, refresh, err := h.issueTokens(r.Context(), user.ID, user.Username)
	if err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).ErrorContext(r.Context(),
			"failed to generate tokens",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to generate authentication token")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TokenResponse{
		Username:     user.Username,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(h.jwtService.AccessTokenLifetime().Seconds()),
	})
}

func (h *AuthHandler) issueTokens(ctx context.Context, userID uuid.UUID, username string) (string, string, error) {
	access, err := h.jwtService.GenerateToken(ctx, userID, username)
	if err != nil {
		return "", "", err
	}
	refresh, err := h.jwtService.GenerateRefreshToken(ctx, userID, username)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
