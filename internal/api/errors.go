package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/cards-api/internal/api/shared"
	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/service"
	"github.com/phrazzld/cards-api/internal/service/auth"
	"github.com/phrazzld/cards-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, service.ErrNotOwned),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, domain.ErrSessionNotCompleted):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrGenerationUnavailable):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *domain.ValidationError

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"

	case errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid refresh token"

	case errors.Is(err, auth.ErrUnauthenticated):
		return "Authentication required"

	case errors.Is(err, auth.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid username or password"

	// Authorization errors
	case errors.Is(err, service.ErrNotOwned),
		errors.Is(err, domain.ErrUnauthorized):
		return "You do not have access to this resource"

	// Not found errors
	case errors.Is(err, store.ErrGenerationSessionNotFound):
		return "Generation session not found"

	case errors.Is(err, store.ErrFlashcardNotFound):
		return "Flashcard not found"

	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	// Conflict errors
	case errors.Is(err, store.ErrUsernameExists):
		return "Username already exists"

	case errors.Is(err, store.ErrEmailExists):
		return "Email already exists"

	case errors.Is(err, domain.ErrSessionNotCompleted):
		return "Generation session is not completed"

	// Validation messages are written for clients.
	case errors.As(err, &validationErr):
		return validationErr.Error()

	case errors.Is(err, domain.ErrValidation):
		return "Validation error"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case errors.Is(err, service.ErrGenerationUnavailable):
		return "Flashcard generation is currently unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and safe message for err. fallback
// replaces the generic message for unexpected errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string, opts ...shared.ResponseOption) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// SanitizeValidationError turns request validation failures into a short
// message naming the first offending field.
func SanitizeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fieldPath(fe), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// fieldPath strips the request type name from a namespace such as
// "approveRequest.approvedSuggestions[0].suggestionId".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "uuid":
		return "invalid identifier"
	case "alphanumunicode", "username":
		return "invalid characters"
	default:
		return "validation failed"
	}
}
