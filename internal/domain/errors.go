package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is usually wrapped in a ValidationError naming the field.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat is returned when data is not in the expected format.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrContentTooLong is returned when content exceeds its length limit.
	ErrContentTooLong = errors.New("content too long")

	// ErrInvalidPageRequest is returned for a negative page index or a
	// page size below one.
	ErrInvalidPageRequest = errors.New("invalid page request")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)

// ValidationError describes a validation failure on a single field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError creates a ValidationError for field wrapping err.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap exposes the underlying sentinel so errors.Is matches both the
// specific error and ErrValidation.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil || errors.Is(e.Err, ErrValidation) {
		return []error{ErrValidation}
	}
	return []error{e.Err, ErrValidation}
}
