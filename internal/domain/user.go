package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// User field limits.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 8
	// MaxPasswordLength is bcrypt's input limit in bytes.
	MaxPasswordLength = 72
	MaxEmailLength    = 100
	MaxNameLength     = 50
)

// User validation errors
var (
	ErrInvalidUsername     = errors.New("invalid username")
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrInvalidName         = errors.New("invalid name")
	ErrEmptyHashedPassword = errors.New("hashed password cannot be empty")
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// User represents a registered user of the cards application.
type User struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Password       string    `json:"-"` // Plaintext password, used only during registration
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUser creates a new User with a fresh ID and timestamps.
//
// The caller is responsible for hashing the password and clearing the
// plaintext before the user is stored.
func NewUser(username, email, password, firstName, lastName string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Password:  password,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data. A plaintext password is
// validated when present; otherwise a hashed password is required.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if err := ValidateUsername(u.Username); err != nil {
		return err
	}
	if err := validateEmail(u.Email); err != nil {
		return err
	}
	if err := validateName("firstName", u.FirstName); err != nil {
		return err
	}
	if err := validateName("lastName", u.LastName); err != nil {
		return err
	}

	if u.Password != "" {
		return ValidatePassword(u.Password)
	}
	if u.HashedPassword == "" {
		return NewValidationError("password", "cannot be empty", ErrEmptyHashedPassword)
	}
	return nil
}

// ValidateUsername checks length and the allowed character set.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return NewValidationError("username", "must be between 3 and 50 characters", ErrInvalidUsername)
	}
	if !usernamePattern.MatchString(username) {
		return NewValidationError("username", "must contain only letters, numbers and underscore", ErrInvalidUsername)
	}
	return nil
}

// ValidatePassword checks length and that the password mixes upper case,
// lower case, digits and special characters.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return NewValidationError("password", "must be at least 8 characters", ErrInvalidPassword)
	}
	if len(password) > MaxPasswordLength {
		return NewValidationError("password", "must be at most 72 bytes", ErrInvalidPassword)
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return NewValidationError("password",
			"must contain an upper case letter, a lower case letter, a number and a special character",
			ErrInvalidPassword)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" || len(email) > MaxEmailLength || !emailPattern.MatchString(email) {
		return NewValidationError("email", "must be a valid email address", ErrInvalidEmail)
	}
	return nil
}

func validateName(field, name string) error {
	if strings.TrimSpace(name) == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return NewValidationError(field, "must be between 1 and 50 characters", ErrInvalidName)
	}
	return nil
}
