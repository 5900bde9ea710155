package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordVerifier defines the interface for comparing passwords.
type PasswordVerifier interface {
	// Compare compares a hashed password with its possible plaintext equivalent.
	// Returns nil on success, or an error on failure (e.g., mismatch).
	Compare(hashedPassword, password string) error
}

// PasswordHasher hashes plaintext passwords for storage.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// BcryptVerifier implements PasswordVerifier and PasswordHasher using bcrypt.
type BcryptVerifier struct {
	cost int
}

var (
	_ PasswordVerifier = (*BcryptVerifier)(nil)
	_ PasswordHasher   = (*BcryptVerifier)(nil)
)

// NewBcryptVerifier creates a BcryptVerifier hashing with the given cost.
// Costs outside bcrypt's accepted range fall back to bcrypt.DefaultCost.
func NewBcryptVerifier(cost int) *BcryptVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptVerifier{cost: cost}
}

// Compare implements the PasswordVerifier interface using bcrypt.
func (v *BcryptVerifier) Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// Hash implements the PasswordHasher interface using bcrypt.
func (v *BcryptVerifier) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}
