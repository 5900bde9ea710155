package mocks

import (
	"errors"

	"github.com/phrazzld/cards-api/internal/service/auth"
)

// MockPasswordVerifier implements auth.PasswordVerifier and auth.PasswordHasher
// for testing. Hash prefixes the password with "hashed:".
type MockPasswordVerifier struct {
	// ShouldSucceed determines whether the password comparison should succeed
	ShouldSucceed bool

	// CompareFn allows for custom comparison logic in tests
	CompareFn func(hashedPassword, password string) error

	// HashFn allows for custom hashing in tests
	HashFn func(password string) (string, error)

	// CompareCallCount tracks how many times Compare was called
	CompareCallCount int
}

var (
	_ auth.PasswordVerifier = (*MockPasswordVerifier)(nil)
	_ auth.PasswordHasher   = (*MockPasswordVerifier)(nil)
)

// Compare implements the auth.PasswordVerifier interface
func (m *MockPasswordVerifier) Compare(hashedPassword, password string) error {
	m.CompareCallCount++

	if m.CompareFn != nil {
		return m.CompareFn(hashedPassword, password)
	}
	if m.ShouldSucceed || hashedPassword == "hashed:"+password {
		return nil
	}
	return errors.New("password mismatch")
}

// Hash implements the auth.PasswordHasher interface
func (m *MockPasswordVerifier) Hash(password string) (string, error) {
	if m.HashFn != nil {
		return m.HashFn(password)
	}
	return "hashed:" + password, nil
}
