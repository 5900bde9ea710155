package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptVerifier(t *testing.T) {
	t.Parallel()

	v := NewBcryptVerifier(bcrypt.MinCost)

	hashed, err := v.Hash("Sup3r$ecret")
	require.NoError(t, err)
	assert.NotEqual(t, "Sup3r$ecret", hashed)

	cost, err := bcrypt.Cost([]byte(hashed))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	assert.NoError(t, v.Compare(hashed, "Sup3r$ecret"))
	assert.ErrorIs(t, v.Compare(hashed, "wrong"), bcrypt.ErrMismatchedHashAndPassword)
}

func TestNewBcryptVerifier_InvalidCostFallsBack(t *testing.T) {
	t.Parallel()

	assert.Equal(t, bcrypt.DefaultCost, NewBcryptVerifier(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptVerifier(99).cost)
}
