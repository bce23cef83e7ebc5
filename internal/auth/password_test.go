package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	hash, err := HashPassword("Password123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "Password123", hash)

	assert.NoError(t, ComparePassword(hash, "Password123"))
	assert.Error(t, ComparePassword(hash, "password123"))
}

func TestHashAcceptsLongPassword(t *testing.T) {
	long := strings.Repeat("x", 80)
	hash, err := HashPassword(long, bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, long))

	// Same first 72 bytes, different tail.
	assert.Error(t, ComparePassword(hash, strings.Repeat("x", 72)+"yyyyyyyy"))
	assert.Error(t, ComparePassword(hash, strings.Repeat("x", 72)))
}

func TestHashFallsBackOnBadCost(t *testing.T) {
	hash, err := HashPassword("Password123", 99)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
