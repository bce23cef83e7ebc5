package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" pt_user ")
	assert.True(t, ok)
	assert.Equal(t, RoleTrainer, r)

	_, ok = ParseRole("SUPERUSER")
	assert.False(t, ok)
}

func TestHomePath(t *testing.T) {
	assert.Equal(t, "/", RoleClient.HomePath())
	assert.Equal(t, "/dashboard/pt", RoleTrainer.HomePath())
	assert.Equal(t, "/dashboard/gym-staff", RoleGymStaff.HomePath())
	assert.Equal(t, "/dashboard/admin", RoleAdmin.HomePath())
}

func TestSessionValidity(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Session{
		Tokens:           Tokens{RefreshToken: "r"},
		ExpiresAt:        now.Add(time.Hour),
		RefreshExpiresAt: now.Add(24 * time.Hour),
	}

	assert.True(t, s.Valid(now))
	assert.False(t, s.Valid(now.Add(time.Hour)))
	assert.True(t, s.Refreshable(now.Add(2*time.Hour)))
	assert.False(t, s.Refreshable(now.Add(24*time.Hour)))
}

func TestResetChallengeExpiry(t *testing.T) {
	now := time.Now()
	c := ResetChallenge{ExpiresAt: now.Add(10 * time.Minute)}
	assert.False(t, c.Expired(now))
	assert.True(t, c.Expired(now.Add(10*time.Minute)))
}

func TestIdentityRecordUserDropsHash(t *testing.T) {
	rec := IdentityRecord{ID: "1", Email: "a@b.co", PasswordHash: "secret", Role: RoleAdmin}
	u := rec.User()
	assert.Equal(t, "1", u.ID)
	assert.Equal(t, RoleAdmin, u.Role)
}
