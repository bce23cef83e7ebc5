package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easybody/auth-gateway/internal/domain"
)

func decodeSegment(t *testing.T, seg string) map[string]any {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestIssueBuildsMockTokens(t *testing.T) {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer("mock-cognito", time.Hour, 24*time.Hour).WithClock(func() time.Time { return now })

	user := domain.User{ID: "mock-user-1", Email: "trainer@test.com", FirstName: "Tom", LastName: "Trainer", Role: domain.RoleTrainer}
	s, err := issuer.Issue(user)
	require.NoError(t, err)

	assert.Equal(t, now.Add(time.Hour), s.ExpiresAt)
	assert.Equal(t, now.Add(24*time.Hour), s.RefreshExpiresAt)
	assert.Equal(t, user, s.User)

	parts := strings.Split(s.IDToken, ".")
	require.Len(t, parts, 3)
	header := decodeSegment(t, parts[0])
	assert.Equal(t, "HS256", header["alg"])
	assert.Equal(t, "JWT", header["typ"])

	idClaims := decodeSegment(t, parts[1])
	assert.Equal(t, "mock-user-1", idClaims["sub"])
	assert.Equal(t, "trainer@test.com", idClaims["email"])
	assert.Equal(t, "Tom", idClaims["given_name"])
	assert.Equal(t, "PT_USER", idClaims["custom:role"])
	assert.Equal(t, "mock-cognito", idClaims["iss"])
	assert.EqualValues(t, now.Unix(), idClaims["iat"])
	assert.EqualValues(t, now.Add(time.Hour).Unix(), idClaims["exp"])

	access := decodeSegment(t, strings.Split(s.AccessToken, ".")[1])
	assert.Equal(t, []any{"PT_USER"}, access["cognito:groups"])

	refresh := decodeSegment(t, s.RefreshToken)
	assert.Equal(t, "mock-user-1", refresh["sub"])
}

func TestIssueSignaturesDiffer(t *testing.T) {
	issuer := NewTokenIssuer("mock-cognito", 0, 0)
	user := domain.User{ID: "u", Role: domain.RoleClient}

	a, err := issuer.Issue(user)
	require.NoError(t, err)
	b, err := issuer.Issue(user)
	require.NoError(t, err)
	assert.NotEqual(t, a.AccessToken, b.AccessToken)
}

func TestParseIDTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("mock-cognito", time.Hour, time.Hour)
	user := domain.User{ID: "abc", Email: "gym@test.com", FirstName: "G", LastName: "S", PhoneNumber: "+100", Role: domain.RoleGymStaff}
	s, err := issuer.Issue(user)
	require.NoError(t, err)

	claims, err := ParseIDToken(s.IDToken)
	require.NoError(t, err)
	assert.Equal(t, user, claims.User())
}

func TestParseIDTokenRejectsGarbage(t *testing.T) {
	_, err := ParseIDToken("")
	assert.Error(t, err)
	_, err = ParseIDToken("not-a-jwt")
	assert.Error(t, err)
}

func TestClaimsUnknownRoleFallsBackToClient(t *testing.T) {
	c := &IDClaims{Role: "ROOT"}
	assert.Equal(t, domain.RoleClient, c.User().Role)
}
