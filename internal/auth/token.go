package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/easybody/auth-gateway/internal/domain"
)

const mockSignatureBytes = 32

// IDClaims is the payload of an identity token, shared by the mock issuer and
// the managed identity service.
type IDClaims struct {
	Email       string `json:"email"`
	GivenName   string `json:"given_name"`
	FamilyName  string `json:"family_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Role        string `json:"custom:role"`
	jwt.RegisteredClaims
}

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	Groups []string `json:"cognito:groups"`
	jwt.RegisteredClaims
}

type refreshPayload struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"`
}

// TokenIssuer mints development tokens for the mock provider. The tokens have
// the usual three segment shape but carry a random signature, so nothing can
// verify them.
type TokenIssuer struct {
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer builds an issuer. Zero TTLs fall back to one hour and one day.
func NewTokenIssuer(issuer string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 24 * time.Hour
	}
	return &TokenIssuer{issuer: issuer, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// WithClock returns a copy of the issuer reading time from now.
func (ti *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *ti
	cp.now = now
	return &cp
}

// Issue builds a full session for user.
func (ti *TokenIssuer) Issue(user domain.User) (domain.Session, error) {
	now := ti.now().Truncate(time.Second)
	accessExp := now.Add(ti.accessTTL)
	refreshExp := now.Add(ti.refreshTTL)

	registered := jwt.RegisteredClaims{
		Subject:   user.ID,
		Issuer:    ti.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(accessExp),
	}

	idToken, err := encodeMock(&IDClaims{
		Email:            user.Email,
		GivenName:        user.FirstName,
		FamilyName:       user.LastName,
		PhoneNumber:      user.PhoneNumber,
		Role:             string(user.Role),
		RegisteredClaims: registered,
	})
	if err != nil {
		return domain.Session{}, err
	}

	accessToken, err := encodeMock(&AccessClaims{
		Groups:           []string{string(user.Role)},
		RegisteredClaims: registered,
	})
	if err != nil {
		return domain.Session{}, err
	}

	refresh, err := json.Marshal(refreshPayload{Sub: user.ID, Exp: refreshExp.Unix()})
	if err != nil {
		return domain.Session{}, err
	}

	return domain.Session{
		Tokens: domain.Tokens{
			AccessToken:  accessToken,
			IDToken:      idToken,
			RefreshToken: base64.RawURLEncoding.EncodeToString(refresh),
		},
		ExpiresAt:        accessExp,
		RefreshExpiresAt: refreshExp,
		User:             user,
	}, nil
}

func encodeMock(claims jwt.Claims) (string, error) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SigningString()
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	sig := make([]byte, mockSignatureBytes)
	if _, err := rand.Read(sig); err != nil {
		return "", fmt.Errorf("token signature: %w", err)
	}
	return unsigned + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// ParseIDToken decodes identity token claims without checking the signature.
// Callers must only use it on tokens received directly from the identity service.
func ParseIDToken(token string) (*IDClaims, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	claims := &IDClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode id token: %w", err)
	}
	return claims, nil
}

// User maps identity claims onto the public user snapshot. Unknown roles fall back to client.
func (c *IDClaims) User() domain.User {
	role, ok := domain.ParseRole(c.Role)
	if !ok {
		role = domain.RoleClient
	}
	return domain.User{
		ID:          c.Subject,
		Email:       c.Email,
		FirstName:   c.GivenName,
		LastName:    c.FamilyName,
		PhoneNumber: c.PhoneNumber,
		Role:        role,
	}
}
