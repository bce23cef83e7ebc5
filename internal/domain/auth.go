package domain

import "time"

// Tokens is the bearer token triple handed out on sign-in.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

// Session is the single authenticated session of one browser context.
type Session struct {
	Tokens
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	User             User      `json:"user"`
}

// Valid reports whether the session is still usable at now.
func (s Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// Refreshable reports whether the refresh token may still be exchanged.
func (s Session) Refreshable(now time.Time) bool {
	return s.RefreshToken != "" && now.Before(s.RefreshExpiresAt)
}

// ResetChallenge is a single-use password reset code.
type ResetChallenge struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the challenge may no longer be redeemed.
func (c ResetChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// PendingConfirmation remembers a sign-up that still needs its confirmation code.
type PendingConfirmation struct {
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Active reports whether the ticket is still usable at now.
func (p PendingConfirmation) Active(now time.Time) bool {
	return now.Before(p.ExpiresAt)
}
