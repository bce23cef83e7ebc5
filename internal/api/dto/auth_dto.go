package dto

import (
	"time"

	"github.com/easybody/auth-gateway/internal/domain"
	"github.com/easybody/auth-gateway/internal/service"
)

// RegisterRequest payload for new identities. Format rules (email shape,
// password length, role) are enforced by the identity provider.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required"`
	Password    string `json:"password" validate:"required"`
	FirstName   string `json:"firstName" validate:"required,max=100"`
	LastName    string `json:"lastName" validate:"required,max=100"`
	PhoneNumber string `json:"phoneNumber" validate:"omitempty,max=32"`
	Role        string `json:"role" validate:"required"`
}

// Profile converts the request to sign-up attributes.
func (r RegisterRequest) Profile() domain.Profile {
	return domain.Profile{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		PhoneNumber: r.PhoneNumber,
		Role:        domain.Role(r.Role),
	}
}

// LoginRequest payload for sign-in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ConfirmRequest redeems a confirmation code. Email falls back to the
// device's confirmation ticket.
type ConfirmRequest struct {
	Email string `json:"email"`
	Code  string `json:"code" validate:"required"`
}

// ResendRequest asks for a new confirmation code.
type ResendRequest struct {
	Email string `json:"email"`
}

// ForgotPasswordRequest starts a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

// ResetPasswordRequest finishes a password reset.
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required"`
	Code        string `json:"code" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// UserResponse is the public user shape.
type UserResponse struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	PhoneNumber string      `json:"phoneNumber,omitempty"`
	Role        domain.Role `json:"role"`
}

// NewUserResponse maps a user, nil stays nil.
func NewUserResponse(u *domain.User) *UserResponse {
	if u == nil {
		return nil
	}
	return &UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.PhoneNumber,
		Role:        u.Role,
	}
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	User              *UserResponse `json:"user"`
	Authenticated     bool          `json:"authenticated"`
	NeedsConfirmation bool          `json:"needsConfirmation,omitempty"`
	Email             string        `json:"email,omitempty"`
	RedirectTo        string        `json:"redirectTo,omitempty"`
	Message           string        `json:"message,omitempty"`
}

// NewAuthResponse maps a flow result. The token itself only travels in the cookie.
func NewAuthResponse(res *service.AuthResult) AuthResponse {
	return AuthResponse{
		User:              NewUserResponse(res.User),
		Authenticated:     res.User != nil,
		NeedsConfirmation: res.NeedsConfirmation,
		Email:             res.Email,
		RedirectTo:        res.RedirectTo,
		Message:           res.Message,
	}
}

// AccessResponse answers the deferred role check.
type AccessResponse struct {
	Path       string        `json:"path"`
	Allowed    bool          `json:"allowed"`
	Roles      []domain.Role `json:"roles,omitempty"`
	RedirectTo string        `json:"redirectTo,omitempty"`
}

// SessionResponse describes the device's session.
type SessionResponse struct {
	User          *UserResponse `json:"user"`
	Authenticated bool          `json:"authenticated"`
	ExpiresAt     *time.Time    `json:"expiresAt,omitempty"`
}
