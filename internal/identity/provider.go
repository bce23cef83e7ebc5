// Package identity implements the two interchangeable identity providers: a
// local mock backed by the credential store, and the managed user pool.
package identity

import (
	"context"
	"time"

	"github.com/easybody/auth-gateway/internal/domain"
	apperrors "github.com/easybody/auth-gateway/pkg/util/errorutil"
)

// SignUpResult reports the outcome of a registration.
type SignUpResult struct {
	UserID               string
	ConfirmationRequired bool
	Destination          string
}

// SignInResult carries the new session.
type SignInResult struct {
	User    domain.User
	Session domain.Session
}

// CodeDelivery says where a one-time code was sent.
type CodeDelivery struct {
	Destination string
	ExpiresAt   time.Time
}

// Provider is the identity contract shared by both variants. Expected failures
// come back as *errorutil.DomainError values carrying a Reason.
type Provider interface {
	SignUp(ctx context.Context, email, password string, profile domain.Profile) (*SignUpResult, error)
	ConfirmSignUp(ctx context.Context, email, code string) error
	SignIn(ctx context.Context, email, password string) (*SignInResult, error)
	SignOut(ctx context.Context) error
	CurrentUser(ctx context.Context) (*domain.User, error)
	AccessToken(ctx context.Context) (string, error)
	ForgotPassword(ctx context.Context, email string) (*CodeDelivery, error)
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	ResendConfirmationCode(ctx context.Context, email string) (*CodeDelivery, error)
	RefreshSession(ctx context.Context) (*domain.Session, error)
}

// validateProfile rejects unknown roles. Names are free text.
func validateProfile(p domain.Profile) error {
	if !p.Role.Valid() {
		return apperrors.InvalidRole(string(p.Role))
	}
	return nil
}
