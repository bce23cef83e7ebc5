package identity

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/easybody/auth-gateway/internal/auth"
	"github.com/easybody/auth-gateway/internal/domain"
	"github.com/easybody/auth-gateway/internal/events"
	"github.com/easybody/auth-gateway/internal/session"
	apperrors "github.com/easybody/auth-gateway/pkg/util/errorutil"
)

// MockOptions tunes the local provider.
type MockOptions struct {
	// AutoConfirm marks new identities confirmed at sign-up.
	AutoConfirm bool
	// ForcedFailureCode is always rejected by ConfirmSignUp, to exercise the error path.
	ForcedFailureCode string
	ResetCodeTTL      time.Duration
}

// MockProvider is the development identity provider. Identities live in the
// credential store and tokens are unsigned look-alikes.
type MockProvider struct {
	creds      *CredentialStore
	session    *session.Manager
	tokens     *auth.TokenIssuer
	dispatcher events.Dispatcher
	logger     *zap.Logger
	opts       MockOptions
}

// NewMockProvider binds the mock provider to one browser context.
func NewMockProvider(creds *CredentialStore, sess *session.Manager, tokens *auth.TokenIssuer, dispatcher events.Dispatcher, logger *zap.Logger, opts MockOptions) *MockProvider {
	if opts.ResetCodeTTL <= 0 {
		opts.ResetCodeTTL = 10 * time.Minute
	}
	return &MockProvider{
		creds:      creds,
		session:    sess,
		tokens:     tokens,
		dispatcher: dispatcher,
		logger:     logger,
		opts:       opts,
	}
}

func (p *MockProvider) SignUp(ctx context.Context, email, password string, profile domain.Profile) (*SignUpResult, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := validateProfile(profile); err != nil {
		return nil, err
	}

	rec, err := p.creds.Create(ctx, email, password, profile, p.opts.AutoConfirm)
	if err != nil {
		return nil, err
	}
	p.logger.Info("identity registered", zap.String("email", email), zap.Bool("confirmed", rec.Confirmed))

	result := &SignUpResult{UserID: rec.ID, ConfirmationRequired: !rec.Confirmed, Destination: email}
	if !rec.Confirmed {
		if _, err := p.issueCode(ctx, events.EventConfirmationCodeIssued, email, time.Time{}); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (p *MockProvider) ConfirmSignUp(ctx context.Context, email, code string) error {
	if err := ValidateCode(code); err != nil {
		return err
	}
	email, err := ValidateEmail(email)
	if err != nil {
		return err
	}
	if p.opts.ForcedFailureCode != "" && code == p.opts.ForcedFailureCode {
		return apperrors.InvalidCode()
	}

	_, err = p.creds.Update(ctx, email, apperrors.ChallengeNotFound(), func(rec *domain.IdentityRecord) error {
		rec.Confirmed = true
		return nil
	})
	if err != nil {
		return err
	}
	p.logger.Info("identity confirmed", zap.String("email", email))
	return nil
}

func (p *MockProvider) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}

	rec, err := p.creds.Find(ctx, email)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.IdentityNotFound()
	}
	if err := auth.ComparePassword(rec.PasswordHash, password); err != nil {
		return nil, apperrors.InvalidCredential()
	}
	if !rec.Confirmed {
		return nil, apperrors.UnconfirmedIdentity(email)
	}

	s, err := p.tokens.Issue(rec.User())
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := p.session.Save(ctx, s); err != nil {
		return nil, err
	}
	p.logger.Info("signed in", zap.String("email", email))
	return &SignInResult{User: s.User, Session: s}, nil
}

func (p *MockProvider) SignOut(ctx context.Context) error {
	return p.session.Clear(ctx)
}

func (p *MockProvider) CurrentUser(ctx context.Context) (*domain.User, error) {
	return p.session.CurrentUser(ctx)
}

func (p *MockProvider) AccessToken(ctx context.Context) (string, error) {
	return p.session.AccessToken(ctx)
}

func (p *MockProvider) ForgotPassword(ctx context.Context, email string) (*CodeDelivery, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	rec, err := p.creds.Find(ctx, email)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.IdentityNotFound()
	}

	expiresAt := p.session.Now().Add(p.opts.ResetCodeTTL)
	code, err := GenerateCode()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := p.creds.AddChallenge(ctx, domain.ResetChallenge{Email: email, Code: code, ExpiresAt: expiresAt}); err != nil {
		return nil, err
	}
	p.publishCode(ctx, events.EventResetCodeIssued, email, code, expiresAt)
	return &CodeDelivery{Destination: email, ExpiresAt: expiresAt}, nil
}

func (p *MockProvider) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email, err := ValidateEmail(email)
	if err != nil {
		return err
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	if err := ValidateCode(code); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword, p.creds.BcryptCost())
	if err != nil {
		return apperrors.WithCause(apperrors.WeakCredential(), err)
	}
	if err := p.creds.RedeemChallenge(ctx, email, code, hash); err != nil {
		return err
	}
	p.logger.Info("password reset", zap.String("email", email))
	return nil
}

func (p *MockProvider) ResendConfirmationCode(ctx context.Context, email string) (*CodeDelivery, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	rec, err := p.creds.Find(ctx, email)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.IdentityNotFound()
	}
	return p.issueCode(ctx, events.EventConfirmationCodeIssued, email, time.Time{})
}

func (p *MockProvider) RefreshSession(ctx context.Context) (*domain.Session, error) {
	current, err := p.session.Stored(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperrors.SessionExpired()
	}
	if !current.Refreshable(p.session.Now()) {
		if err := p.session.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, apperrors.SessionExpired()
	}

	rec, err := p.creds.Find(ctx, current.User.Email)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		if err := p.session.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, apperrors.IdentityNotFound()
	}

	s, err := p.tokens.Issue(rec.User())
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := p.session.Save(ctx, s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *MockProvider) issueCode(ctx context.Context, eventType events.EventType, email string, expiresAt time.Time) (*CodeDelivery, error) {
	code, err := GenerateCode()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	p.publishCode(ctx, eventType, email, code, expiresAt)
	return &CodeDelivery{Destination: email, ExpiresAt: expiresAt}, nil
}

func (p *MockProvider) publishCode(ctx context.Context, eventType events.EventType, email, code string, expiresAt time.Time) {
	event := events.New(eventType, email, events.CodeIssuedPayload{Code: code, ExpiresAt: expiresAt})
	if err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Warn("code delivery failed", zap.String("email", email), zap.String("event", string(eventType)), zap.Error(err))
	}
}
