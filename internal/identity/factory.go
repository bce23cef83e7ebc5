package identity

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/easybody/auth-gateway/internal/auth"
	"github.com/easybody/auth-gateway/internal/config"
	"github.com/easybody/auth-gateway/internal/events"
	"github.com/easybody/auth-gateway/internal/session"
)

// Factory is chosen once at startup and binds a provider to a browser context.
type Factory struct {
	name  string
	build func(*session.Manager) Provider
}

// FactoryDeps are the collaborators a provider may need.
type FactoryDeps struct {
	Credentials *CredentialStore
	Cognito     CognitoAPI
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewFactory selects the provider named by cfg.Auth.UseMock.
func NewFactory(cfg config.Config, deps FactoryDeps) (*Factory, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.Nop()
	}

	if cfg.Auth.UseMock {
		if deps.Credentials == nil {
			return nil, fmt.Errorf("mock identity provider needs a credential store")
		}
		opts := MockOptions{
			AutoConfirm:       cfg.Mock.AutoConfirm,
			ForcedFailureCode: cfg.Mock.ForcedFailureCode,
			ResetCodeTTL:      cfg.Auth.ResetCodeTTL,
		}
		issuer := auth.NewTokenIssuer(cfg.Mock.Issuer, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
		named := logger.With(zap.String("provider", "mock"))
		return &Factory{name: "mock", build: func(sess *session.Manager) Provider {
			return NewMockProvider(deps.Credentials, sess, issuer.WithClock(sess.Now), dispatcher, named, opts)
		}}, nil
	}

	if deps.Cognito == nil {
		return nil, fmt.Errorf("remote identity provider needs a cognito client")
	}
	remote := RemoteOptions{
		ClientID:     cfg.Cognito.ClientID,
		ClientSecret: cfg.Cognito.ClientSecret,
		RefreshTTL:   cfg.Auth.RefreshTokenTTL,
	}
	named := logger.With(zap.String("provider", "cognito"))
	return &Factory{name: "cognito", build: func(sess *session.Manager) Provider {
		return NewRemoteProvider(deps.Cognito, sess, dispatcher, named, remote)
	}}, nil
}

// Name is "mock" or "cognito".
func (f *Factory) Name() string { return f.name }

// Bind returns a provider operating on sess.
func (f *Factory) Bind(sess *session.Manager) Provider {
	return f.build(sess)
}

// SeedDefaults inserts the development identities when the mock provider is active.
func SeedDefaults(ctx context.Context, cfg config.Config, creds *CredentialStore, logger *zap.Logger) error {
	if !cfg.Auth.UseMock || !cfg.Mock.SeedDefaultUsers || creds == nil {
		return nil
	}
	added, err := creds.Seed(ctx, DefaultSeedUsers(cfg.Mock.DefaultPassword))
	if err != nil {
		return err
	}
	if added > 0 {
		logger.Info("seeded default mock identities", zap.Int("count", added))
	}
	return nil
}
