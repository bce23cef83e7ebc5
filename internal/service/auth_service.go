package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/easybody/auth-gateway/internal/auth"
	"github.com/easybody/auth-gateway/internal/backend"
	"github.com/easybody/auth-gateway/internal/config"
	"github.com/easybody/auth-gateway/internal/domain"
	"github.com/easybody/auth-gateway/internal/events"
	"github.com/easybody/auth-gateway/internal/identity"
	"github.com/easybody/auth-gateway/internal/observability"
	"github.com/easybody/auth-gateway/internal/session"
	"github.com/easybody/auth-gateway/internal/storage"
	apperrors "github.com/easybody/auth-gateway/pkg/util/errorutil"
)

const defaultLoginPath = "/auth/login"

// ProviderFactory binds the process-wide provider choice to one browser context.
type ProviderFactory interface {
	Name() string
	Bind(sess *session.Manager) identity.Provider
}

// BackendAPI is the part of the backend client the flows call.
type BackendAPI interface {
	RegisterProfile(ctx context.Context, token string, req backend.RegisterProfileRequest) error
	Me(ctx context.Context, token string) (*domain.User, error)
}

// AuthResult is what a flow hands back to the caller. A cancelled flow
// returns Cancelled=true and no error.
type AuthResult struct {
	User              *domain.User
	Token             string
	NeedsConfirmation bool
	Email             string
	RedirectTo        string
	Message           string
	Cancelled         bool
}

// RegisterInput is a sign-up request.
type RegisterInput struct {
	Email    string
	Password string
	Profile  domain.Profile
}

// AccessDecision answers whether the current user may open a path.
type AccessDecision struct {
	Path       string
	Allowed    bool
	Roles      []domain.Role
	RedirectTo string
}

// AuthService coordinates the auth flows of every browser context.
type AuthService struct {
	store      storage.Storage
	providers  ProviderFactory
	backend    BackendAPI
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	loginPath  string
	pendingTTL time.Duration
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	Store      storage.Storage
	Providers  ProviderFactory
	Backend    BackendAPI
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewAuthService builds the service. Backend may be nil, in which case
// profile sync and Initialize fall back to local state.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = events.Nop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	loginPath := cfg.Auth.LoginPath
	if loginPath == "" {
		loginPath = defaultLoginPath
	}
	return &AuthService{
		store:      deps.Store,
		providers:  deps.Providers,
		backend:    deps.Backend,
		dispatcher: dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		loginPath:  loginPath,
		pendingTTL: cfg.Auth.PendingTTL,
		now:        now,
	}
}

// ProviderName names the active identity provider.
func (s *AuthService) ProviderName() string {
	return s.providers.Name()
}

// ForDevice returns the flows of one browser context.
func (s *AuthService) ForDevice(deviceID string) *DeviceAuth {
	sess := session.NewManager(
		storage.Device(s.store, deviceID),
		session.WithClock(s.now),
		session.WithPendingTTL(s.pendingTTL),
	)
	return &DeviceAuth{
		svc:      s,
		device:   deviceID,
		session:  sess,
		provider: s.providers.Bind(sess),
		logger:   s.logger.With(zap.String("device", deviceID)),
	}
}

// DeviceAuth runs the auth flows for one browser context. Flows on the same
// device are not ordered against each other.
type DeviceAuth struct {
	svc      *AuthService
	device   string
	session  *session.Manager
	provider identity.Provider
	logger   *zap.Logger
}

// Session exposes the context's session manager.
func (d *DeviceAuth) Session() *session.Manager {
	return d.session
}

// Register signs the identity up. When no confirmation is needed the new
// identity is signed in straight away and mirrored into the backend.
func (d *DeviceAuth) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	res, err := d.register(ctx, in)
	return d.finish("register", res, err)
}

func (d *DeviceAuth) register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := identity.NormalizeEmail(in.Email)
	signUp, err := d.provider.SignUp(ctx, email, in.Password, in.Profile)
	if err != nil {
		return nil, err
	}
	d.publish(ctx, events.EventIdentityRegistered, email, events.IdentityPayload{
		UserID: signUp.UserID, Role: in.Profile.Role, Provider: d.svc.ProviderName(),
	})

	if signUp.ConfirmationRequired {
		if err := d.session.SavePending(ctx, email, in.Password); err != nil {
			return nil, err
		}
		return &AuthResult{
			NeedsConfirmation: true,
			Email:             email,
			RedirectTo:        "/auth/confirm",
			Message:           "Check your email for a confirmation code",
		}, nil
	}

	result, err := d.signIn(ctx, email, in.Password)
	if err != nil {
		return nil, err
	}
	d.syncProfile(ctx, result.Token, *result.User, in.Profile)
	return result, nil
}

// Login signs in. An unconfirmed identity gets a confirmation ticket instead
// of an error.
func (d *DeviceAuth) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	res, err := d.login(ctx, email, password)
	return d.finish("login", res, err)
}

func (d *DeviceAuth) login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = identity.NormalizeEmail(email)
	result, err := d.signIn(ctx, email, password)
	if apperrors.IsReason(err, apperrors.ReasonUnconfirmedIdentity) {
		if err := d.session.SavePending(ctx, email, password); err != nil {
			return nil, err
		}
		return &AuthResult{
			NeedsConfirmation: true,
			Email:             email,
			RedirectTo:        "/auth/confirm",
			Message:           "Please confirm your email before signing in",
		}, nil
	}
	return result, err
}

// Confirm redeems a confirmation code. With a remembered password the
// identity is signed in afterwards; otherwise the caller is sent to login.
func (d *DeviceAuth) Confirm(ctx context.Context, email, code string) (*AuthResult, error) {
	res, err := d.confirm(ctx, email, code)
	return d.finish("confirm", res, err)
}

func (d *DeviceAuth) confirm(ctx context.Context, email, code string) (*AuthResult, error) {
	pending, err := d.session.Pending(ctx)
	if err != nil {
		return nil, err
	}
	email = identity.NormalizeEmail(email)
	if email == "" && pending != nil {
		email = pending.Email
	}
	if email == "" {
		return nil, apperrors.InvalidEmail()
	}

	if err := d.provider.ConfirmSignUp(ctx, email, code); err != nil {
		return nil, err
	}
	d.publish(ctx, events.EventIdentityConfirmed, email, events.IdentityPayload{Provider: d.svc.ProviderName()})

	password := ""
	if pending != nil && pending.Email == email {
		password = pending.Password
	}
	if err := d.session.ClearPending(ctx); err != nil {
		return nil, err
	}
	confirmed := &AuthResult{
		Email:      email,
		RedirectTo: d.svc.loginPath,
		Message:    "Email confirmed, please sign in",
	}
	if password == "" {
		return confirmed, nil
	}

	result, err := d.signIn(ctx, email, password)
	if err != nil {
		if apperrors.IsCancelled(err) {
			return nil, err
		}
		d.logger.Warn("sign in after confirmation failed", zap.String("email", email), zap.Error(err))
		return confirmed, nil
	}
	d.syncProfile(ctx, result.Token, *result.User, domain.Profile{})
	return result, nil
}

// ResendCode issues a new confirmation code. The email defaults to the ticket's.
func (d *DeviceAuth) ResendCode(ctx context.Context, email string) (*AuthResult, error) {
	res, err := d.resend(ctx, email)
	return d.finish("resend", res, err)
}

func (d *DeviceAuth) resend(ctx context.Context, email string) (*AuthResult, error) {
	email = identity.NormalizeEmail(email)
	if email == "" {
		pending, err := d.session.Pending(ctx)
		if err != nil {
			return nil, err
		}
		if pending != nil {
			email = pending.Email
		}
	}
	delivery, err := d.provider.ResendConfirmationCode(ctx, email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		NeedsConfirmation: true,
		Email:             delivery.Destination,
		Message:           "A new confirmation code has been sent",
	}, nil
}

// AbandonConfirmation drops the confirmation ticket.
func (d *DeviceAuth) AbandonConfirmation(ctx context.Context) error {
	return d.session.ClearPending(ctx)
}

// Logout ends the session. Provider failures are logged; local state is
// always cleared.
func (d *DeviceAuth) Logout(ctx context.Context) error {
	user, err := d.session.CurrentUser(ctx)
	if err != nil {
		d.logger.Warn("read current user failed", zap.Error(err))
	}

	if err := d.provider.SignOut(ctx); err != nil {
		d.logger.Warn("provider sign out failed", zap.Error(err))
	}
	if err := d.session.Reset(ctx); err != nil {
		d.svc.metrics.RecordFlow("logout", "error")
		return err
	}
	if user != nil {
		d.publish(ctx, events.EventSignedOut, user.Email, events.IdentityPayload{
			UserID: user.ID, Role: user.Role, Provider: d.svc.ProviderName(),
		})
	}
	d.svc.metrics.RecordFlow("logout", "ok")
	return nil
}

// Refresh exchanges the refresh token and persists the new token.
func (d *DeviceAuth) Refresh(ctx context.Context) (*AuthResult, error) {
	res, err := d.refresh(ctx)
	return d.finish("refresh", res, err)
}

func (d *DeviceAuth) refresh(ctx context.Context) (*AuthResult, error) {
	s, err := d.provider.RefreshSession(ctx)
	if err != nil {
		if apperrors.IsReason(err, apperrors.ReasonSessionExpired) {
			if clearErr := d.session.ClearToken(ctx); clearErr != nil {
				return nil, clearErr
			}
		}
		return nil, err
	}
	if err := d.session.SaveToken(ctx, s.IDToken); err != nil {
		return nil, err
	}
	user := s.User
	return &AuthResult{User: &user, Token: s.IDToken}, nil
}

// ForgotPassword sends a reset code.
func (d *DeviceAuth) ForgotPassword(ctx context.Context, email string) (*AuthResult, error) {
	res, err := d.forgotPassword(ctx, email)
	return d.finish("forgot_password", res, err)
}

// forgotPassword answers the same way whether or not the account exists.
func (d *DeviceAuth) forgotPassword(ctx context.Context, email string) (*AuthResult, error) {
	email = identity.NormalizeEmail(email)
	if _, err := d.provider.ForgotPassword(ctx, email); err != nil {
		if !apperrors.IsReason(err, apperrors.ReasonIdentityNotFound) {
			return nil, err
		}
		d.logger.Debug("password reset requested for unknown identity")
	}
	return &AuthResult{
		Email:      email,
		RedirectTo: "/auth/reset-password",
		Message:    "If an account exists for this email, a reset code has been sent",
	}, nil
}

// ResetPassword redeems a reset code.
func (d *DeviceAuth) ResetPassword(ctx context.Context, email, code, newPassword string) (*AuthResult, error) {
	res, err := d.resetPassword(ctx, email, code, newPassword)
	return d.finish("reset_password", res, err)
}

func (d *DeviceAuth) resetPassword(ctx context.Context, email, code, newPassword string) (*AuthResult, error) {
	email = identity.NormalizeEmail(email)
	if err := d.provider.ResetPassword(ctx, email, code, newPassword); err != nil {
		return nil, err
	}
	d.publish(ctx, events.EventPasswordReset, email, events.IdentityPayload{Provider: d.svc.ProviderName()})
	return &AuthResult{
		Email:      email,
		RedirectTo: d.svc.loginPath,
		Message:    "Password updated, please sign in",
	}, nil
}

// CurrentUser returns the signed-in user, nil when anonymous, or a
// SessionExpired error when the session lapsed. Expiry clears the token too.
func (d *DeviceAuth) CurrentUser(ctx context.Context) (*domain.User, error) {
	stored, err := d.session.Stored(ctx)
	if err != nil {
		return nil, err
	}
	if stored != nil && !stored.Valid(d.session.Now()) {
		if err := d.session.Clear(ctx); err != nil {
			return nil, err
		}
		if err := d.session.ClearToken(ctx); err != nil {
			return nil, err
		}
		return nil, apperrors.SessionExpired()
	}
	return d.provider.CurrentUser(ctx)
}

// AccessToken returns the live session's access token, or "".
func (d *DeviceAuth) AccessToken(ctx context.Context) (string, error) {
	return d.provider.AccessToken(ctx)
}

// Token returns the persisted bearer token sent to the backend.
func (d *DeviceAuth) Token(ctx context.Context) (string, error) {
	return d.session.Token(ctx)
}

// ForgetToken drops the persisted token and the session after the backend
// rejected it.
func (d *DeviceAuth) ForgetToken(ctx context.Context) error {
	if err := d.session.ClearToken(ctx); err != nil {
		return err
	}
	return d.session.Clear(ctx)
}

// Initialize validates the persisted token against the backend profile
// endpoint. A rejected token or an unusable answer clears local state.
func (d *DeviceAuth) Initialize(ctx context.Context) (*AuthResult, error) {
	res, err := d.initialize(ctx)
	return d.finish("initialize", res, err)
}

func (d *DeviceAuth) initialize(ctx context.Context) (*AuthResult, error) {
	token, err := d.session.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return &AuthResult{}, nil
	}
	if d.svc.backend == nil {
		user, err := d.CurrentUser(ctx)
		if err != nil {
			return nil, err
		}
		return &AuthResult{User: user, Token: token}, nil
	}

	user, err := d.svc.backend.Me(ctx, token)
	if err != nil {
		if apperrors.IsCancelled(err) {
			return nil, err
		}
		if apperrors.IsCode(err, apperrors.CodeUnauthorized) || backend.IsServerError(err) || errors.Is(err, backend.ErrMalformedPayload) {
			d.logger.Info("persisted token rejected", zap.Error(err))
			if clearErr := d.ForgetToken(ctx); clearErr != nil {
				return nil, clearErr
			}
			return nil, apperrors.WithCause(apperrors.SessionExpired(), err)
		}
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// CanAccess applies the role table to path for the current user.
func (d *DeviceAuth) CanAccess(ctx context.Context, path string) (*AccessDecision, error) {
	roles, gated := auth.RequiredRoles(path)
	decision := &AccessDecision{Path: path, Allowed: true, Roles: roles}
	if !gated {
		return decision, nil
	}

	user, err := d.CurrentUser(ctx)
	if err != nil && !apperrors.IsReason(err, apperrors.ReasonSessionExpired) {
		return nil, err
	}
	switch {
	case user == nil:
		decision.Allowed = false
		decision.RedirectTo = d.svc.loginPath
	case !auth.RoleAllowed(user.Role, path):
		decision.Allowed = false
		decision.RedirectTo = user.Role.HomePath()
	}
	return decision, nil
}

// signIn runs the provider sign-in and persists the ID token.
func (d *DeviceAuth) signIn(ctx context.Context, email, password string) (*AuthResult, error) {
	res, err := d.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	token := res.Session.IDToken
	if err := d.session.SaveToken(ctx, token); err != nil {
		return nil, err
	}
	d.publish(ctx, events.EventSignedIn, res.User.Email, events.IdentityPayload{
		UserID: res.User.ID, Role: res.User.Role, Provider: d.svc.ProviderName(),
	})
	user := res.User
	return &AuthResult{User: &user, Token: token, Email: user.Email, RedirectTo: user.Role.HomePath()}, nil
}

// syncProfile mirrors a new identity into the backend. Failures are logged only.
func (d *DeviceAuth) syncProfile(ctx context.Context, token string, user domain.User, profile domain.Profile) {
	if d.svc.backend == nil {
		return
	}
	req := backend.RegisterProfileRequest{
		FirstName:   firstNonEmpty(profile.FirstName, user.FirstName),
		LastName:    firstNonEmpty(profile.LastName, user.LastName),
		Email:       user.Email,
		PhoneNumber: firstNonEmpty(profile.PhoneNumber, user.PhoneNumber),
		Role:        user.Role,
	}
	if err := d.svc.backend.RegisterProfile(ctx, token, req); err != nil {
		d.logger.Warn("backend profile sync failed", zap.String("email", user.Email), zap.Error(err))
	}
}

func (d *DeviceAuth) publish(ctx context.Context, t events.EventType, email string, payload events.IdentityPayload) {
	if err := d.svc.dispatcher.Publish(ctx, events.New(t, email, payload)); err != nil {
		d.logger.Warn("event handlers failed", zap.String("event", string(t)), zap.Error(err))
	}
}

// finish records the outcome and swallows cancellation.
func (d *DeviceAuth) finish(flow string, res *AuthResult, err error) (*AuthResult, error) {
	switch {
	case err == nil:
		outcome := "ok"
		if res != nil && res.NeedsConfirmation {
			outcome = "needs_confirmation"
		}
		d.svc.metrics.RecordFlow(flow, outcome)
		return res, nil
	case apperrors.IsCancelled(err):
		d.svc.metrics.RecordFlow(flow, "cancelled")
		return &AuthResult{Cancelled: true}, nil
	default:
		d.svc.metrics.RecordFlow(flow, strings.ToLower(apperrors.ToDomainError(err).Code))
		return nil, err
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
