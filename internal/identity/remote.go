package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/easybody/auth-gateway/internal/auth"
	"github.com/easybody/auth-gateway/internal/domain"
	"github.com/easybody/auth-gateway/internal/events"
	"github.com/easybody/auth-gateway/internal/session"
	apperrors "github.com/easybody/auth-gateway/pkg/util/errorutil"
)

// CognitoAPI is the subset of the user pool client the remote provider calls.
type CognitoAPI interface {
	SignUp(ctx context.Context, in *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, in *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GlobalSignOut(ctx context.Context, in *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
	ForgotPassword(ctx context.Context, in *cip.ForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error)
	ConfirmForgotPassword(ctx context.Context, in *cip.ConfirmForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ConfirmForgotPasswordOutput, error)
	ResendConfirmationCode(ctx context.Context, in *cip.ResendConfirmationCodeInput, optFns ...func(*cip.Options)) (*cip.ResendConfirmationCodeOutput, error)
}

// RemoteOptions identifies the app client.
type RemoteOptions struct {
	ClientID     string
	ClientSecret string
	// RefreshTTL is the refresh token validity configured on the app client.
	RefreshTTL time.Duration
}

// RemoteProvider delegates identity operations to the managed user pool and
// keeps the resulting session in the browser context's session slot.
type RemoteProvider struct {
	api        CognitoAPI
	session    *session.Manager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	opts       RemoteOptions
}

// NewRemoteProvider binds the remote provider to one browser context.
func NewRemoteProvider(api CognitoAPI, sess *session.Manager, dispatcher events.Dispatcher, logger *zap.Logger, opts RemoteOptions) *RemoteProvider {
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	return &RemoteProvider{api: api, session: sess, dispatcher: dispatcher, logger: logger, opts: opts}
}

// secretHash is required by app clients created with a secret.
func (p *RemoteProvider) secretHash(username string) *string {
	if p.opts.ClientSecret == "" {
		return nil
	}
	mac := hmac.New(sha256.New, []byte(p.opts.ClientSecret))
	mac.Write([]byte(username + p.opts.ClientID))
	return aws.String(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

func (p *RemoteProvider) SignUp(ctx context.Context, email, password string, profile domain.Profile) (*SignUpResult, error) {
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

	attrs := []types.AttributeType{
		{Name: aws.String("email"), Value: aws.String(email)},
		{Name: aws.String("given_name"), Value: aws.String(profile.FirstName)},
		{Name: aws.String("family_name"), Value: aws.String(profile.LastName)},
		{Name: aws.String("custom:role"), Value: aws.String(string(profile.Role))},
	}
	if profile.PhoneNumber != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String("phone_number"), Value: aws.String(profile.PhoneNumber)})
	}

	out, err := p.api.SignUp(ctx, &cip.SignUpInput{
		ClientId:       aws.String(p.opts.ClientID),
		Username:       aws.String(email),
		Password:       aws.String(password),
		SecretHash:     p.secretHash(email),
		UserAttributes: attrs,
	})
	if err != nil {
		return nil, translateCognitoError(err, email)
	}

	result := &SignUpResult{
		UserID:               aws.ToString(out.UserSub),
		ConfirmationRequired: !out.UserConfirmed,
		Destination:          deliveryDestination(out.CodeDeliveryDetails, email),
	}
	p.logger.Info("identity registered", zap.String("email", email), zap.Bool("confirmation_required", result.ConfirmationRequired))
	return result, nil
}

func (p *RemoteProvider) ConfirmSignUp(ctx context.Context, email, code string) error {
	if err := ValidateCode(code); err != nil {
		return err
	}
	email, err := ValidateEmail(email)
	if err != nil {
		return err
	}

	_, err = p.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.opts.ClientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
		SecretHash:       p.secretHash(email),
	})
	if err != nil {
		if isCognito[*types.UserNotFoundException](err) {
			return apperrors.WithCause(apperrors.ChallengeNotFound(), err)
		}
		if isCognito[*types.CodeMismatchException](err) || isCognito[*types.ExpiredCodeException](err) {
			return apperrors.WithCause(apperrors.InvalidCode(), err)
		}
		return translateCognitoError(err, email)
	}
	return nil
}

func (p *RemoteProvider) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}

	params := map[string]string{"USERNAME": email, "PASSWORD": password}
	if h := p.secretHash(email); h != nil {
		params["SECRET_HASH"] = *h
	}
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(p.opts.ClientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, translateCognitoError(err, email)
	}
	if out.ChallengeName != "" {
		return nil, apperrors.SignInIncomplete(string(out.ChallengeName))
	}

	s, err := p.sessionFrom(out.AuthenticationResult, "")
	if err != nil {
		return nil, err
	}
	if err := p.session.Save(ctx, *s); err != nil {
		return nil, err
	}
	p.logger.Info("signed in", zap.String("email", email))
	return &SignInResult{User: s.User, Session: *s}, nil
}

func (p *RemoteProvider) SignOut(ctx context.Context) error {
	if token, err := p.session.AccessToken(ctx); err == nil && token != "" {
		if _, err := p.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(token)}); err != nil {
			p.logger.Warn("global sign out failed", zap.Error(err))
		}
	}
	return p.session.Clear(ctx)
}

func (p *RemoteProvider) CurrentUser(ctx context.Context) (*domain.User, error) {
	return p.session.CurrentUser(ctx)
}

func (p *RemoteProvider) AccessToken(ctx context.Context) (string, error) {
	return p.session.AccessToken(ctx)
}

func (p *RemoteProvider) ForgotPassword(ctx context.Context, email string) (*CodeDelivery, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	out, err := p.api.ForgotPassword(ctx, &cip.ForgotPasswordInput{
		ClientId:   aws.String(p.opts.ClientID),
		Username:   aws.String(email),
		SecretHash: p.secretHash(email),
	})
	if err != nil {
		return nil, translateCognitoError(err, email)
	}
	return &CodeDelivery{Destination: deliveryDestination(out.CodeDeliveryDetails, email)}, nil
}

func (p *RemoteProvider) ResetPassword(ctx context.Context, email, code, newPassword string) error {
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

	_, err = p.api.ConfirmForgotPassword(ctx, &cip.ConfirmForgotPasswordInput{
		ClientId:         aws.String(p.opts.ClientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
		Password:         aws.String(newPassword),
		SecretHash:       p.secretHash(email),
	})
	if err != nil {
		return translateCognitoError(err, email)
	}
	p.logger.Info("password reset", zap.String("email", email))
	return nil
}

func (p *RemoteProvider) ResendConfirmationCode(ctx context.Context, email string) (*CodeDelivery, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	out, err := p.api.ResendConfirmationCode(ctx, &cip.ResendConfirmationCodeInput{
		ClientId:   aws.String(p.opts.ClientID),
		Username:   aws.String(email),
		SecretHash: p.secretHash(email),
	})
	if err != nil {
		return nil, translateCognitoError(err, email)
	}
	return &CodeDelivery{Destination: deliveryDestination(out.CodeDeliveryDetails, email)}, nil
}

func (p *RemoteProvider) RefreshSession(ctx context.Context) (*domain.Session, error) {
	current, err := p.session.Stored(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil || !current.Refreshable(p.session.Now()) {
		if err := p.session.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, apperrors.SessionExpired()
	}

	params := map[string]string{"REFRESH_TOKEN": current.RefreshToken}
	if h := p.secretHash(current.User.ID); h != nil {
		params["SECRET_HASH"] = *h
	}
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeRefreshTokenAuth,
		ClientId:       aws.String(p.opts.ClientID),
		AuthParameters: params,
	})
	if err != nil {
		if isCognito[*types.NotAuthorizedException](err) {
			if clearErr := p.session.Clear(ctx); clearErr != nil {
				return nil, clearErr
			}
			return nil, apperrors.WithCause(apperrors.SessionExpired(), err)
		}
		return nil, translateCognitoError(err, current.User.Email)
	}

	s, err := p.sessionFrom(out.AuthenticationResult, current.RefreshToken)
	if err != nil {
		return nil, err
	}
	// refresh keeps the original refresh token window
	s.RefreshExpiresAt = current.RefreshExpiresAt
	if err := p.session.Save(ctx, *s); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *RemoteProvider) sessionFrom(result *types.AuthenticationResultType, fallbackRefresh string) (*domain.Session, error) {
	if result == nil || result.IdToken == nil || result.AccessToken == nil {
		return nil, apperrors.NewInternalError(errors.New("authentication result without tokens"))
	}
	claims, err := auth.ParseIDToken(aws.ToString(result.IdToken))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	now := p.session.Now()
	expiresIn := time.Duration(result.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	refresh := aws.ToString(result.RefreshToken)
	if refresh == "" {
		refresh = fallbackRefresh
	}
	return &domain.Session{
		Tokens: domain.Tokens{
			AccessToken:  aws.ToString(result.AccessToken),
			IDToken:      aws.ToString(result.IdToken),
			RefreshToken: refresh,
		},
		ExpiresAt:        now.Add(expiresIn),
		RefreshExpiresAt: now.Add(p.opts.RefreshTTL),
		User:             claims.User(),
	}, nil
}

func deliveryDestination(details *types.CodeDeliveryDetailsType, fallback string) string {
	if details != nil && details.Destination != nil {
		return *details.Destination
	}
	return fallback
}

func isCognito[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// translateCognitoError maps user pool exceptions onto the shared taxonomy.
func translateCognitoError(err error, email string) error {
	switch {
	case errors.Is(err, context.Canceled):
		return apperrors.NewCancelled(err)
	case isCognito[*types.UsernameExistsException](err):
		return apperrors.WithCause(apperrors.DuplicateIdentity(email), err)
	case isCognito[*types.UserNotFoundException](err):
		return apperrors.WithCause(apperrors.IdentityNotFound(), err)
	case isCognito[*types.NotAuthorizedException](err):
		return apperrors.WithCause(apperrors.InvalidCredential(), err)
	case isCognito[*types.UserNotConfirmedException](err):
		return apperrors.WithCause(apperrors.UnconfirmedIdentity(email), err)
	case isCognito[*types.CodeMismatchException](err):
		return apperrors.WithCause(apperrors.ChallengeInvalid(), err)
	case isCognito[*types.ExpiredCodeException](err):
		return apperrors.WithCause(apperrors.ChallengeExpired(), err)
	case isCognito[*types.InvalidPasswordException](err):
		return apperrors.WithCause(apperrors.WeakCredential(), err)
	case isCognito[*types.LimitExceededException](err), isCognito[*types.TooManyRequestsException](err):
		return apperrors.WithCause(apperrors.RateLimited(), err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultClient {
		return apperrors.WithCause(apperrors.NewValidationError(apiErr.ErrorMessage(), nil), err)
	}
	return apperrors.NewNetworkError(err)
}
