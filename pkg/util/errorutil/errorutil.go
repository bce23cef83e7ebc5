package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes. Each code is one kind of failure and maps to a single HTTP status.
const (
	CodeValidation   = "VALIDATION_FAILED"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnconfirmed  = "UNCONFIRMED"
	CodeExpired      = "EXPIRED"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeRateLimited  = "RATE_LIMITED"
	CodeNetwork      = "NETWORK_ERROR"
	CodeCancelled    = "CANCELLED"
	CodeInternal     = "INTERNAL_ERROR"
)

// StatusClientClosedRequest is reported when the caller went away before the flow finished.
const StatusClientClosedRequest = 499

// Reason narrows a code down to the exact identity failure.
type Reason string

const (
	ReasonInvalidEmail              Reason = "InvalidEmail"
	ReasonWeakCredential            Reason = "WeakCredential"
	ReasonInvalidCode               Reason = "InvalidCode"
	ReasonInvalidRole               Reason = "InvalidRole"
	ReasonDuplicateIdentity         Reason = "DuplicateIdentity"
	ReasonChallengeNotFound         Reason = "ChallengeNotFound"
	ReasonIdentityNotFound          Reason = "IdentityNotFound"
	ReasonInvalidCredential         Reason = "InvalidCredential"
	ReasonUnconfirmedIdentity       Reason = "UnconfirmedIdentity"
	ReasonInvalidOrExpiredChallenge Reason = "InvalidOrExpiredChallenge"
	ReasonSessionExpired            Reason = "SessionExpired"
	ReasonSignInIncomplete          Reason = "SignInIncomplete"
	ReasonRateLimited               Reason = "RateLimited"
)

// GenericCredentialMessage is shown for both unknown identities and wrong passwords.
const GenericCredentialMessage = "Incorrect email or password"

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Reason     Reason
	Message    string
	HTTPStatus int
	Retryable  bool
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func newReasoned(code string, reason Reason, status int, message string) *DomainError {
	return &DomainError{Code: code, Reason: reason, Message: message, HTTPStatus: status}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewNetworkError wraps a transport failure. Network errors are always retryable.
func NewNetworkError(err error) error {
	return &DomainError{
		Code:       CodeNetwork,
		Message:    "service temporarily unavailable, please try again",
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
		Err:        err,
	}
}

func NewCancelled(err error) error {
	return &DomainError{
		Code:       CodeCancelled,
		Message:    "request cancelled",
		HTTPStatus: StatusClientClosedRequest,
		Err:        err,
	}
}

func InvalidEmail() error {
	return newReasoned(CodeValidation, ReasonInvalidEmail, http.StatusBadRequest, "Invalid email format")
}

func WeakCredential() error {
	return newReasoned(CodeValidation, ReasonWeakCredential, http.StatusBadRequest, "Password must be at least 8 characters")
}

func InvalidCode() error {
	return newReasoned(CodeValidation, ReasonInvalidCode, http.StatusBadRequest, "Invalid verification code")
}

func InvalidRole(role string) error {
	de := newReasoned(CodeValidation, ReasonInvalidRole, http.StatusBadRequest, "Invalid role")
	de.Details = map[string]any{"role": role}
	return de
}

func DuplicateIdentity(email string) error {
	de := newReasoned(CodeConflict, ReasonDuplicateIdentity, http.StatusConflict, "User already exists")
	de.Details = map[string]any{"email": email}
	return de
}

func ChallengeNotFound() error {
	return newReasoned(CodeNotFound, ReasonChallengeNotFound, http.StatusNotFound, "No pending confirmation for this email")
}

func IdentityNotFound() error {
	return newReasoned(CodeNotFound, ReasonIdentityNotFound, http.StatusNotFound, GenericCredentialMessage)
}

func InvalidCredential() error {
	return newReasoned(CodeUnauthorized, ReasonInvalidCredential, http.StatusUnauthorized, GenericCredentialMessage)
}

// UnconfirmedIdentity carries the email and the next step the caller must take.
func UnconfirmedIdentity(email string) error {
	de := newReasoned(CodeUnconfirmed, ReasonUnconfirmedIdentity, http.StatusForbidden, "Please confirm your email before signing in")
	de.Details = map[string]any{"email": email, "nextStep": "CONFIRM_SIGN_UP"}
	return de
}

func ChallengeInvalid() error {
	return newReasoned(CodeNotFound, ReasonInvalidOrExpiredChallenge, http.StatusNotFound, "Invalid or expired reset code")
}

func ChallengeExpired() error {
	return newReasoned(CodeExpired, ReasonInvalidOrExpiredChallenge, http.StatusUnauthorized, "Invalid or expired reset code")
}

func SessionExpired() error {
	return newReasoned(CodeExpired, ReasonSessionExpired, http.StatusUnauthorized, "Your session has expired, please sign in again")
}

func SignInIncomplete(step string) error {
	de := newReasoned(CodeUnauthorized, ReasonSignInIncomplete, http.StatusUnauthorized, "Sign in requires an additional step")
	de.Details = map[string]any{"nextStep": step}
	return de
}

func RateLimited() error {
	de := newReasoned(CodeRateLimited, ReasonRateLimited, http.StatusTooManyRequests, "Too many attempts, please try again later")
	de.Retryable = true
	return de
}

// WithCause attaches an underlying error to a DomainError produced by this package.
func WithCause(err error, cause error) error {
	var de *DomainError
	if errors.As(err, &de) {
		cp := *de
		cp.Err = cause
		return &cp
	}
	return err
}

// Public returns the form of de that is safe to send to a client. Unknown
// accounts, wrong passwords and missing confirmations all render as the
// same credential failure so responses never reveal which accounts exist.
func Public(de *DomainError) *DomainError {
	if de == nil {
		return nil
	}
	switch de.Reason {
	case ReasonIdentityNotFound, ReasonInvalidCredential, ReasonChallengeNotFound:
		return NewDomainError(CodeUnauthorized, GenericCredentialMessage, http.StatusUnauthorized, nil)
	}
	return de
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, context.Canceled) {
		return NewCancelled(err).(*DomainError)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewNetworkError(err).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}

// IsReason reports whether err carries the given reason.
func IsReason(err error, reason Reason) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Reason == reason
}

// IsCode reports whether err is a DomainError of the given code.
func IsCode(err error, code string) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code == code
}

func IsCancelled(err error) bool {
	return IsCode(err, CodeCancelled) || errors.Is(err, context.Canceled)
}

func IsRetryable(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Retryable
}
