package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError_ContextErrors(t *testing.T) {
	de := ToDomainError(fmt.Errorf("call backend: %w", context.Canceled))
	require.NotNil(t, de)
	assert.Equal(t, CodeCancelled, de.Code)
	assert.Equal(t, StatusClientClosedRequest, de.HTTPStatus)

	de = ToDomainError(context.DeadlineExceeded)
	assert.Equal(t, CodeNetwork, de.Code)
	assert.True(t, de.Retryable)
}

func TestToDomainError_UnknownBecomesInternal(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Equal(t, "internal server error", de.Message)
}

func TestToDomainError_Nil(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
}

func TestCredentialFailuresShareMessage(t *testing.T) {
	notFound := ToDomainError(IdentityNotFound())
	wrong := ToDomainError(InvalidCredential())

	assert.Equal(t, notFound.Message, wrong.Message)
	assert.NotEqual(t, notFound.Code, wrong.Code)
	assert.True(t, IsReason(notFound, ReasonIdentityNotFound))
	assert.True(t, IsReason(wrong, ReasonInvalidCredential))
}

func TestPublicCollapsesAccountLookups(t *testing.T) {
	wrong := Public(ToDomainError(InvalidCredential()))
	for _, err := range []error{IdentityNotFound(), ChallengeNotFound(), WithCause(IdentityNotFound(), errors.New("upstream"))} {
		got := Public(ToDomainError(err))
		assert.Equal(t, wrong, got)
	}
	assert.Equal(t, CodeUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.HTTPStatus)
	assert.Equal(t, GenericCredentialMessage, wrong.Message)
	assert.Empty(t, wrong.Reason)
	assert.Nil(t, wrong.Details)

	dup := ToDomainError(DuplicateIdentity("a@b.co"))
	assert.Same(t, dup, Public(dup))
	assert.Nil(t, Public(nil))
}

func TestChallengeKinds(t *testing.T) {
	assert.True(t, IsCode(ChallengeInvalid(), CodeNotFound))
	assert.True(t, IsCode(ChallengeExpired(), CodeExpired))
	assert.True(t, IsReason(ChallengeInvalid(), ReasonInvalidOrExpiredChallenge))
	assert.True(t, IsReason(ChallengeExpired(), ReasonInvalidOrExpiredChallenge))
}

func TestUnconfirmedIdentityDetails(t *testing.T) {
	de := ToDomainError(UnconfirmedIdentity("a@b.co"))
	assert.Equal(t, CodeUnconfirmed, de.Code)
	assert.Equal(t, "a@b.co", de.Details["email"])
	assert.Equal(t, "CONFIRM_SIGN_UP", de.Details["nextStep"])
}

func TestWithCauseKeepsReason(t *testing.T) {
	cause := errors.New("cognito said no")
	err := WithCause(InvalidCredential(), cause)

	assert.True(t, IsReason(err, ReasonInvalidCredential))
	assert.ErrorIs(t, err, cause)
	assert.False(t, errors.Is(InvalidCredential(), cause))
}

func TestRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewNetworkError(errors.New("dial"))))
	assert.True(t, IsRetryable(RateLimited()))
	assert.False(t, IsRetryable(InvalidCode()))
	assert.True(t, IsCancelled(NewCancelled(nil)))
	assert.True(t, IsCancelled(context.Canceled))
}
