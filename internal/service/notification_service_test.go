package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/easybody/auth-gateway/internal/config"
	"github.com/easybody/auth-gateway/internal/domain"
	"github.com/easybody/auth-gateway/internal/events"
	"github.com/easybody/auth-gateway/internal/worker"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []worker.Job
	err  error
}

func (q *fakeQueue) Enqueue(job worker.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func TestCodeEventsAreLoggedAndQueued(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	queue := &fakeQueue{}
	svc := NewNotificationService(dispatcher, queue, zap.New(core), config.NotificationConfig{LogCodes: true, EmailFrom: "noreply@easybody.local"})
	svc.RegisterHandlers()

	expires := time.Date(2025, 6, 1, 10, 10, 0, 0, time.UTC)
	err := dispatcher.Publish(context.Background(), events.New(events.EventResetCodeIssued, "alice@example.com",
		events.CodeIssuedPayload{Code: "123456", ExpiresAt: expires}))
	require.NoError(t, err)

	entries := logs.FilterMessage("verification code issued").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "123456", entries[0].ContextMap()["code"])

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "auth.reset_code_issued", queue.jobs[0].RoutingKey)
	msg := queue.jobs[0].Payload.(Notification)
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Reset your EasyBody password", msg.Subject)
	assert.Equal(t, expires, msg.ExpiresAt)
}

func TestCodesAreNotLoggedWhenDisabled(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, nil, zap.New(core), config.NotificationConfig{}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.New(events.EventConfirmationCodeIssued, "a@b.co",
		events.CodeIssuedPayload{Code: "654321"})))
	assert.Zero(t, logs.FilterMessage("verification code issued").Len())
}

func TestLifecycleEventsAreQueued(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	queue := &fakeQueue{}
	NewNotificationService(dispatcher, queue, zap.NewNop(), config.NotificationConfig{}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.New(events.EventSignedIn, "a@b.co",
		events.IdentityPayload{UserID: "u1", Role: domain.RoleAdmin, Provider: "mock"})))

	require.Len(t, queue.jobs, 1)
	msg := queue.jobs[0].Payload.(Notification)
	assert.Equal(t, "ADMIN", msg.Role)
	assert.Equal(t, "mock", msg.Provider)
}

func TestQueueFailureDoesNotFailPublish(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	queue := &fakeQueue{err: worker.ErrQueueFull}
	NewNotificationService(dispatcher, queue, zap.NewNop(), config.NotificationConfig{}).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.New(events.EventSignedOut, "a@b.co", events.IdentityPayload{}))
	assert.NoError(t, err)
}
