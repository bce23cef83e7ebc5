package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/easybody/auth-gateway/internal/config"
	"github.com/easybody/auth-gateway/internal/events"
	"github.com/easybody/auth-gateway/internal/worker"
)

// NotificationQueue accepts outbound messages. *worker.NotificationWorker satisfies it.
type NotificationQueue interface {
	Enqueue(job worker.Job) error
}

// Notification is the message published for every auth event.
type Notification struct {
	EventID    string    `json:"eventId"`
	Type       string    `json:"type"`
	To         string    `json:"to"`
	From       string    `json:"from,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Code       string    `json:"code,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	Role       string    `json:"role,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NotificationService turns auth events into deliverable notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      NotificationQueue
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. queue may be nil.
func NewNotificationService(dispatcher events.Dispatcher, queue NotificationQueue, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventConfirmationCodeIssued, n.handleCodeIssued)
	n.dispatcher.Subscribe(events.EventResetCodeIssued, n.handleCodeIssued)
	for _, t := range []events.EventType{
		events.EventIdentityRegistered,
		events.EventIdentityConfirmed,
		events.EventSignedIn,
		events.EventSignedOut,
		events.EventPasswordReset,
	} {
		n.dispatcher.Subscribe(t, n.handleLifecycle)
	}
}

func (n *NotificationService) handleCodeIssued(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.CodeIssuedPayload)

	if n.cfg.LogCodes {
		// development delivery: the code is only ever visible in the log
		n.logger.Info("verification code issued",
			zap.String("event_type", string(event.Type)),
			zap.String("email", event.Email),
			zap.String("code", payload.Code),
			zap.Time("expires_at", payload.ExpiresAt),
		)
	}

	subject := "Confirm your EasyBody account"
	if event.Type == events.EventResetCodeIssued {
		subject = "Reset your EasyBody password"
	}
	n.enqueue(event, Notification{
		EventID:    event.ID,
		Type:       string(event.Type),
		To:         event.Email,
		From:       strings.TrimSpace(n.cfg.EmailFrom),
		Subject:    subject,
		Code:       payload.Code,
		ExpiresAt:  payload.ExpiresAt,
		OccurredAt: event.Timestamp,
	})
	return nil
}

func (n *NotificationService) handleLifecycle(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.IdentityPayload)
	n.logger.Info(string(event.Type),
		zap.String("email", event.Email),
		zap.String("user_id", payload.UserID),
		zap.String("provider", payload.Provider),
	)
	n.enqueue(event, Notification{
		EventID:    event.ID,
		Type:       string(event.Type),
		To:         event.Email,
		UserID:     payload.UserID,
		Role:       string(payload.Role),
		Provider:   payload.Provider,
		OccurredAt: event.Timestamp,
	})
	return nil
}

// enqueue never fails the publishing flow; a full or stopped queue is logged.
func (n *NotificationService) enqueue(event events.Event, msg Notification) {
	if n.queue == nil {
		return
	}
	if err := n.queue.Enqueue(worker.Job{RoutingKey: event.Type.RoutingKey(), Payload: msg}); err != nil {
		n.logger.Warn("notification not queued",
			zap.String("event_type", string(event.Type)),
			zap.String("email", event.Email),
			zap.Error(err),
		)
	}
}
