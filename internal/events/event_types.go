package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/easybody/auth-gateway/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventConfirmationCodeIssued EventType = "confirmation_code_issued"
	EventResetCodeIssued        EventType = "reset_code_issued"
	EventIdentityRegistered     EventType = "identity_registered"
	EventIdentityConfirmed      EventType = "identity_confirmed"
	EventSignedIn               EventType = "signed_in"
	EventSignedOut              EventType = "signed_out"
	EventPasswordReset          EventType = "password_reset"
)

// Event represents a domain event emitted by providers and services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Email     string      `json:"email"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New stamps an event with an ID and the current time.
func New(eventType EventType, email string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Email:     email,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// CodeIssuedPayload carries a one-time code to deliver out of band.
type CodeIssuedPayload struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// IdentityPayload describes the identity an auth lifecycle event is about.
type IdentityPayload struct {
	UserID   string      `json:"user_id,omitempty"`
	Role     domain.Role `json:"role,omitempty"`
	Provider string      `json:"provider"`
}

// RoutingKey is the broker topic for the event type.
func (t EventType) RoutingKey() string {
	return "auth." + string(t)
}
