// Package session owns the per-browser session slot, the persisted auth token
// and the pending confirmation ticket.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/easybody/auth-gateway/internal/domain"
	"github.com/easybody/auth-gateway/internal/storage"
)

// Keys inside a browser context namespace.
const (
	KeySession     = "mock_session"
	KeyCurrentUser = "mock_current_user"
	KeyAuthToken   = "auth_token"
	KeyPending     = "pending_confirmation"
)

const defaultPendingTTL = 15 * time.Minute

// Manager reads and writes the state of a single browser context.
type Manager struct {
	store      storage.Storage
	now        func() time.Time
	pendingTTL time.Duration
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithPendingTTL sets how long a confirmation ticket stays usable.
func WithPendingTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.pendingTTL = ttl
		}
	}
}

// NewManager binds a manager to an already scoped store.
func NewManager(store storage.Storage, opts ...Option) *Manager {
	m := &Manager{store: store, now: time.Now, pendingTTL: defaultPendingTTL}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now returns the manager's notion of the current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Save overwrites the session slot and the current user snapshot.
func (m *Manager) Save(ctx context.Context, s domain.Session) error {
	if err := storage.SetJSON(ctx, m.store, KeySession, s); err != nil {
		return err
	}
	return storage.SetJSON(ctx, m.store, KeyCurrentUser, s.User)
}

// Session returns the live session, or nil. An expired or unreadable session
// is removed as a side effect.
func (m *Manager) Session(ctx context.Context) (*domain.Session, error) {
	s, err := m.Stored(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	if !s.Valid(m.now()) {
		if err := m.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s, nil
}

// Stored returns the session slot without checking expiry. Refresh uses it to
// reach the refresh token after the access token lapsed.
func (m *Manager) Stored(ctx context.Context) (*domain.Session, error) {
	var s domain.Session
	found, err := storage.GetJSON(ctx, m.store, KeySession, &s)
	if errors.Is(err, storage.ErrCorrupt) {
		return nil, m.Clear(ctx)
	}
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}

// Clear removes the session slot and the current user snapshot. Idempotent.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Delete(ctx, KeySession); err != nil {
		return err
	}
	return m.store.Delete(ctx, KeyCurrentUser)
}

// CurrentUser returns the user of the live session, or nil.
func (m *Manager) CurrentUser(ctx context.Context) (*domain.User, error) {
	s, err := m.Session(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	u := s.User
	return &u, nil
}

// AccessToken returns the access token of the live session, or "".
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	s, err := m.Session(ctx)
	if err != nil || s == nil {
		return "", err
	}
	return s.AccessToken, nil
}

// SaveToken persists the bearer token used for backend calls.
func (m *Manager) SaveToken(ctx context.Context, token string) error {
	return m.store.Set(ctx, KeyAuthToken, []byte(token))
}

// Token returns the persisted bearer token, or "".
func (m *Manager) Token(ctx context.Context) (string, error) {
	raw, err := m.store.Get(ctx, KeyAuthToken)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ClearToken forgets the persisted bearer token.
func (m *Manager) ClearToken(ctx context.Context) error {
	return m.store.Delete(ctx, KeyAuthToken)
}

// SavePending records a sign-up awaiting confirmation. Password may be empty.
func (m *Manager) SavePending(ctx context.Context, email, password string) error {
	p := domain.PendingConfirmation{
		Email:     email,
		Password:  password,
		ExpiresAt: m.now().Add(m.pendingTTL),
	}
	return storage.SetJSON(ctx, m.store, KeyPending, p)
}

// Pending returns the active confirmation ticket, or nil. A stale ticket is dropped.
func (m *Manager) Pending(ctx context.Context) (*domain.PendingConfirmation, error) {
	var p domain.PendingConfirmation
	found, err := storage.GetJSON(ctx, m.store, KeyPending, &p)
	if errors.Is(err, storage.ErrCorrupt) {
		return nil, m.ClearPending(ctx)
	}
	if err != nil || !found {
		return nil, err
	}
	if !p.Active(m.now()) {
		return nil, m.ClearPending(ctx)
	}
	return &p, nil
}

// ClearPending drops the confirmation ticket.
func (m *Manager) ClearPending(ctx context.Context) error {
	return m.store.Delete(ctx, KeyPending)
}

// Reset wipes everything held for this browser context.
func (m *Manager) Reset(ctx context.Context) error {
	if err := m.Clear(ctx); err != nil {
		return err
	}
	if err := m.ClearToken(ctx); err != nil {
		return err
	}
	return m.ClearPending(ctx)
}
