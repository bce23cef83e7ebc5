package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/easybody/auth-gateway/internal/auth"
	"github.com/easybody/auth-gateway/internal/events"
	"github.com/easybody/auth-gateway/internal/session"
	"github.com/easybody/auth-gateway/internal/storage"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// codeRecorder captures delivered codes per email.
type codeRecorder struct {
	mu    sync.Mutex
	codes map[string][]string
}

func newCodeRecorder(d events.Dispatcher) *codeRecorder {
	r := &codeRecorder{codes: map[string][]string{}}
	handler := func(_ context.Context, e events.Event) error {
		p := e.Payload.(events.CodeIssuedPayload)
		r.mu.Lock()
		r.codes[e.Email] = append(r.codes[e.Email], p.Code)
		r.mu.Unlock()
		return nil
	}
	d.Subscribe(events.EventConfirmationCodeIssued, handler)
	d.Subscribe(events.EventResetCodeIssued, handler)
	return r
}

func (r *codeRecorder) last(email string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.codes[email]
	if len(c) == 0 {
		return ""
	}
	return c[len(c)-1]
}

type mockFixture struct {
	mem      *storage.Memory
	creds    *CredentialStore
	sess     *session.Manager
	clock    *fakeClock
	codes    *codeRecorder
	provider *MockProvider
}

func newMockFixture(t *testing.T, autoConfirm bool) *mockFixture {
	t.Helper()
	mem := storage.NewMemory()
	clock := newFakeClock()
	creds := NewCredentialStore(mem, bcrypt.MinCost).WithClock(clock.Now)
	sess := session.NewManager(storage.Device(mem, "test-device"), session.WithClock(clock.Now))
	dispatcher := events.NewInMemoryDispatcher()
	codes := newCodeRecorder(dispatcher)
	issuer := auth.NewTokenIssuer("mock-cognito", time.Hour, 24*time.Hour).WithClock(clock.Now)

	provider := NewMockProvider(creds, sess, issuer, dispatcher, zap.NewNop(), MockOptions{
		AutoConfirm:       autoConfirm,
		ForcedFailureCode: "000000",
		ResetCodeTTL:      10 * time.Minute,
	})
	return &mockFixture{mem: mem, creds: creds, sess: sess, clock: clock, codes: codes, provider: provider}
}
