package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/easybody/auth-gateway/internal/config"
)

// ErrorReporter forwards unexpected failures to Sentry. Without a DSN every
// method is a no-op.
type ErrorReporter struct {
	hub *sentry.Hub
}

// NewErrorReporter initializes a dedicated Sentry client.
func NewErrorReporter(cfg config.SentryConfig, release string) (*ErrorReporter, error) {
	if cfg.DSN == "" {
		return &ErrorReporter{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          release,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, err
	}
	return &ErrorReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Enabled reports whether events are sent anywhere.
func (r *ErrorReporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// CaptureException sends err with request tags.
func (r *ErrorReporter) CaptureException(ctx context.Context, err error, tags map[string]string) {
	if !r.Enabled() || err == nil {
		return
	}
	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetContext("request", sentry.Context{"deadline_set": hasDeadline(ctx)})
		hub.CaptureException(err)
	})
}

// Recover reports a recovered panic value.
func (r *ErrorReporter) Recover(v any) {
	if !r.Enabled() || v == nil {
		return
	}
	r.hub.Clone().Recover(v)
}

// Flush waits for buffered events.
func (r *ErrorReporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return r.hub.Flush(timeout)
}

func hasDeadline(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	_, ok := ctx.Deadline()
	return ok
}
