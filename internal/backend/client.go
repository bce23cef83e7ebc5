// Package backend is the HTTP client for the marketplace REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/easybody/auth-gateway/internal/config"
	apperrors "github.com/easybody/auth-gateway/pkg/util/errorutil"
)

const maxErrorBody = 4 << 10

// ErrMalformedPayload marks a 2xx answer whose body could not be used.
var ErrMalformedPayload = errors.New("malformed backend payload")

func malformed(err error) error {
	if err == nil {
		return apperrors.NewInternalError(ErrMalformedPayload)
	}
	return apperrors.NewInternalError(fmt.Errorf("%w: %v", ErrMalformedPayload, err))
}

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s: status %d", e.Method, e.Path, e.Status)
}

// IsServerError reports whether err came from a 5xx backend answer.
func IsServerError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status >= http.StatusInternalServerError
}

// Client calls the backend with the caller's token (bearer mode) or the
// gateway's own credentials (basic mode).
type Client struct {
	baseURL       string
	httpClient    *http.Client
	authMode      string
	basicUser     string
	basicPassword string
	maxRetries    uint64
	backoff       time.Duration
	logger        *zap.Logger
}

// NewClient builds a client from the backend config.
func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    &http.Client{Timeout: timeout},
		authMode:      cfg.AuthMode,
		basicUser:     cfg.BasicUser,
		basicPassword: cfg.BasicPassword,
		maxRetries:    uint64(retries),
		backoff:       200 * time.Millisecond,
		logger:        logger.With(zap.String("component", "backend")),
	}
}

// WithBackoff sets the base delay between GET retries.
func (c *Client) WithBackoff(d time.Duration) *Client {
	c.backoff = d
	return c
}

// BaseURL is the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) authorize(req *http.Request, token string) {
	if c.authMode == config.BackendAuthBasic {
		req.SetBasicAuth(c.basicUser, c.basicPassword)
		return
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, token string) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("build backend request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req, token)
	return req, nil
}

// doJSON sends one request and decodes a 2xx body into out. GETs are retried
// on retryable failures.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload any, token string, out any) error {
	var raw []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return apperrors.NewInternalError(fmt.Errorf("encode backend payload: %w", err))
		}
		raw = b
	}

	attempt := func(ctx context.Context) error {
		var body io.Reader
		if raw != nil {
			body = bytes.NewReader(raw)
		}
		req, err := c.newRequest(ctx, method, path, query, body, token)
		if err != nil {
			return err
		}
		return c.roundTrip(ctx, req, out)
	}

	if method != http.MethodGet || c.maxRetries == 0 {
		return attempt(ctx)
	}

	b := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := attempt(ctx)
		if err != nil && apperrors.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) roundTrip(ctx context.Context, req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request completed",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(&StatusError{
			Method: req.Method,
			Path:   req.URL.Path,
			Status: resp.StatusCode,
			Body:   string(snippet),
		})
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return malformed(nil)
		}
		return transportError(ctx, err)
	}
	return nil
}

// transportError maps a failed round trip onto the taxonomy. Cancellation by
// the caller is never reported as a network failure.
func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return apperrors.NewCancelled(err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.NewNetworkError(fmt.Errorf("backend timeout: %w", err))
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return malformed(err)
	}
	return apperrors.NewNetworkError(err)
}

func statusError(se *StatusError) error {
	switch {
	case se.Status == http.StatusUnauthorized:
		return apperrors.WithCause(apperrors.NewUnauthorized("backend rejected the session token"), se)
	case se.Status == http.StatusForbidden:
		return apperrors.WithCause(apperrors.NewForbidden("backend denied the request"), se)
	case se.Status == http.StatusNotFound:
		return apperrors.WithCause(apperrors.NewNotFound("backend resource", nil), se)
	case se.Status == http.StatusConflict:
		return apperrors.WithCause(apperrors.NewConflict("backend reported a conflict", nil), se)
	case se.Status == http.StatusTooManyRequests:
		return apperrors.WithCause(apperrors.RateLimited(), se)
	case se.Status >= http.StatusInternalServerError:
		return apperrors.NewNetworkError(se)
	case se.Status >= http.StatusBadRequest:
		return apperrors.WithCause(apperrors.NewValidationError("backend rejected the request", nil), se)
	}
	return apperrors.NewInternalError(se)
}
