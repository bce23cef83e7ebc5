package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"go.uber.org/zap"

	"github.com/easybody/auth-gateway/internal/auth"
	"github.com/easybody/auth-gateway/internal/backend"
	"github.com/easybody/auth-gateway/internal/service"
	apperrors "github.com/easybody/auth-gateway/pkg/util/errorutil"
)

// BackendPrefix is where the gateway exposes the backend API.
const BackendPrefix = "/api/v1"

// Forwarder relays a request to the backend.
type Forwarder interface {
	Forward(ctx context.Context, fr backend.ForwardRequest) (*backend.ForwardResponse, error)
}

// ProxyHandler relays backend calls with the device token attached and
// serves pages from the frontend upstream.
type ProxyHandler struct {
	auth     *service.AuthService
	backend  Forwarder
	cookie   auth.CookieOptions
	frontend string
	logger   *zap.Logger
}

// NewProxyHandler constructs handler. An empty frontend upstream answers 404
// for every page.
func NewProxyHandler(authService *service.AuthService, forwarder Forwarder, cookie auth.CookieOptions, frontend string, logger *zap.Logger) *ProxyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProxyHandler{
		auth:     authService,
		backend:  forwarder,
		cookie:   cookie,
		frontend: strings.TrimRight(frontend, "/"),
		logger:   logger,
	}
}

// Backend handles ANY /api/v1/*. A 401 drops the device's token and cookie;
// a 500 from an auth endpoint drops the token.
func (h *ProxyHandler) Backend(c *fiber.Ctx) error {
	ctx := c.UserContext()
	device := h.auth.ForDevice(auth.DeviceID(c))
	token, err := device.Token(ctx)
	if err != nil {
		return err
	}

	path := strings.TrimPrefix(c.Path(), BackendPrefix)
	resp, err := h.backend.Forward(ctx, backend.ForwardRequest{
		Method:      c.Method(),
		Path:        path,
		RawQuery:    string(c.Request().URI().QueryString()),
		Body:        c.Body(),
		ContentType: c.Get(fiber.HeaderContentType),
		Token:       token,
	})
	if err != nil {
		if apperrors.IsCancelled(err) {
			return c.SendStatus(apperrors.StatusClientClosedRequest)
		}
		return err
	}

	switch {
	case resp.Status == http.StatusUnauthorized && token != "":
		h.logger.Info("backend rejected token", zap.String("path", path))
		if err := device.ForgetToken(ctx); err != nil {
			return err
		}
		auth.ClearAuthCookie(c, h.cookie)
	case resp.Status == http.StatusInternalServerError && strings.Contains(path, "/auth/"):
		h.logger.Warn("backend auth endpoint failed", zap.String("path", path))
		if err := device.Session().ClearToken(ctx); err != nil {
			return err
		}
	}

	if resp.ContentType != "" {
		c.Set(fiber.HeaderContentType, resp.ContentType)
	}
	return c.Status(resp.Status).Send(resp.Body)
}

// Frontend proxies a page request that passed the route guard.
func (h *ProxyHandler) Frontend(c *fiber.Ctx) error {
	if h.frontend == "" {
		return apperrors.NewNotFound("page", map[string]any{"path": c.Path()})
	}
	if err := proxy.Do(c, h.frontend+c.OriginalURL()); err != nil {
		h.logger.Warn("frontend upstream failed", zap.Error(err))
		return apperrors.NewNetworkError(err)
	}
	return nil
}
