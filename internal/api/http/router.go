package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/easybody/auth-gateway/internal/api/http/handlers"
	"github.com/easybody/auth-gateway/internal/auth"
	"github.com/easybody/auth-gateway/internal/observability"
	apperrors "github.com/easybody/auth-gateway/pkg/util/errorutil"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Search  *handlers.SearchHandler
	Proxy   *handlers.ProxyHandler
	Guard   *auth.RouteGuard
	Metrics *observability.Metrics
}

// RegisterRoutes wires HTTP routes. Anything not matched here is a page
// navigation: it goes through the route guard and on to the frontend.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/confirm", cfg.Auth.Confirm)
	authGroup.Post("/confirm/resend", cfg.Auth.ResendCode)
	authGroup.Delete("/confirm", cfg.Auth.AbandonConfirmation)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/password/forgot", cfg.Auth.ForgotPassword)
	authGroup.Post("/password/reset", cfg.Auth.ResetPassword)
	authGroup.Get("/session", cfg.Auth.Session)
	authGroup.Get("/me", cfg.Auth.Me)
	authGroup.Get("/access", cfg.Auth.Access)

	api.Get("/search/nearby", cfg.Search.Nearby)
	api.All("/v1/*", cfg.Proxy.Backend)
	api.All("/*", func(c *fiber.Ctx) error {
		return apperrors.NewNotFound("route", map[string]any{"path": c.Path()})
	})

	app.All("/*", cfg.Guard.Handle, cfg.Proxy.Frontend)
}
