package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/easybody/auth-gateway/internal/auth"
	"github.com/easybody/auth-gateway/internal/observability"
	apperrors "github.com/easybody/auth-gateway/pkg/util/errorutil"
)

// MiddlewareConfig bundles dependencies of the global middlewares.
type MiddlewareConfig struct {
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Reporter      *observability.ErrorReporter
	Timeout       time.Duration
	DeviceCookie  string
	SecureCookies bool
}

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, cfg MiddlewareConfig) {
	if cfg.Timeout > 0 {
		app.Use(requestTimeoutMiddleware(cfg.Timeout))
	}
	app.Use(observability.RequestLogger(cfg.Logger, cfg.Metrics))
	app.Use(errorHandlingMiddleware(cfg.Logger, cfg.Metrics, cfg.Reporter))
	app.Use(auth.DeviceMiddleware(cfg.DeviceCookie, cfg.SecureCookies))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics, reporter *observability.ErrorReporter) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				reporter.Recover(r)
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := toDomainError(err)
				metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
				if domainErr.Code == apperrors.CodeCancelled {
					c.Status(domainErr.HTTPStatus)
					err = nil
					return
				}
				domainErr = apperrors.Public(domainErr)
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if domainErr.Reason != "" {
					response["error"].(fiber.Map)["reason"] = domainErr.Reason
				}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.String("path", c.Path()), zap.Error(domainErr))
					reporter.CaptureException(c.UserContext(), domainErr, map[string]string{
						"method": c.Method(),
						"path":   c.Path(),
						"code":   domainErr.Code,
					})
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}

// toDomainError also understands the framework's own errors (unknown route,
// bad method, oversized body).
func toDomainError(err error) *apperrors.DomainError {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return apperrors.NewDomainError(codeForStatus(fe.Code), fe.Message, fe.Code, nil)
	}
	return apperrors.ToDomainError(err)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return apperrors.CodeNotFound
	case http.StatusUnauthorized:
		return apperrors.CodeUnauthorized
	case http.StatusForbidden:
		return apperrors.CodeForbidden
	case http.StatusConflict:
		return apperrors.CodeConflict
	case http.StatusTooManyRequests:
		return apperrors.CodeRateLimited
	}
	if status >= 500 {
		return apperrors.CodeInternal
	}
	return apperrors.CodeValidation
}
