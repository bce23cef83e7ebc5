package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/easybody/auth-gateway/internal/api/dto"
	"github.com/easybody/auth-gateway/internal/auth"
	"github.com/easybody/auth-gateway/internal/backend"
	"github.com/easybody/auth-gateway/internal/service"
	apperrors "github.com/easybody/auth-gateway/pkg/util/errorutil"
)

// SearchAPI is the backend search endpoint.
type SearchAPI interface {
	SearchNearby(ctx context.Context, token string, p backend.NearbyParams) (*backend.NearbyResponse, error)
}

// SearchHandler runs the nearby search with the device's token.
type SearchHandler struct {
	auth   *service.AuthService
	search SearchAPI
	cookie auth.CookieOptions
}

// NewSearchHandler constructs handler.
func NewSearchHandler(authService *service.AuthService, search SearchAPI, cookie auth.CookieOptions) *SearchHandler {
	return &SearchHandler{auth: authService, search: search, cookie: cookie}
}

// Nearby handles GET /api/search/nearby.
func (h *SearchHandler) Nearby(c *fiber.Ctx) error {
	var q dto.NearbyQuery
	if err := c.QueryParser(&q); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	if err := dto.Validate(q); err != nil {
		return err
	}

	device := h.auth.ForDevice(auth.DeviceID(c))
	token, err := device.Token(c.UserContext())
	if err != nil {
		return err
	}
	res, err := h.search.SearchNearby(c.UserContext(), token, q.Params())
	if err != nil {
		if apperrors.IsCancelled(err) {
			return c.SendStatus(apperrors.StatusClientClosedRequest)
		}
		if token != "" && apperrors.IsCode(err, apperrors.CodeUnauthorized) {
			if clearErr := device.ForgetToken(c.UserContext()); clearErr != nil {
				return clearErr
			}
			auth.ClearAuthCookie(c, h.cookie)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": res})
}
