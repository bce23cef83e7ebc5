package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/easybody/auth-gateway/internal/api/dto"
	"github.com/easybody/auth-gateway/internal/auth"
	"github.com/easybody/auth-gateway/internal/service"
	apperrors "github.com/easybody/auth-gateway/pkg/util/errorutil"
)

// AuthHandler exposes the auth flows of the requesting browser context.
type AuthHandler struct {
	auth   *service.AuthService
	cookie auth.CookieOptions
	now    func() time.Time
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookie auth.CookieOptions) *AuthHandler {
	return &AuthHandler{auth: authService, cookie: cookie, now: time.Now}
}

func (h *AuthHandler) device(c *fiber.Ctx) *service.DeviceAuth {
	return h.auth.ForDevice(auth.DeviceID(c))
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(out)
}

// respond writes a flow result. Cancelled flows get 499 and no body.
func (h *AuthHandler) respond(c *fiber.Ctx, status int, res *service.AuthResult) error {
	if res.Cancelled {
		return c.SendStatus(apperrors.StatusClientClosedRequest)
	}
	if res.Token != "" {
		auth.SetAuthCookie(c, h.cookie, res.Token, h.now())
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewAuthResponse(res)})
}

// expire drops the cookie when err says the session is gone.
func (h *AuthHandler) expire(c *fiber.Ctx, err error) error {
	if apperrors.IsReason(err, apperrors.ReasonSessionExpired) {
		auth.ClearAuthCookie(c, h.cookie)
	}
	return err
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.device(c).Register(c.UserContext(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Profile:  req.Profile(),
	})
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusCreated, res)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.device(c).Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, res)
}

// Confirm handles POST /api/auth/confirm.
func (h *AuthHandler) Confirm(c *fiber.Ctx) error {
	var req dto.ConfirmRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.device(c).Confirm(c.UserContext(), req.Email, req.Code)
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, res)
}

// ResendCode handles POST /api/auth/confirm/resend.
func (h *AuthHandler) ResendCode(c *fiber.Ctx) error {
	var req dto.ResendRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	res, err := h.device(c).ResendCode(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, res)
}

// AbandonConfirmation handles DELETE /api/auth/confirm.
func (h *AuthHandler) AbandonConfirmation(c *fiber.Ctx) error {
	if err := h.device(c).AbandonConfirmation(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.device(c).Logout(c.UserContext()); err != nil {
		return err
	}
	auth.ClearAuthCookie(c, h.cookie)
	return c.JSON(fiber.Map{"data": dto.AuthResponse{Authenticated: false, RedirectTo: "/"}})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	res, err := h.device(c).Refresh(c.UserContext())
	if err != nil {
		return h.expire(c, err)
	}
	return h.respond(c, http.StatusOK, res)
}

// ForgotPassword handles POST /api/auth/password/forgot.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.device(c).ForgotPassword(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, res)
}

// ResetPassword handles POST /api/auth/password/reset.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := h.device(c).ResetPassword(c.UserContext(), req.Email, req.Code, req.NewPassword)
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, res)
}

// Session handles GET /api/auth/session.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	device := h.device(c)
	user, err := device.CurrentUser(c.UserContext())
	if err != nil {
		return h.expire(c, err)
	}
	resp := dto.SessionResponse{User: dto.NewUserResponse(user), Authenticated: user != nil}
	if user != nil {
		if s, err := device.Session().Stored(c.UserContext()); err == nil && s != nil {
			expires := s.ExpiresAt
			resp.ExpiresAt = &expires
		}
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Me handles GET /api/auth/me: the persisted token checked against the backend.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	res, err := h.device(c).Initialize(c.UserContext())
	if err != nil {
		return h.expire(c, err)
	}
	if res.Cancelled {
		return c.SendStatus(apperrors.StatusClientClosedRequest)
	}
	return c.JSON(fiber.Map{"data": dto.NewAuthResponse(res)})
}

// Access handles GET /api/auth/access?path=.
func (h *AuthHandler) Access(c *fiber.Ctx) error {
	path := c.Query("path")
	if path == "" || path[0] != '/' {
		return apperrors.NewValidationError("path must be an absolute path", map[string]any{"path": path})
	}
	decision, err := h.device(c).CanAccess(c.UserContext(), path)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AccessResponse{
		Path:       decision.Path,
		Allowed:    decision.Allowed,
		Roles:      decision.Roles,
		RedirectTo: decision.RedirectTo,
	}})
}
