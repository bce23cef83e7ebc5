package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// CookieOptions describes how the auth cookie is written.
type CookieOptions struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// SetAuthCookie writes the token cookie with a fixed lifetime, independent of the token expiry.
func SetAuthCookie(c *fiber.Ctx, opts CookieOptions, token string, now time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     opts.Name,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(opts.TTL),
		Secure:   opts.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearAuthCookie expires the token cookie.
func ClearAuthCookie(c *fiber.Ctx, opts CookieOptions) {
	c.Cookie(&fiber.Cookie{
		Name:     opts.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		Secure:   opts.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
