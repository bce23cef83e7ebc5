package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// DeviceLocalsKey is the fiber locals key holding the browser context id.
const DeviceLocalsKey = "deviceID"

const deviceCookieTTL = 365 * 24 * time.Hour

// DeviceMiddleware gives every browser a stable id in an HttpOnly cookie.
// The id selects the storage namespace all auth state of that browser lives in.
func DeviceMiddleware(cookieName string, secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(cookieName)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     cookieName,
				Value:    id,
				Path:     "/",
				Expires:  time.Now().Add(deviceCookieTTL),
				Secure:   secure,
				HTTPOnly: true,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}
		c.Locals(DeviceLocalsKey, id)
		return c.Next()
	}
}

// DeviceID returns the id set by DeviceMiddleware, or "".
func DeviceID(c *fiber.Ctx) string {
	id, _ := c.Locals(DeviceLocalsKey).(string)
	return id
}
