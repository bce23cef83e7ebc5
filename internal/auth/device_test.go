package auth

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deviceApp() *fiber.App {
	app := fiber.New()
	app.Use(DeviceMiddleware("eb_device", false))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(DeviceID(c))
	})
	return app
}

func TestDeviceMiddlewareIssuesCookie(t *testing.T) {
	resp, err := deviceApp().Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)

	var issued string
	for _, ck := range resp.Cookies() {
		if ck.Name == "eb_device" {
			issued = ck.Value
			assert.True(t, ck.HttpOnly)
		}
	}
	_, err = uuid.Parse(issued)
	assert.NoError(t, err)
}

func TestDeviceMiddlewareKeepsExistingID(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", "eb_device="+id)

	resp, err := deviceApp().Test(req)
	require.NoError(t, err)
	assert.Empty(t, resp.Cookies())

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, id, string(body))
}

func TestDeviceMiddlewareReplacesGarbage(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", "eb_device=../../etc")

	resp, err := deviceApp().Test(req)
	require.NoError(t, err)
	require.Len(t, resp.Cookies(), 1)
	assert.NotEqual(t, "../../etc", resp.Cookies()[0].Value)
}
