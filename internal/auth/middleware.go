package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// DefaultPublicRoutes are reachable without the auth cookie. A route also
// covers everything below it, so "/gyms" allows "/gyms/42".
var DefaultPublicRoutes = []string{
	"/",
	"/auth/login",
	"/auth/register",
	"/auth/confirm",
	"/auth/forgot-password",
	"/auth/reset-password",
	"/gyms",
	"/trainers",
	"/offers",
	"/search",
	"/about",
	"/contact",
	"/privacy",
	"/terms",
}

// RouteGuard gates page navigation on the presence of the auth cookie. It does
// not validate the token or the role; pages do that after loading.
type RouteGuard struct {
	publicRoutes []string
	cookieName   string
	loginPath    string
}

// NewRouteGuard constructs the guard. With no routes given DefaultPublicRoutes is used.
func NewRouteGuard(cookieName, loginPath string, publicRoutes ...string) *RouteGuard {
	if len(publicRoutes) == 0 {
		publicRoutes = DefaultPublicRoutes
	}
	return &RouteGuard{publicRoutes: publicRoutes, cookieName: cookieName, loginPath: loginPath}
}

// Bypassed reports framework assets and API calls, which the guard never touches.
func (g *RouteGuard) Bypassed(path string) bool {
	return strings.HasPrefix(path, "/_next") ||
		strings.HasPrefix(path, "/static") ||
		path == "/favicon.ico" ||
		strings.HasPrefix(path, "/api/")
}

// IsPublic reports whether path is on the allow-list.
func (g *RouteGuard) IsPublic(path string) bool {
	for _, route := range g.publicRoutes {
		if path == route {
			return true
		}
		if route != "/" && strings.HasPrefix(path, route+"/") {
			return true
		}
	}
	return false
}

// Permits reports whether a navigation to path goes through given the cookie value.
func (g *RouteGuard) Permits(path, cookie string) bool {
	return g.Bypassed(path) || g.IsPublic(path) || cookie != ""
}

// Handle redirects navigations without the auth cookie to the login page.
func (g *RouteGuard) Handle(c *fiber.Ctx) error {
	if g.Permits(c.Path(), c.Cookies(g.cookieName)) {
		return c.Next()
	}
	return c.Redirect(g.loginPath, fiber.StatusTemporaryRedirect)
}
