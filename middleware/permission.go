package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/psicanalise-online/platform/models"
)

type route struct {
	method  string // empty matches any method
	pattern string
}

var publicRoutes = []route{
	{pattern: "/"},
	{pattern: "/healthz"},
	{pattern: "/readyz"},
	{pattern: "/login"},
	{pattern: "/signup"},
	{pattern: "/password-recovery"},
	{pattern: "/auth/callback"},
	{pattern: "/verify-email"},
	{pattern: "/favicon.ico"},
	{pattern: "/static/*"},
	{method: fiber.MethodPost, pattern: "/api/auth/register"},
	{method: fiber.MethodPost, pattern: "/api/auth/login"},
	{method: fiber.MethodPost, pattern: "/api/auth/refresh"},
	{method: fiber.MethodPost, pattern: "/api/auth/logout"},
	{method: fiber.MethodPost, pattern: "/api/auth/resend-verification"},
	{method: fiber.MethodPost, pattern: "/api/auth/verify-email"},
	{method: fiber.MethodGet, pattern: "/api/config/public"},
	{method: fiber.MethodGet, pattern: "/api/products"},
	{method: fiber.MethodGet, pattern: "/api/professionals/:id/slots"},
	{method: fiber.MethodGet, pattern: "/api/professionals/:id/working-hours"},
	{method: fiber.MethodGet, pattern: "/api/blog"},
	{method: fiber.MethodGet, pattern: "/api/blog/:slug"},
}

// roleAreas are path prefixes reserved for one role.
var roleAreas = []struct {
	prefix string
	role   models.Role
}{
	{"/professional", models.RoleProfessional},
	{"/admin", models.RoleProfessional},
	{"/api/professional", models.RoleProfessional},
	{"/api/admin", models.RoleProfessional},
}

func isPublic(c *fiber.Ctx) bool {
	path := strings.TrimRight(c.Path(), "/")
	if path == "" {
		path = "/"
	}
	method := c.Method()
	if method == fiber.MethodHead {
		method = fiber.MethodGet
	}
	if method == fiber.MethodOptions {
		return true
	}
	for _, r := range publicRoutes {
		if r.method != "" && r.method != method {
			continue
		}
		if matchPattern(r.pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern supports ":param" segments and a trailing "/*".
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	want := strings.Split(pattern, "/")
	got := strings.Split(path, "/")
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if strings.HasPrefix(want[i], ":") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

func requiredRole(path string) (models.Role, bool) {
	for _, area := range roleAreas {
		if path == area.prefix || strings.HasPrefix(path, area.prefix+"/") {
			return area.role, true
		}
	}
	return "", false
}

// RequireRole rejects callers whose role differs from role. Mounted on groups
// that live outside the reserved prefixes.
func RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := CallerFrom(c)
		if !ok {
			return deny(c, fiber.StatusUnauthorized, "authentication required")
		}
		if caller.Role != role {
			return deny(c, fiber.StatusForbidden, "you don't have the required role to perform this action")
		}
		return c.Next()
	}
}
