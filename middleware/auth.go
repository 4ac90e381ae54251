// middleware/auth.go
package middleware

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware copies the identity set by the Gateway into locals.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}
		c.Locals("user_id", c.Get("X-User-ID"))
		c.Locals("user_roles", roles)
		return c.Next()
	}
}

// UserID returns the caller id stored by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// UserRoles returns the caller roles stored by UserContextMiddleware.
func UserRoles(c *fiber.Ctx) []string {
	roles, _ := c.Locals("user_roles").([]string)
	return roles
}

// RequireRole lets the request through when the caller holds any of roles.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, have := range UserRoles(c) {
			if slices.Contains(roles, have) {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}
}
