package middleware

import (
	"strings"

	"puzzle-bar/models"
	"puzzle-bar/utils"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts user identity and roles set by Gateway and
// rejects requests without a user.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			utils.LogWarn("❌ [USER_CTX] X-User-ID missing on %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)

		utils.LogDebug("👤 [USER_CTX] UserID=%s, Roles=%v | Path: %s", userID, roles, c.Path())
		return c.Next()
	}
}

// RequireRole lets the request through when the caller holds any of roles.
// Must run after UserContextMiddleware.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		held, _ := c.Locals("user_roles").([]string)
		for _, h := range held {
			for _, r := range roles {
				if models.Role(h) == r {
					return c.Next()
				}
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient role",
		})
	}
}

// RequireStaff admits employees and admins.
func RequireStaff() fiber.Handler {
	return RequireRole(models.RoleEmployee, models.RoleAdmin)
}
