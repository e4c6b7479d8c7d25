package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/prmsu-campus/presence-api/internal/utils"
)

// RequireRole rejects requests whose JWT role claim matches none of the
// allowed roles. It must run after JWTProtected.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("user_role").(string)
		if !ok || role == "" {
			return utils.SendError(c, fiber.StatusForbidden, "role claim missing")
		}
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
