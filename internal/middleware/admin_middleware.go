package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// SysAdminMiddleware admits only system administrators. It must run after
// AuthMiddleware.
func SysAdminMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := Claims(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		if !claims.SysAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Access denied: system administrator required",
			})
		}

		return c.Next()
	}
}
