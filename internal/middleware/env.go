package middleware

import (
	"carbonmarket-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Env exposes the running environment to handlers and the error envelope.
func Env(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(response.EnvLocal, name)
		return c.Next()
	}
}
