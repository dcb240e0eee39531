package middleware

import (
	"carbonmarket-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the global error handler. Returns the standard error envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return response.FromError(c, err)
}
