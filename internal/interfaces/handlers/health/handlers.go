package health

import (
	"context"
	"time"

	healthsvc "carbonmarket-backend/internal/application/health"
	"carbonmarket-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers holds dependencies for health endpoints.
type Handlers struct {
	Service        *healthsvc.Service
	HealthAdminKey string
}

func timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// Reset clears health stats in Redis. Requires query key=HEALTH_ADMIN_KEY.
func (h *Handlers) Reset(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" || key != h.HealthAdminKey {
		return response.Error(c, "Unauthorized", fiber.StatusForbidden)
	}
	ctx, cancel := timeout()
	defer cancel()
	if err := h.Service.Reset(ctx); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Stats reset successfully", nil)
}

// JSON returns the health report.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	ctx, cancel := timeout()
	defer cancel()
	return c.JSON(h.Service.Collect(ctx))
}

// Errors returns the last logged server errors.
func (h *Handlers) Errors(c *fiber.Ctx) error {
	ctx, cancel := timeout()
	defer cancel()
	entries, err := h.Service.Errors(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON([]interface{}{})
	}
	return c.JSON(entries)
}
