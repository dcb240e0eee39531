package middleware

import (
	"strconv"
	"time"

	"carbonmarket-backend/internal/metrics"

	"github.com/gofiber/fiber/v2"
)

// Metrics records request counts and latency by route template.
func Metrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := statusOf(c, err)
		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}
		m.ObserveRequest(c.Method(), route, strconv.Itoa(status), time.Since(start).Seconds())
		return err
	}
}
