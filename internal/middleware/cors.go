package middleware

import (
	"strings"

	"carbonmarket-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig holds the exact origins allowed to call the API. "*" allows any.
type CORSConfig struct {
	AllowedOrigins []string
	AllowLocalhost bool
}

// CORS returns a Fiber handler that echoes allowed origins back and answers
// preflight requests.
func CORS(cfg CORSConfig) fiber.Handler {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	wildcard := false
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
		allowed[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	return func(c *fiber.Ctx) error {
		origin := c.Get("Origin")
		// No origin (e.g. same-origin or tools): allow
		if origin == "" {
			return c.Next()
		}
		ok := wildcard || allowed[strings.TrimRight(strings.ToLower(origin), "/")]
		if !ok && cfg.AllowLocalhost {
			ok = strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")
		}
		if !ok {
			return response.Error(c, "Not allowed by CORS", fiber.StatusForbidden)
		}
		setCORSHeaders(c, origin)
		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

func setCORSHeaders(c *fiber.Ctx, origin string) {
	c.Set("Access-Control-Allow-Origin", origin)
	c.Set("Access-Control-Allow-Credentials", "true")
	c.Set("Access-Control-Allow-Headers", "Content-Type, X-Trace-Id")
	c.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Set("Vary", "Origin")
}
