// Package request holds the parsing helpers shared by the HTTP handlers.
package request

import (
	"encoding/json"
	"strconv"
	"strings"

	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// ID reads a positive integer path parameter.
func ID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, domain.Validation("invalid %s: %q", name, raw)
	}
	return uint(id), nil
}

// Page reads limit and offset query parameters. Bad values fall back to the
// repository defaults.
func Page(c *fiber.Ctx) repository.Page {
	return repository.Page{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}.Normalize()
}

// Bind decodes the JSON body into dst.
func Bind(c *fiber.Ctx, dst interface{}) error {
	body := c.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return domain.Validation("request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return domain.Validation("Invalid request body")
	}
	return nil
}

// Query returns a trimmed query parameter.
func Query(c *fiber.Ctx, name string) string {
	return strings.TrimSpace(c.Query(name))
}
