package activity

import (
	actsvc "carbonmarket-backend/internal/application/activity"
	"carbonmarket-backend/internal/interfaces/handlers/request"
	"carbonmarket-backend/internal/pkg/response"
	"carbonmarket-backend/internal/repository"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *actsvc.Service
}

// List GET /api/v1/activities?userAddress=&actionType=
func (h *Handlers) List(c *fiber.Ctx) error {
	items, err := h.Service.List(c.Context(), repository.ActivityFilter{
		UserAddress: request.Query(c, "userAddress"),
		ActionType:  request.Query(c, "actionType"),
		Page:        request.Page(c),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", items)
}
