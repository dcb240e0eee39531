package credits

import (
	credsvc "carbonmarket-backend/internal/application/credits"
	"carbonmarket-backend/internal/interfaces/handlers/request"
	"carbonmarket-backend/internal/pkg/response"
	"carbonmarket-backend/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *credsvc.Service
}

type retireBody struct {
	OwnerAddress string          `json:"ownerAddress"`
	Amount       decimal.Decimal `json:"amount"`
}

// List GET /api/v1/credits?ownerAddress=&projectId=
func (h *Handlers) List(c *fiber.Ctx) error {
	items, err := h.Service.List(c.Context(), repository.CreditFilter{
		OwnerAddress: request.Query(c, "ownerAddress"),
		ProjectID:    uint(c.QueryInt("projectId", 0)),
		Page:         request.Page(c),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", items)
}

// Get GET /api/v1/credits/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	credit, err := h.Service.Get(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", credit)
}

// Retire POST /api/v1/credits/:id/retire
func (h *Handlers) Retire(c *fiber.Ctx) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body retireBody
	if err := request.Bind(c, &body); err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.Retire(c.Context(), id, body.OwnerAddress, body.Amount)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Credits retired", out)
}
