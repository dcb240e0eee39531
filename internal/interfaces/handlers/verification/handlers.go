package verification

import (
	versvc "carbonmarket-backend/internal/application/verification"
	"carbonmarket-backend/internal/interfaces/handlers/request"
	"carbonmarket-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *versvc.Service
}

type verifyBody struct {
	VerifierAddress string `json:"verifierAddress"`
}

// Verify POST /api/v1/projects/:id/verify
func (h *Handlers) Verify(c *fiber.Ctx) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body verifyBody
	if err := request.Bind(c, &body); err != nil {
		return response.FromError(c, err)
	}
	out, err := h.Service.Verify(c.Context(), id, body.VerifierAddress)
	if err != nil {
		return response.FromError(c, err)
	}
	message := "Project rejected"
	if out.Credit != nil {
		message = "Project verified and credits minted"
	}
	return response.Success(c, message, out)
}

// History GET /api/v1/projects/:id/verifications
func (h *Handlers) History(c *fiber.Ctx) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	items, err := h.Service.History(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", items)
}
