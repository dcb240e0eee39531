package projects

import (
	projsvc "carbonmarket-backend/internal/application/projects"
	"carbonmarket-backend/internal/interfaces/handlers/request"
	"carbonmarket-backend/internal/pkg/response"
	"carbonmarket-backend/internal/repository"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *projsvc.Service
}

// Register POST /api/v1/projects
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req projsvc.RegisterRequest
	if err := request.Bind(c, &req); err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Register(c.Context(), req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Project registered", p)
}

// Get GET /api/v1/projects/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	p, err := h.Service.Get(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", p)
}

// List GET /api/v1/projects?ownerAddress=&status=
func (h *Handlers) List(c *fiber.Ctx) error {
	items, err := h.Service.List(c.Context(), repository.ProjectFilter{
		OwnerAddress: request.Query(c, "ownerAddress"),
		Status:       request.Query(c, "status"),
		Page:         request.Page(c),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", items)
}
