package documents

import (
	"io"

	docsvc "carbonmarket-backend/internal/application/documents"
	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/interfaces/handlers/request"
	"carbonmarket-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *docsvc.Service
}

// Upload POST /api/v1/projects/:id/documents (multipart: file, uploaderAddress)
func (h *Handlers) Upload(c *fiber.Ctx) error {
	projectID, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return response.FromError(c, domain.Validation("file is required"))
	}
	f, err := fh.Open()
	if err != nil {
		log.Error().Err(err).Str("file_name", fh.Filename).Msg("documents: open upload")
		return response.FromError(c, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return response.FromError(c, err)
	}

	doc, err := h.Service.Upload(c.Context(), docsvc.UploadRequest{
		ProjectID:       projectID,
		UploaderAddress: c.FormValue("uploaderAddress"),
		FileName:        fh.Filename,
		ContentType:     fh.Header.Get("Content-Type"),
		Data:            data,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Document uploaded", doc)
}

// List GET /api/v1/projects/:id/documents
func (h *Handlers) List(c *fiber.Ctx) error {
	projectID, err := request.ID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	items, err := h.Service.List(c.Context(), projectID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", items)
}
