package response

import (
	"errors"

	"carbonmarket-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Body is the envelope every JSON endpoint answers with.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// EnvLocal holds the running environment name; set by middleware.Env.
const EnvLocal = "app_env"

// ErrorLocal holds the cause of the last server error written by FromError.
const ErrorLocal = "server_error"

const internalMessage = "Internal Server Error"

// Success sends a 200 OK response.
func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Body{Success: true, Data: data, Message: message})
}

// SuccessCreated sends a 201 Created response.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Body{Success: true, Data: data, Message: message})
}

// Error sends a failure envelope with the given status.
func Error(c *fiber.Ctx, message string, statusCode int) error {
	return c.Status(statusCode).JSON(Body{Success: false, Error: message})
}

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrInsufficientCollateral),
		errors.Is(err, domain.ErrNotEligible):
		return fiber.StatusBadRequest
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// FromError writes err as an envelope. Server errors hide their cause in
// production.
func FromError(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	if code < fiber.StatusInternalServerError {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return Error(c, fe.Message, code)
		}
		return Error(c, domain.Message(err), code)
	}
	log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
	c.Locals(ErrorLocal, err.Error())
	if env, _ := c.Locals(EnvLocal).(string); env == "production" {
		return Error(c, internalMessage, code)
	}
	return Error(c, err.Error(), code)
}
