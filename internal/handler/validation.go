package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/service"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/spec"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/validation"
	"github.com/emoticonlab/kakao-emoticon-mcp/pkg/response"
)

func formatValidationErrors(err error) interface{} {
	if details := validation.Details(err); details != nil {
		return details
	}
	return nil
}

// bearerToken returns the caller's token from the Authorization header. The
// value outlives the request, so it must not alias fiber's header buffer.
func bearerToken(c *fiber.Ctx) string {
	return utils.CopyString(service.BearerToken(c.Get(fiber.HeaderAuthorization)))
}

// serviceError maps service errors onto the response envelope.
func serviceError(c *fiber.Ctx, err error) error {
	var unknown *spec.UnknownTypeError
	switch {
	case errors.As(err, &unknown):
		return response.ValidationError(c, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidImage):
		return response.ValidationError(c, err.Error(), nil)
	case errors.Is(err, service.ErrMissingToken):
		return response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrTaskNotFound):
		return response.NotFound(c, "Task not found")
	default:
		return response.ServiceError(c, err.Error())
	}
}
