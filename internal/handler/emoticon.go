package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/service"
	"github.com/emoticonlab/kakao-emoticon-mcp/pkg/response"
)

type EmoticonHandler struct {
	service   *service.EmoticonService
	validator *validator.Validate
}

func NewEmoticonHandler(svc *service.EmoticonService, v *validator.Validate) *EmoticonHandler {
	return &EmoticonHandler{
		service:   svc,
		validator: v,
	}
}

// Specs handles GET /api/specs
func (h *EmoticonHandler) Specs(c *fiber.Ctx) error {
	return response.OK(c, h.service.Specs())
}

// Spec handles GET /api/specs/:type
func (h *EmoticonHandler) Spec(c *fiber.Ctx) error {
	info, err := h.service.Spec(c.Params("type"))
	if err != nil {
		return serviceError(c, err)
	}
	return response.OK(c, info)
}

// Check handles POST /api/check
func (h *EmoticonHandler) Check(c *fiber.Ctx) error {
	var req model.CheckRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Check(c.UserContext(), &req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// BeforePreview handles POST /api/preview/before
func (h *EmoticonHandler) BeforePreview(c *fiber.Ctx) error {
	var req model.BeforePreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.BeforePreview(c.UserContext(), &req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// AfterPreview handles POST /api/preview/after
func (h *EmoticonHandler) AfterPreview(c *fiber.Ctx) error {
	var req model.AfterPreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.AfterPreview(c.UserContext(), &req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// Generate handles POST /api/generate
func (h *EmoticonHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	ctx := service.WithToken(c.UserContext(), bearerToken(c))
	result, err := h.service.Generate(ctx, &req)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, result)
}

// Tasks handles GET /api/tasks
func (h *EmoticonHandler) Tasks(c *fiber.Ctx) error {
	tasks := h.service.Tasks()
	return response.OK(c, fiber.Map{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// Task handles GET /api/tasks/:taskId
func (h *EmoticonHandler) Task(c *fiber.Ctx) error {
	taskID := c.Params("taskId")
	if taskID == "" {
		return response.ValidationError(c, "Task ID is required", nil)
	}

	result, err := h.service.TaskStatus(taskID)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}
