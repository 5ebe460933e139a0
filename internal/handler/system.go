package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/mcp"
)

// SystemHandler serves the root and health endpoints.
type SystemHandler struct {
	services map[string]bool
}

// NewSystemHandler takes the availability of optional backends, reported
// by /health.
func NewSystemHandler(services map[string]bool) *SystemHandler {
	return &SystemHandler{services: services}
}

// Root handles GET /
func (h *SystemHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":        mcp.ServerName,
		"description": "KakaoTalk emoticon production MCP server",
		"version":     mcp.ServerVersion,
		"timestamp":   time.Now().Unix(),
		"endpoints": fiber.Map{
			"mcp":       "/mcp",
			"health":    "/health",
			"specs":     "/api/specs",
			"tasks":     "/api/tasks/{task_id}",
			"preview":   "/preview/{preview_id}",
			"download":  "/download/{download_id}",
			"status":    "/status/{task_id}",
			"websocket": "/ws/tasks/{task_id}",
		},
	})
}

// Health handles GET /health
func (h *SystemHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"service":  mcp.ServerName,
		"services": h.services,
	})
}
