package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/links"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/mcp"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/service"
)

// MCPHandler exposes the JSON-RPC endpoint over HTTP.
type MCPHandler struct {
	server *mcp.Server
	links  links.Builder
}

func NewMCPHandler(server *mcp.Server, builder links.Builder) *MCPHandler {
	return &MCPHandler{
		server: server,
		links:  builder,
	}
}

// Handle handles POST /mcp and POST /. The Authorization bearer token is
// passed to the tools as the caller's generation token.
func (h *MCPHandler) Handle(c *fiber.Ctx) error {
	ctx := service.WithToken(c.UserContext(), bearerToken(c))

	resp := h.server.HandleMessage(ctx, c.Body())
	if resp == nil {
		return c.SendStatus(fiber.StatusAccepted)
	}
	return c.JSON(resp)
}

// Metadata handles GET /.well-known/mcp
func (h *MCPHandler) Metadata(c *fiber.Ctx) error {
	return c.JSON(mcp.Metadata(h.links.MCPEndpoint()))
}
