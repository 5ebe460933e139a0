package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/service"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/storage"
	"github.com/emoticonlab/kakao-emoticon-mcp/pkg/response"
)

// ArtifactHandler serves stored images, pages and archives.
type ArtifactHandler struct {
	artifacts storage.Store
	service   *service.EmoticonService
}

func NewArtifactHandler(artifacts storage.Store, svc *service.EmoticonService) *ArtifactHandler {
	return &ArtifactHandler{
		artifacts: artifacts,
		service:   svc,
	}
}

// Image handles GET /image/:id
func (h *ArtifactHandler) Image(c *fiber.Ctx) error {
	artifact, err := h.load(c, storage.KindImage, c.Params("id"))
	if err != nil || artifact == nil {
		return err
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return h.send(c, artifact)
}

// Preview handles GET /preview/:id
func (h *ArtifactHandler) Preview(c *fiber.Ctx) error {
	artifact, err := h.load(c, storage.KindPreview, c.Params("id"))
	if err != nil || artifact == nil {
		return err
	}
	return h.send(c, artifact)
}

// Download handles GET /download/:id
func (h *ArtifactHandler) Download(c *fiber.Ctx) error {
	id := c.Params("id")
	artifact, err := h.load(c, storage.KindZip, id)
	if err != nil || artifact == nil {
		return err
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="emoticons_%s.zip"`, id))
	return h.send(c, artifact)
}

// Status handles GET /status/:taskId. Pages missing from storage are
// rendered on demand while the task is retained.
func (h *ArtifactHandler) Status(c *fiber.Ctx) error {
	taskID := c.Params("taskId")

	artifact, err := h.artifacts.Get(c.UserContext(), storage.KindStatus, taskID)
	if err == nil {
		return h.send(c, artifact)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return response.ServiceError(c, err.Error())
	}

	page, err := h.service.StatusPage(taskID)
	if err != nil {
		return serviceError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(page)
}

// load writes the error response itself and then returns a nil artifact.
func (h *ArtifactHandler) load(c *fiber.Ctx, kind storage.Kind, id string) (*storage.Artifact, error) {
	if id == "" {
		return nil, response.ValidationError(c, "ID is required", nil)
	}

	artifact, err := h.artifacts.Get(c.UserContext(), kind, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, response.NotFound(c, fmt.Sprintf("%s not found or expired", kind))
		}
		return nil, response.ServiceError(c, err.Error())
	}
	return artifact, nil
}

func (h *ArtifactHandler) send(c *fiber.Ctx, artifact *storage.Artifact) error {
	c.Set(fiber.HeaderContentType, artifact.MIMEType)
	return c.Send(artifact.Data)
}
