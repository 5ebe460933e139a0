package app

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/handler"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/logging"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/middleware"
	"github.com/emoticonlab/kakao-emoticon-mcp/pkg/response"
)

const shutdownTimeout = 10 * time.Second

// BuildApp registers every HTTP route on a new fiber app.
func BuildApp(c *Container) *fiber.App {
	cfg := c.Config

	bodyLimit := cfg.Server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 50
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		BodyLimit:             bodyLimit * 1024 * 1024,
		DisableStartupMessage: true,
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "${status} - ${latency} ${method} ${path} ${queryParams} ${ua}\n"
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
		Output: logging.Writer(),
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization,Mcp-Session-Id",
		ExposeHeaders: "X-RateLimit-Limit,X-RateLimit-Remaining,Retry-After",
	}))

	systemHandler := handler.NewSystemHandler(c.Services())
	mcpHandler := handler.NewMCPHandler(c.MCP, c.Links)
	emoticonHandler := handler.NewEmoticonHandler(c.Service, c.Validator)
	artifactHandler := handler.NewArtifactHandler(c.Artifacts, c.Service)

	rateLimiter := middleware.NewRateLimiter(c.Redis)
	mcpLimit := rateLimiter.MCPLimit(cfg.RateLimit.MCPPerMin)

	// Base routes
	app.Get("/", systemHandler.Root)
	app.Get("/health", systemHandler.Health)
	app.Get("/.well-known/mcp", mcpHandler.Metadata)

	// MCP JSON-RPC
	app.Post("/mcp", mcpLimit, mcpHandler.Handle)
	app.Post("/", mcpLimit, mcpHandler.Handle)

	// REST API
	api := app.Group("/api")
	api.Get("/specs", emoticonHandler.Specs)
	api.Get("/specs/:type", emoticonHandler.Spec)
	api.Post("/check", rateLimiter.CheckLimit(cfg.RateLimit.CheckPerMin), emoticonHandler.Check)
	api.Post("/preview/before", emoticonHandler.BeforePreview)
	api.Post("/preview/after", emoticonHandler.AfterPreview)
	api.Post("/generate", rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour), emoticonHandler.Generate)
	api.Get("/tasks", emoticonHandler.Tasks)
	api.Get("/tasks/:taskId", emoticonHandler.Task)

	// Artifacts
	app.Get("/image/:id", artifactHandler.Image)
	app.Get("/preview/:id", artifactHandler.Preview)
	app.Get("/download/:id", artifactHandler.Download)
	app.Get("/status/:taskId", artifactHandler.Status)

	// WebSocket routes
	app.Use("/ws", handler.RequireUpgrade)
	app.Get("/ws/tasks/:taskId", handler.TaskSocket(c.Hub))

	return app
}

// Serve runs the HTTP server, the WebSocket hub and the queue worker until
// ctx is cancelled, then drains in-flight generation tasks.
func Serve(ctx context.Context, c *Container) error {
	app := BuildApp(c)

	c.Start(ctx)

	go func() {
		<-ctx.Done()
		logrus.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logrus.WithError(err).Error("server shutdown error")
		}
	}()

	addr := net.JoinHostPort(c.Config.Server.Host, c.Config.Server.Port)
	logrus.WithFields(logrus.Fields{
		"addr":     addr,
		"base_url": c.Config.Server.BaseURL,
	}).Info("Server starting")

	err := app.Listen(addr)
	c.Orchestrator.Wait()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	errCode := response.CodeServiceError
	switch code {
	case fiber.StatusNotFound:
		errCode = response.CodeNotFound
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge, fiber.StatusUpgradeRequired:
		errCode = response.CodeValidationError
	}

	return response.Error(c, code, errCode, message, nil)
}
