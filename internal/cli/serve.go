// Package cli holds the emoticon-mcp subcommands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/app"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/config"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/logging"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP server exposing the MCP endpoint (POST /mcp), the REST API,
generated artifacts (images, previews, ZIP downloads, status pages) and the
task progress WebSocket.

With TASK_DISPATCHER=asynq, generation tasks are queued on Redis and consumed
by a worker running in the same process.

The server runs until interrupted with Ctrl+C.`,
		RunE: runServe,
	}
	cmd.Flags().String("port", "", "listen port (overrides PORT)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.NewContainer(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer c.Close()

	return app.Serve(ctx, c)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.Server.LogLevel, cfg.Server.LogFormat)
	return cfg, nil
}
