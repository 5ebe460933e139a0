package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/app"
)

// NewStdioCmd creates the stdio command
func NewStdioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Serve MCP over stdin/stdout",
		Long: `Serve the MCP tools as newline-delimited JSON-RPC on stdin/stdout, for
clients that launch the server as a subprocess.

Preview, download and status links point at BASE_URL. Unless --http=false,
the HTTP server is started alongside so those links resolve. Logs go to
stderr.`,
		RunE: runStdio,
	}
	cmd.Flags().Bool("http", true, "also serve artifacts over HTTP")
	return cmd
}

func runStdio(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.NewContainer(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer c.Close()

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	withHTTP, _ := cmd.Flags().GetBool("http")
	if withHTTP {
		go func() {
			if err := app.Serve(serveCtx, c); err != nil {
				logrus.WithError(err).Warn("HTTP server unavailable, artifact links will not resolve")
			}
		}()
	} else {
		c.Start(serveCtx)
	}

	return c.MCP.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}
