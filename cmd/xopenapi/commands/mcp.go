package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alexstrat/executable-openapi/internal/config"
	"github.com/alexstrat/executable-openapi/internal/server"
	"github.com/alexstrat/executable-openapi/mcpadapter"
	"github.com/alexstrat/executable-openapi/parser"
)

func newMCPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp [document]",
		Short: "Expose the operations of a document as MCP tools on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing one tool per
operation of the document. Tool calls are validated and answered like HTTP
requests; the caller is granted every security scheme of the document.

Logs are written to stderr.

Example:
  xopenapi mcp openapi.yaml
  xopenapi mcp openapi.yaml --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveMCP(ctx, cfg, &mcp.StdioTransport{}, logger)
		},
	}
	cmd.Flags().Bool("watch", false, "reload the document when its file changes; tools are listed once")
	return cmd
}

// serveMCP serves the operations of cfg.Document as tools on transport
// until the session ends or ctx is done. Cancellation is not an error.
func serveMCP(ctx context.Context, cfg *config.Config, transport mcp.Transport, logger parser.Logger) error {
	app, err := server.NewApp(cfg.Document, logger)
	if err != nil {
		return err
	}
	doc := app.Document()
	srv, err := mcpadapter.NewServer(doc, app,
		mcpadapter.WithLogger(logger),
		mcpadapter.WithSecurities(server.Grants(doc)),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)
	if cfg.Watch.Enabled {
		eg.Go(func() error { return app.Watch(ctx, cfg.Watch.Debounce) })
	}
	eg.Go(func() error {
		defer cancel()
		return srv.Run(ctx, transport)
	})
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
