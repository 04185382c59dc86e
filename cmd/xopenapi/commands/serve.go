package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	executableopenapi "github.com/alexstrat/executable-openapi"
	"github.com/alexstrat/executable-openapi/internal/config"
	"github.com/alexstrat/executable-openapi/internal/server"
	"github.com/alexstrat/executable-openapi/middleware"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/telemetry"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [document]",
		Short: "Serve a document over HTTP",
		Long: `Serve the operations of an OpenAPI document over HTTP.

Operations answer with the response they declare for the lowest success
status code, filled from the examples and schemas of the document. Clients
pick another response with the Prefer header, e.g. "Prefer: code=404".

Security schemes of the document are granted whenever the credential they
declare is present; the config file can restrict them to known tokens.

Example:
  xopenapi serve openapi.yaml
  xopenapi serve openapi.yaml --addr :9000 --watch
  xopenapi serve openapi.yaml --nats-url nats://localhost:4222`,
		Args: cobra.MaximumNArgs(1),
		RunE: runServe,
	}

	d := config.Default()
	cmd.Flags().String("addr", d.Server.Addr, "address to listen on")
	cmd.Flags().Bool("watch", d.Watch.Enabled, "reload the document when its file changes")
	cmd.Flags().Bool("metrics", d.Metrics.Enabled, "serve Prometheus metrics on "+d.Metrics.Path)
	cmd.Flags().String("nats-url", "", "also serve requests received from this NATS server")
	cmd.Flags().String("nats-subject", d.NATS.Subject, "NATS subject to serve")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
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

	ls, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Server.Addr, err)
	}
	return serve(ctx, cfg, ls, logger)
}

// serve serves cfg.Document on ls, and on NATS when configured, until ctx
// is done.
func serve(ctx context.Context, cfg *config.Config, ls net.Listener, logger parser.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := telemetry.Prometheus(reg)
	if err != nil {
		_ = ls.Close()
		return err
	}

	app, err := server.NewApp(cfg.Document, logger,
		executableopenapi.WithOuterMiddleware(
			middleware.Global(telemetry.Tracing(nil)),
			middleware.Global(metrics),
		),
	)
	if err != nil {
		_ = ls.Close()
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return server.ServeHTTP(ctx, ls, server.NewHandler(app, cfg, reg, logger), cfg.Server, logger)
	})
	if cfg.Watch.Enabled {
		eg.Go(func() error { return app.Watch(ctx, cfg.Watch.Debounce) })
	}
	if cfg.NATS.URL != "" {
		eg.Go(func() error { return server.ServeNATS(ctx, app, cfg.NATS, logger) })
	}
	return eg.Wait()
}
