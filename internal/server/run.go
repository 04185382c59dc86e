package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	executableopenapi "github.com/alexstrat/executable-openapi"
	"github.com/alexstrat/executable-openapi/internal/config"
	"github.com/alexstrat/executable-openapi/natsadapter"
	"github.com/alexstrat/executable-openapi/parser"
)

// ServeHTTP serves h on ls until ctx is done, then shuts the server down,
// waiting up to cfg.ShutdownTimeout for requests in flight.
func ServeHTTP(ctx context.Context, ls net.Listener, h http.Handler, cfg config.ServerConfig, logger parser.Logger) error {
	logger = parser.OrNop(logger)
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	if sa, ok := logger.(*parser.SlogAdapter); ok {
		srv.ErrorLog = slog.NewLogLogger(sa.Slog().Handler(), slog.LevelError)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info("serving http", "addr", ls.Addr().String())
		return srv.Serve(ls)
	})
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("shutting down http server")

		shutdownCtx := context.Background()
		if cfg.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(shutdownCtx, cfg.ShutdownTimeout)
			defer cancel()
		}
		return srv.Shutdown(shutdownCtx)
	})

	err := eg.Wait()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ServeNATS connects to cfg.URL and serves app on cfg.Subject until ctx is
// done.
func ServeNATS(ctx context.Context, app *App, cfg config.NATSConfig, logger parser.Logger) error {
	logger = parser.OrNop(logger)
	nc, err := nats.Connect(cfg.URL,
		nats.Name("xopenapi/"+executableopenapi.Version()),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to nats %s: %w", cfg.URL, err)
	}
	defer nc.Close()

	opts := []natsadapter.Option{natsadapter.WithLogger(logger), natsadapter.WithTimeout(cfg.Timeout)}
	if cfg.Queue != "" {
		opts = append(opts, natsadapter.WithQueueGroup(cfg.Queue))
	}
	return natsadapter.Serve(ctx, nc, cfg.Subject, app, opts...)
}
