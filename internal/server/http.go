package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexstrat/executable-openapi/httpadapter"
	"github.com/alexstrat/executable-openapi/internal/config"
	"github.com/alexstrat/executable-openapi/parser"
)

// HealthPath serves the health of the server. It shadows any operation
// of the document on the same path.
const HealthPath = "/healthz"

// NewHandler returns the HTTP handler of app: the health endpoint, the
// metrics of gatherer when enabled, and the operations of the document on
// every other path.
func NewHandler(app *App, cfg *config.Config, gatherer prometheus.Gatherer, logger parser.Logger) http.Handler {
	logger = parser.OrNop(logger)

	r := chi.NewMux()
	r.Use(middleware.RequestID, forwardRequestID, middleware.RealIP, middleware.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	}

	r.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		doc := app.Document()
		health := map[string]any{"status": "ok", "paths": len(doc.Paths)}
		if doc.Info != nil {
			health["title"] = doc.Info.Title
			health["version"] = doc.Info.Version
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Warn("writing health", "error", err)
		}
	})
	if cfg.Metrics.Enabled && gatherer != nil {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	}

	operations := &adapters{app: app, build: func(doc *parser.Document) http.Handler {
		opts := SecuritySchemes(doc, cfg.Security.Schemes)
		opts = append(opts,
			httpadapter.WithLogger(logger),
			httpadapter.WithMaxBodySize(cfg.Server.MaxBodySize),
		)
		return httpadapter.New(app, opts...)
	}}
	r.NotFound(operations.ServeHTTP)
	r.MethodNotAllowed(operations.ServeHTTP)
	return r
}

// forwardRequestID sets the request ID header from the ID middleware.RequestID
// assigned, so that executions share it.
func forwardRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(httpadapter.RequestIDHeader) == "" {
			if id := middleware.GetReqID(r.Context()); id != "" {
				r.Header.Set(httpadapter.RequestIDHeader, id)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// adapters serves requests with an httpadapter built for the current
// document of app, rebuilt when a reload changes it.
type adapters struct {
	app   *App
	build func(*parser.Document) http.Handler

	mu      sync.Mutex
	doc     *parser.Document
	handler http.Handler
}

func (a *adapters) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	doc := a.app.Document()
	a.mu.Lock()
	if a.doc != doc {
		a.doc, a.handler = doc, a.build(doc)
	}
	h := a.handler
	a.mu.Unlock()
	h.ServeHTTP(w, r)
}
