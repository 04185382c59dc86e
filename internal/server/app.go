// Package server assembles the xopenapi server: an executable document
// answered by the mock handler, served over HTTP and NATS, and reloaded when
// the document file changes.
package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	executableopenapi "github.com/alexstrat/executable-openapi"
	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/mock"
	"github.com/alexstrat/executable-openapi/parser"
)

// App executes the document at a path. Requests are answered by the
// document loaded last: Reload swaps it without interrupting requests in
// flight.
type App struct {
	path   string
	logger parser.Logger
	opts   []executableopenapi.Option

	mu      sync.Mutex // serializes reloads
	current atomic.Pointer[executableopenapi.Executable]
}

var _ execution.Executor = (*App)(nil)

// NewApp loads the document at path. Operations are answered by the mock
// handler; opts are passed to every executable built.
func NewApp(path string, logger parser.Logger, opts ...executableopenapi.Option) (*App, error) {
	logger = parser.OrNop(logger)
	a := &App{
		path:   path,
		logger: logger,
		opts:   append([]executableopenapi.Option{executableopenapi.WithLogger(logger)}, opts...),
	}
	exe, err := a.load()
	if err != nil {
		return nil, err
	}
	a.current.Store(exe)
	return a, nil
}

func (a *App) load() (*executableopenapi.Executable, error) {
	doc, err := parser.ParseWithOptions(parser.WithFilePath(a.path), parser.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", a.path, err)
	}
	handlers := execution.HandlersMap{Default: mock.Handler(mock.WithLogger(a.logger))}
	exe, err := executableopenapi.New(doc, handlers, a.opts...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", a.path, err)
	}
	return exe, nil
}

// Path returns the document path.
func (a *App) Path() string {
	return a.path
}

// Document returns the current document.
func (a *App) Document() *parser.Document {
	return a.current.Load().Document()
}

// Execute implements execution.Executor with the current document.
func (a *App) Execute(ctx context.Context, req *execution.Request) (*execution.Response, error) {
	return a.current.Load().Execute(ctx, req)
}

// Reload loads the document again. On failure the current document keeps
// being served.
func (a *App) Reload() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	exe, err := a.load()
	if err != nil {
		return err
	}
	a.current.Store(exe)
	a.logger.Info("document reloaded", "path", a.path, "paths", len(exe.Document().Paths))
	return nil
}
