// Package mcpadapter exposes the operations of an executable OpenAPI document
// as MCP (Model Context Protocol) tools.
//
// Every operation becomes one tool. Its name is the operationId, or
// "<method>_<path>" with the path reduced to letters, digits and
// underscores. The tool input is an object with up to three properties:
//
//	{"path": {...}, "query": {...}, "body": ...}
//
// whose schemas are derived from the parameters and request body of the
// operation. Calling the tool executes a request against the executor and
// returns the execution response as JSON. Responses with a status of 400 or
// more are flagged as tool errors.
//
// Tool calls do not carry credentials: the securities handed to every
// request are the ones set with [WithSecurities].
package mcpadapter

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	executableopenapi "github.com/alexstrat/executable-openapi"
	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/oaserrors"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
)

// Option configures NewServer.
type Option func(*config)

type config struct {
	name         string
	version      string
	instructions string
	logger       parser.Logger
	resolver     resolver.Resolver
	securities   map[string]execution.Security
}

// WithName sets the implementation name announced to clients.
// Default: the document title, or "executable-openapi"
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithVersion sets the implementation version announced to clients.
// Default: the document version, or the library version
func WithVersion(version string) Option {
	return func(c *config) { c.version = version }
}

// WithInstructions sets the instructions announced to clients.
// Default: the document description
func WithInstructions(instructions string) Option {
	return func(c *config) { c.instructions = instructions }
}

// WithLogger sets the logger. Default: parser.NopLogger
func WithLogger(l parser.Logger) Option {
	return func(c *config) { c.logger = parser.OrNop(l) }
}

// WithResolver sets the resolver used to read the parameters and request
// bodies of the document. Default: resolver.NewLocal(doc)
func WithResolver(r resolver.Resolver) Option {
	return func(c *config) { c.resolver = r }
}

// WithSecurities sets the securities of every request executed by a tool
// call.
func WithSecurities(securities map[string]execution.Security) Option {
	return func(c *config) { c.securities = securities }
}

// NewServer returns an MCP server with one tool per operation of doc.
// Tools execute requests with executor, typically the Executable built for
// the same document.
func NewServer(doc *parser.Document, executor execution.Executor, opts ...Option) (*mcp.Server, error) {
	if doc == nil {
		return nil, &oaserrors.ConfigError{Option: "document", Message: "document is required"}
	}
	if executor == nil {
		return nil, &oaserrors.ConfigError{Option: "executor", Message: "executor is required"}
	}
	cfg := &config{logger: parser.NopLogger{}}
	if doc.Info != nil {
		cfg.name = doc.Info.Title
		cfg.version = doc.Info.Version
		cfg.instructions = doc.Info.Description
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.name == "" {
		cfg.name = "executable-openapi"
	}
	if cfg.version == "" {
		cfg.version = executableopenapi.Version()
	}
	if cfg.resolver == nil {
		cfg.resolver = resolver.NewLocal(doc)
	}

	tools, err := Tools(context.Background(), doc, resolver.NewTyped(cfg.resolver))
	if err != nil {
		return nil, fmt.Errorf("mcpadapter: %w", err)
	}

	server := mcp.NewServer(
		&mcp.Implementation{Name: cfg.name, Version: cfg.version},
		&mcp.ServerOptions{Instructions: cfg.instructions},
	)
	for _, tool := range tools {
		server.AddTool(tool.Tool, tool.handler(executor, cfg))
	}
	cfg.logger.Debug("mcp tools registered", "count", len(tools))
	return server, nil
}
