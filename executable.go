package executableopenapi

import (
	"context"
	"fmt"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/middleware"
	"github.com/alexstrat/executable-openapi/oaserrors"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
	"github.com/alexstrat/executable-openapi/router"
	"github.com/alexstrat/executable-openapi/schema"
)

// Option configures an Executable.
type Option func(*config)

type config struct {
	resolver    resolver.Resolver
	compiler    schema.Compiler
	logger      parser.Logger
	outer       []middleware.Middleware
	middlewares []middleware.Middleware

	security    []middleware.SecurityOption
	pathParams  []middleware.ValidationOption
	queryParams []middleware.ValidationOption
	body        []middleware.ValidationOption
}

// WithResolver sets the resolver of document references, for the router and
// the validation middlewares. Default: resolver.NewLocal(doc)
func WithResolver(r resolver.Resolver) Option {
	return func(c *config) { c.resolver = r }
}

// WithCompiler sets the schema compiler of the validation middlewares.
// Default: schema.NewEngine with the document resolver
func WithCompiler(compiler schema.Compiler) Option {
	return func(c *config) { c.compiler = compiler }
}

// WithLogger sets the logger. Default: parser.NopLogger
func WithLogger(l parser.Logger) Option {
	return func(c *config) { c.logger = parser.OrNop(l) }
}

// WithMiddleware appends middlewares, run after the built-in ones in the
// order given.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *config) { c.middlewares = append(c.middlewares, mws...) }
}

// WithOuterMiddleware appends middlewares run before the built-in ones, in
// the order given. They see every request routed to an operation, including
// the ones the built-in middlewares reject.
func WithOuterMiddleware(mws ...middleware.Middleware) Option {
	return func(c *config) { c.outer = append(c.outer, mws...) }
}

// WithSecurityOptions configures the built-in security middleware.
func WithSecurityOptions(opts ...middleware.SecurityOption) Option {
	return func(c *config) { c.security = append(c.security, opts...) }
}

// WithPathParametersOptions configures the built-in path parameters
// middleware.
func WithPathParametersOptions(opts ...middleware.ValidationOption) Option {
	return func(c *config) { c.pathParams = append(c.pathParams, opts...) }
}

// WithQueryParametersOptions configures the built-in query parameters
// middleware.
func WithQueryParametersOptions(opts ...middleware.ValidationOption) Option {
	return func(c *config) { c.queryParams = append(c.queryParams, opts...) }
}

// WithRequestBodyOptions configures the built-in request body middleware.
func WithRequestBodyOptions(opts ...middleware.ValidationOption) Option {
	return func(c *config) { c.body = append(c.body, opts...) }
}

// Executable executes requests against the operations of a document. It is
// safe for concurrent use.
type Executable struct {
	doc    *parser.Document
	router *router.Router
}

// New returns an Executable serving doc with handlers. Every handler is
// wrapped by the middlewares given with WithOuterMiddleware, then by the
// security, path parameters, query parameters and request body middlewares,
// in that order, then by the middlewares given with WithMiddleware.
func New(doc *parser.Document, handlers execution.HandlersMap, opts ...Option) (*Executable, error) {
	if doc == nil {
		return nil, &oaserrors.ConfigError{Option: "document", Message: "document is required"}
	}
	cfg := &config{logger: parser.NopLogger{}}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.resolver == nil {
		cfg.resolver = resolver.NewLocal(doc)
	}

	shared := []middleware.ValidationOption{middleware.WithResolver(cfg.resolver)}
	if cfg.compiler != nil {
		shared = append(shared, middleware.WithCompiler(cfg.compiler))
	}
	validation := func(opts []middleware.ValidationOption) []middleware.ValidationOption {
		return append(append([]middleware.ValidationOption{}, shared...), opts...)
	}

	mws := append([]middleware.Middleware{}, cfg.outer...)
	mws = append(mws,
		middleware.Global(middleware.Security(cfg.security...)),
		middleware.Global(middleware.PathParameters(validation(cfg.pathParams)...)),
		middleware.Global(middleware.QueryParameters(validation(cfg.queryParams)...)),
		middleware.Global(middleware.RequestBody(validation(cfg.body)...)),
	)
	mws = append(mws, cfg.middlewares...)

	r, err := router.New(doc, middleware.Compose(handlers, mws...),
		router.WithResolver(cfg.resolver),
		router.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, err
	}

	cfg.logger.Debug("executable document ready",
		"source", doc.SourcePath,
		"paths", len(doc.Paths),
		"middlewares", len(mws),
	)
	return &Executable{doc: doc, router: r}, nil
}

// Load parses the document at path and returns an Executable serving it.
func Load(path string, handlers execution.HandlersMap, opts ...Option) (*Executable, error) {
	doc, err := parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return New(doc, handlers, opts...)
}

// Execute executes req. It returns a nil response, and no error, when req
// does not target an operation of the document. Request validation
// failures are responses; errors are reserved for configuration problems
// such as a missing handler, an unresolvable reference or an unsupported
// parameter style.
func (e *Executable) Execute(ctx context.Context, req *execution.Request) (*execution.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("executableopenapi: %w", &oaserrors.ConfigError{Option: "request", Message: "request is required"})
	}
	return e.router.Execute(ctx, req)
}

// Executor returns e as an execution.Executor.
func (e *Executable) Executor() execution.Executor {
	return e
}

// Document returns the executed document.
func (e *Executable) Document() *parser.Document {
	return e.doc
}

// Route returns the route of a request without executing it, or nil when
// the request does not target an operation.
func (e *Executable) Route(ctx context.Context, method execution.Method, path string) (*router.Route, error) {
	return e.router.Route(ctx, method, path)
}
