// Package router routes execution requests to the operations of an OpenAPI
// document and to the handlers registered for them.
//
// Routing happens in three steps:
//
//  1. the request path is matched against the path templates; when several
//     templates match, the most concrete one wins (see [CompareConcreteness])
//     and declaration order breaks ties;
//  2. the path item of the template is resolved, following $ref, and the
//     operation of the request method is looked up;
//  3. a handler is chosen: the one registered for the template and method,
//     else the one registered for the operationId, else the default handler.
//
// A request that does not reach an operation is not an error: Execute
// returns a nil response. An operation without a handler is a configuration
// error and is returned as an [oaserrors.NoHandlerError].
package router

import (
	"context"
	"fmt"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/oaserrors"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
)

// Option configures a Router.
type Option func(*config)

type config struct {
	resolver resolver.Resolver
	logger   parser.Logger
}

// WithResolver sets the resolver used for path item references.
// Default: resolver.NewLocal(doc)
func WithResolver(r resolver.Resolver) Option {
	return func(c *config) { c.resolver = r }
}

// WithLogger sets the logger. Default: parser.NopLogger
func WithLogger(l parser.Logger) Option {
	return func(c *config) { c.logger = parser.OrNop(l) }
}

// Router executes requests against the handlers of a document.
type Router struct {
	doc      *parser.Document
	handlers execution.HandlersMap
	matchers *PathMatcherSet
	refs     *resolver.Typed
	logger   parser.Logger
}

// New builds a Router for doc. It fails when a path template is malformed.
func New(doc *parser.Document, handlers execution.HandlersMap, opts ...Option) (*Router, error) {
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

	matchers, err := NewPathMatcherSet(doc.PathTemplates())
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	return &Router{
		doc:      doc,
		handlers: handlers,
		matchers: matchers,
		refs:     resolver.NewTyped(cfg.resolver),
		logger:   cfg.logger,
	}, nil
}

// Route is an operation a request was routed to.
type Route struct {
	// Template is the matched path template
	Template string
	// Bindings holds the path variables extracted from the request path
	Bindings  map[string]string
	PathItem  *parser.PathItem
	Operation *parser.Operation
	Method    execution.Method
}

// Route finds the operation targeted by method and path. It returns nil
// when no template matches or the path item has no such operation.
func (r *Router) Route(ctx context.Context, method execution.Method, path string) (*Route, error) {
	m, ok := execution.ParseMethod(string(method))
	if !ok {
		return nil, nil
	}
	template, bindings, found := r.matchers.Match(path)
	if !found {
		return nil, nil
	}

	item, err := r.refs.PathItem(ctx, r.doc.Paths[template])
	if err != nil {
		return nil, fmt.Errorf("router: resolving path item %s: %w", template, err)
	}
	op := item.Operation(string(m))
	if op == nil {
		return nil, nil
	}
	return &Route{Template: template, Bindings: bindings, PathItem: item, Operation: op, Method: m}, nil
}

// Execute implements execution.Executor.
func (r *Router) Execute(ctx context.Context, req *execution.Request) (*execution.Response, error) {
	route, err := r.Route(ctx, req.Method, req.Path)
	if err != nil || route == nil {
		return nil, err
	}

	handler, err := ResolveHandler(r.handlers, route.Template, route.Method, route.Operation)
	if err != nil {
		r.logger.Warn("no handler for operation",
			"path", route.Template,
			"method", string(route.Method),
			"operationId", route.Operation.OperationID,
		)
		return nil, err
	}
	r.logger.Debug("routing request",
		"requestId", req.ID,
		"path", route.Template,
		"method", string(route.Method),
		"operationId", route.Operation.OperationID,
	)

	params := execution.Parameters{
		Path:  make(map[string]any, len(route.Bindings)),
		Query: make(map[string]any, len(req.Query)),
	}
	for name, value := range route.Bindings {
		params.Path[name] = value
	}
	for name, value := range req.Query {
		params.Query[name] = value
	}
	var body any
	if req.Body != nil {
		body = req.Body.Content
	}

	info := &execution.OperationInfo{
		Request:   req,
		Document:  r.doc,
		Operation: route.Operation,
		PathItem:  route.PathItem,
		Path:      route.Template,
		Method:    route.Method,
	}
	return handler(ctx, params, body, info)
}

// Templates returns the path templates, most concrete first.
func (r *Router) Templates() []string {
	return r.matchers.Templates()
}

// ResolveHandler picks the handler of an operation: by template and
// method, then by operationId, then the default handler.
func ResolveHandler(handlers execution.HandlersMap, template string, method execution.Method, op *parser.Operation) (execution.Handler, error) {
	if h := handlers.Paths[template][method]; h != nil {
		return h, nil
	}
	if op != nil && op.OperationID != "" {
		if h := handlers.Operations[op.OperationID]; h != nil {
			return h, nil
		}
	}
	if handlers.Default != nil {
		return handlers.Default, nil
	}
	noHandler := &oaserrors.NoHandlerError{Path: template, Method: string(method)}
	if op != nil {
		noHandler.OperationID = op.OperationID
	}
	return nil, noHandler
}
