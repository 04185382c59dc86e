package middleware

import (
	"context"
	"sync"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
	"github.com/alexstrat/executable-openapi/schema"
)

// ErrorFormatter turns a request validation error into a response. err is
// an *oaserrors.ParameterError for parameter middlewares and an
// *oaserrors.RequestBodyError for RequestBody.
type ErrorFormatter func(ctx context.Context, err error, info *execution.OperationInfo) (*execution.Response, error)

// ValidationOption configures PathParameters, QueryParameters and
// RequestBody.
type ValidationOption func(*validationConfig)

type validationConfig struct {
	resolver   resolver.Resolver
	compiler   schema.Compiler
	engineOpts []schema.Option
	formatter  ErrorFormatter
}

// WithResolver sets the resolver used for references found in the
// document. The default resolves local references of the executed document.
func WithResolver(r resolver.Resolver) ValidationOption {
	return func(c *validationConfig) {
		c.resolver = r
	}
}

// WithCompiler replaces the default schema engine.
func WithCompiler(compiler schema.Compiler) ValidationOption {
	return func(c *validationConfig) {
		c.compiler = compiler
	}
}

// WithEngineOptions configures the default schema engine, to register
// formats for example. Ignored when WithCompiler is set.
func WithEngineOptions(opts ...schema.Option) ValidationOption {
	return func(c *validationConfig) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}

// WithErrorFormatter replaces the default 400 responses.
func WithErrorFormatter(f ErrorFormatter) ValidationOption {
	return func(c *validationConfig) {
		c.formatter = f
	}
}

// validator holds the per-document state of a validation middleware.
type validator struct {
	cfg    validationConfig
	states sync.Map // *parser.Document -> *docState
}

type docState struct {
	refs    *resolver.Typed
	schemas *schema.Adapter
}

func newValidator(opts []ValidationOption, formatter ErrorFormatter) *validator {
	v := &validator{cfg: validationConfig{formatter: formatter}}
	for _, opt := range opts {
		opt(&v.cfg)
	}
	return v
}

func (v *validator) state(doc *parser.Document) *docState {
	if st, ok := v.states.Load(doc); ok {
		return st.(*docState)
	}

	r := v.cfg.resolver
	if r == nil {
		r = resolver.NewLocal(doc)
	}
	compiler := v.cfg.compiler
	if compiler == nil {
		opts := append([]schema.Option{schema.WithResolver(r)}, v.cfg.engineOpts...)
		compiler = schema.NewEngine(opts...)
	}

	st, _ := v.states.LoadOrStore(doc, &docState{
		refs:    resolver.NewTyped(r),
		schemas: schema.NewAdapter(compiler),
	})
	return st.(*docState)
}

func (v *validator) fail(ctx context.Context, err error, info *execution.OperationInfo) (*execution.Response, error) {
	return v.cfg.formatter(ctx, err, info)
}
