package httpadapter

import (
	"context"
	"net/http"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/parser"
)

// DefaultMaxBodySize is the request body size limit when none is configured.
const DefaultMaxBodySize int64 = 10 << 20

// RequestIDHeader carries the execution request ID, in both directions.
const RequestIDHeader = "X-Request-Id"

// ContextFunc derives the execution context from an incoming request.
type ContextFunc func(r *http.Request) (context.Context, error)

// SecuritySchemeFunc authenticates an incoming request against one security
// scheme of the document. An error aborts the request with a 500.
type SecuritySchemeFunc func(ctx context.Context, r *http.Request) (execution.Security, error)

// Formatter renders the content of a response in one media type.
type Formatter func(content any, resp *execution.Response, r *http.Request) ([]byte, error)

// Option configures a Handler.
type Option func(*Handler)

// WithContext sets the function deriving the execution context. Default:
// the request context.
func WithContext(fn ContextFunc) Option {
	return func(h *Handler) { h.contextFn = fn }
}

// WithSecurityScheme registers the authentication function of a security
// scheme. Scheme functions run concurrently for every request.
func WithSecurityScheme(name string, fn SecuritySchemeFunc) Option {
	return func(h *Handler) { h.schemes[name] = fn }
}

// WithFormatter registers the formatter of a media type, replacing the
// default one if any.
func WithFormatter(mediaType string, f Formatter) Option {
	return func(h *Handler) { h.formatters[mediaType] = f }
}

// WithNext sets the handler serving requests outside of the document.
// Default: http.NotFoundHandler()
func WithNext(next http.Handler) Option {
	return func(h *Handler) { h.next = next }
}

// WithLogger sets the logger. Default: parser.NopLogger
func WithLogger(l parser.Logger) Option {
	return func(h *Handler) { h.logger = parser.OrNop(l) }
}

// WithMaxBodySize limits the size of request bodies. Default:
// DefaultMaxBodySize
func WithMaxBodySize(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodySize = n
		}
	}
}
