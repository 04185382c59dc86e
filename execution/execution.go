// Package execution defines the transport-agnostic records exchanged between
// an executable OpenAPI document and its callers: requests, responses,
// handlers and the handlers map.
package execution

import (
	"context"
	"strings"

	"github.com/alexstrat/executable-openapi/internal/httputil"
	"github.com/alexstrat/executable-openapi/parser"
)

// Method is a lower-case HTTP method as used for path item keys.
type Method string

// HTTP methods an operation can be declared for.
const (
	MethodGet     Method = httputil.MethodGet
	MethodPut     Method = httputil.MethodPut
	MethodPost    Method = httputil.MethodPost
	MethodDelete  Method = httputil.MethodDelete
	MethodOptions Method = httputil.MethodOptions
	MethodHead    Method = httputil.MethodHead
	MethodPatch   Method = httputil.MethodPatch
	MethodTrace   Method = httputil.MethodTrace
)

// ParseMethod returns the Method for s, in any case.
func ParseMethod(s string) (Method, bool) {
	lower := strings.ToLower(s)
	for _, m := range httputil.Methods {
		if m == lower {
			return Method(m), true
		}
	}
	return "", false
}

// String returns the method in lower case.
func (m Method) String() string {
	return string(m)
}

// Request is a request to execute an operation. It mirrors an HTTP request
// that has already been authenticated.
type Request struct {
	// ID identifies the request in logs and traces (optional)
	ID string `json:"id,omitempty"`
	// Path is the requested path, without query string
	Path string `json:"path"`
	// Method is the requested method
	Method Method `json:"method"`
	// Query holds one value per query parameter
	Query map[string]string `json:"query,omitempty"`
	// Headers holds one value per header, names in lower case
	Headers map[string]string `json:"headers,omitempty"`
	// Body is nil when the request has no body
	Body *Body `json:"body,omitempty"`
	// Securities lists the security schemes the request was authenticated
	// against
	Securities map[string]Security `json:"securities,omitempty"`
}

// Body is a request body and its media type.
type Body struct {
	MediaType string `json:"mediaType"`
	Content   any    `json:"content"`
}

// Security is the outcome of authenticating a request against one security
// scheme. The zero value means "not authenticated".
type Security struct {
	Granted bool     `json:"granted"`
	Scopes  []string `json:"scopes,omitempty"`
}

// Granted returns a Security granted with scopes.
func Granted(scopes ...string) Security {
	return Security{Granted: true, Scopes: scopes}
}

// Response is the result of executing an operation.
type Response struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	// Content holds the response body once per media type the operation can
	// produce. Content negotiation is left to the transport.
	Content map[string]any `json:"content,omitempty"`
}

// JSON returns a response with a single application/json content.
func JSON(status int, content any) *Response {
	return &Response{Status: status, Content: map[string]any{"application/json": content}}
}

// Parameters holds the path and query parameters handed to handlers. A
// missing key means the parameter was not sent.
type Parameters struct {
	Path  map[string]any `json:"path,omitempty"`
	Query map[string]any `json:"query,omitempty"`
}

// OperationInfo describes the operation being executed.
type OperationInfo struct {
	Request   *Request
	Document  *parser.Document
	Operation *parser.Operation
	// PathItem is the path item of the operation, references resolved
	PathItem *parser.PathItem
	// Path is the matched path template
	Path   string
	Method Method
}

// Handler executes an operation. body is nil when the request has no body.
type Handler func(ctx context.Context, params Parameters, body any, info *OperationInfo) (*Response, error)

// HandlersMap registers the handlers of a document. Lookup order is
// Paths[template][method], then Operations[operationId], then Default.
type HandlersMap struct {
	Paths      map[string]map[Method]Handler
	Operations map[string]Handler
	Default    Handler
}

// Executor executes requests. A nil response with a nil error means the
// request does not target an operation of the document.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req *Request) (*Response, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
