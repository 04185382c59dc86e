// Package executiontest provides utilities for testing executable
// documents: a request builder and an agent executing built requests.
//
//	agent := executiontest.NewAgent(exe)
//	resp := agent.Expect(t, executiontest.NewRequest().
//		Post("/pets").
//		SendJSON(map[string]any{"name": "rex"}).
//		Auth("apiKey"), 201)
package executiontest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexstrat/executable-openapi/execution"
)

// ErrEmptyRequest is returned by Build when no method was set.
var ErrEmptyRequest = errors.New("executiontest: empty request: call Get, Post... first")

// RequestBuilder builds execution requests.
type RequestBuilder struct {
	req execution.Request
}

// NewRequest returns an empty builder.
func NewRequest() *RequestBuilder {
	return &RequestBuilder{}
}

func (b *RequestBuilder) target(method execution.Method, path string) *RequestBuilder {
	b.req.Method = method
	b.req.Path = path
	return b
}

// Get targets a GET on path.
func (b *RequestBuilder) Get(path string) *RequestBuilder { return b.target(execution.MethodGet, path) }

// Put targets a PUT on path.
func (b *RequestBuilder) Put(path string) *RequestBuilder { return b.target(execution.MethodPut, path) }

// Post targets a POST on path.
func (b *RequestBuilder) Post(path string) *RequestBuilder {
	return b.target(execution.MethodPost, path)
}

// Delete targets a DELETE on path.
func (b *RequestBuilder) Delete(path string) *RequestBuilder {
	return b.target(execution.MethodDelete, path)
}

// Options targets an OPTIONS on path.
func (b *RequestBuilder) Options(path string) *RequestBuilder {
	return b.target(execution.MethodOptions, path)
}

// Head targets a HEAD on path.
func (b *RequestBuilder) Head(path string) *RequestBuilder {
	return b.target(execution.MethodHead, path)
}

// Patch targets a PATCH on path.
func (b *RequestBuilder) Patch(path string) *RequestBuilder {
	return b.target(execution.MethodPatch, path)
}

// Trace targets a TRACE on path.
func (b *RequestBuilder) Trace(path string) *RequestBuilder {
	return b.target(execution.MethodTrace, path)
}

// ID sets the request ID.
func (b *RequestBuilder) ID(id string) *RequestBuilder {
	b.req.ID = id
	return b
}

// Query sets a query parameter.
func (b *RequestBuilder) Query(name, value string) *RequestBuilder {
	if b.req.Query == nil {
		b.req.Query = make(map[string]string)
	}
	b.req.Query[name] = value
	return b
}

// Header sets a header. Names are lower-cased.
func (b *RequestBuilder) Header(name, value string) *RequestBuilder {
	if b.req.Headers == nil {
		b.req.Headers = make(map[string]string)
	}
	b.req.Headers[strings.ToLower(name)] = value
	return b
}

// Send sets the body.
func (b *RequestBuilder) Send(mediaType string, content any) *RequestBuilder {
	b.req.Body = &execution.Body{MediaType: mediaType, Content: content}
	return b
}

// SendJSON sets an application/json body.
func (b *RequestBuilder) SendJSON(content any) *RequestBuilder {
	return b.Send("application/json", content)
}

// Auth marks the request as authenticated against scheme with scopes.
func (b *RequestBuilder) Auth(scheme string, scopes ...string) *RequestBuilder {
	return b.Security(scheme, execution.Granted(scopes...))
}

// Security sets the outcome of authenticating against scheme.
func (b *RequestBuilder) Security(scheme string, security execution.Security) *RequestBuilder {
	if b.req.Securities == nil {
		b.req.Securities = make(map[string]execution.Security)
	}
	b.req.Securities[scheme] = security
	return b
}

// Build returns the request. The builder can be reused: later calls do not
// affect requests already built.
func (b *RequestBuilder) Build() (*execution.Request, error) {
	if b.req.Method == "" || b.req.Path == "" {
		return nil, ErrEmptyRequest
	}
	req := b.req
	req.Query = clone(b.req.Query)
	req.Headers = clone(b.req.Headers)
	req.Securities = clone(b.req.Securities)
	if b.req.Body != nil {
		body := *b.req.Body
		req.Body = &body
	}
	return &req, nil
}

func clone[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Agent executes built requests.
type Agent struct {
	executor execution.Executor
}

// NewAgent returns an agent executing requests with executor.
func NewAgent(executor execution.Executor) *Agent {
	return &Agent{executor: executor}
}

// Do builds and executes the request of b.
func (a *Agent) Do(ctx context.Context, b *RequestBuilder) (*execution.Response, error) {
	req, err := b.Build()
	if err != nil {
		return nil, err
	}
	return a.executor.Execute(ctx, req)
}

// Expect executes the request of b and fails t unless it is answered with
// status.
func (a *Agent) Expect(t testing.TB, b *RequestBuilder, status int) *execution.Response {
	t.Helper()
	resp, err := a.Do(context.Background(), b)
	require.NoError(t, err)
	require.NotNil(t, resp, "expected a response with status %d, got no response", status)
	require.Equal(t, status, resp.Status, "unexpected status")
	return resp
}

// ExpectNotFound executes the request of b and fails t unless it does not
// target an operation.
func (a *Agent) ExpectNotFound(t testing.TB, b *RequestBuilder) {
	t.Helper()
	resp, err := a.Do(context.Background(), b)
	require.NoError(t, err)
	require.Nil(t, resp, "expected no response")
}
