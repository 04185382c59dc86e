package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/oaserrors"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
)

const routerDoc = `
openapi: 3.1.0
info: {title: router, version: '1'}
paths:
  /user/{id}:
    get:
      operationId: getUser
      responses: {'200': {description: ok}}
    delete:
      responses: {'204': {description: deleted}}
  /user/none:
    get:
      operationId: getNobody
      responses: {'200': {description: ok}}
  /alias/{id}:
    $ref: '#/components/pathItems/Alias'
  /empty:
components:
  pathItems:
    Alias:
      post:
        operationId: createAlias
        responses: {'201': {description: created}}
`

func named(name string) execution.Handler {
	return func(_ context.Context, params execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error) {
		return &execution.Response{Status: 200, Content: map[string]any{
			"application/json": map[string]any{
				"handler": name,
				"path":    params.Path,
				"query":   params.Query,
				"body":    body,
				"route":   info.Path,
			},
		}}, nil
	}
}

func content(t *testing.T, resp *execution.Response) map[string]any {
	t.Helper()
	require.NotNil(t, resp)
	return resp.Content["application/json"].(map[string]any)
}

func newRouter(t *testing.T, handlers execution.HandlersMap, opts ...Option) *Router {
	t.Helper()
	doc, err := parser.Parse([]byte(routerDoc))
	require.NoError(t, err)
	r, err := New(doc, handlers, opts...)
	require.NoError(t, err)
	return r
}

func TestRouterExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("handler priority", func(t *testing.T) {
		r := newRouter(t, execution.HandlersMap{
			Paths:      map[string]map[execution.Method]execution.Handler{"/user/{id}": {execution.MethodGet: named("by-path")}},
			Operations: map[string]execution.Handler{"getUser": named("by-id"), "getNobody": named("nobody")},
			Default:    named("default"),
		})

		resp, err := r.Execute(ctx, &execution.Request{Path: "/user/3", Method: execution.MethodGet})
		require.NoError(t, err)
		assert.Equal(t, "by-path", content(t, resp)["handler"])

		resp, err = r.Execute(ctx, &execution.Request{Path: "/user/none", Method: "GET"})
		require.NoError(t, err)
		assert.Equal(t, "nobody", content(t, resp)["handler"])

		resp, err = r.Execute(ctx, &execution.Request{Path: "/user/3", Method: execution.MethodDelete})
		require.NoError(t, err)
		assert.Equal(t, "default", content(t, resp)["handler"])
	})

	t.Run("request is handed over", func(t *testing.T) {
		r := newRouter(t, execution.HandlersMap{Default: named("default")})
		resp, err := r.Execute(ctx, &execution.Request{
			Path:   "/user/3",
			Method: execution.MethodGet,
			Query:  map[string]string{"q": "x"},
			Body:   &execution.Body{MediaType: "text/plain", Content: "hi"},
		})
		require.NoError(t, err)
		c := content(t, resp)
		assert.Equal(t, map[string]any{"id": "3"}, c["path"])
		assert.Equal(t, map[string]any{"q": "x"}, c["query"])
		assert.Equal(t, "hi", c["body"])
		assert.Equal(t, "/user/{id}", c["route"])
	})

	t.Run("not in service", func(t *testing.T) {
		r := newRouter(t, execution.HandlersMap{Default: named("default")})
		for _, req := range []*execution.Request{
			{Path: "/nothing", Method: execution.MethodGet},
			{Path: "/user/none", Method: execution.MethodPost},
			{Path: "/user/3", Method: "CONNECT"},
			{Path: "/empty", Method: execution.MethodGet},
		} {
			resp, err := r.Execute(ctx, req)
			require.NoError(t, err, req.Path)
			assert.Nil(t, resp, req.Path)
		}
	})

	t.Run("path item reference", func(t *testing.T) {
		r := newRouter(t, execution.HandlersMap{Operations: map[string]execution.Handler{"createAlias": named("alias")}})
		resp, err := r.Execute(ctx, &execution.Request{Path: "/alias/9", Method: execution.MethodPost})
		require.NoError(t, err)
		assert.Equal(t, "alias", content(t, resp)["handler"])
	})

	t.Run("unresolvable path item", func(t *testing.T) {
		broken := resolver.Func(func(context.Context, string) (any, error) {
			return nil, &oaserrors.ReferenceError{Ref: "x", IsRemote: true}
		})
		r := newRouter(t, execution.HandlersMap{Default: named("default")}, WithResolver(broken))
		_, err := r.Execute(ctx, &execution.Request{Path: "/alias/9", Method: execution.MethodPost})
		assert.ErrorIs(t, err, oaserrors.ErrReference)
	})

	t.Run("no handler", func(t *testing.T) {
		r := newRouter(t, execution.HandlersMap{})
		_, err := r.Execute(ctx, &execution.Request{Path: "/user/3", Method: execution.MethodGet})
		require.Error(t, err)
		assert.ErrorIs(t, err, oaserrors.ErrNoHandler)
		assert.Equal(t, "no handler found for /user/{id}", err.Error())

		var noHandler *oaserrors.NoHandlerError
		require.ErrorAs(t, err, &noHandler)
		assert.Equal(t, "getUser", noHandler.OperationID)
	})
}

func TestRouterTemplates(t *testing.T) {
	r := newRouter(t, execution.HandlersMap{})
	templates := r.Templates()
	require.Len(t, templates, 4)
	assert.Equal(t, "/user/none", templates[0])
}

func TestNewRouterErrors(t *testing.T) {
	_, err := New(nil, execution.HandlersMap{})
	assert.ErrorIs(t, err, oaserrors.ErrConfig)

	doc := &parser.Document{OpenAPI: "3.1.0", Paths: parser.Paths{"/bad/{": {}}}
	_, err = New(doc, execution.HandlersMap{})
	assert.ErrorIs(t, err, oaserrors.ErrConfig)
}
