package executableopenapi

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/middleware"
	"github.com/alexstrat/executable-openapi/oaserrors"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/schema"
)

const petstore = `
openapi: 3.1.0
info: {title: petstore, version: '1'}
paths:
  /user/{id}:
    parameters:
      - name: id
        in: path
        required: true
        schema: {type: integer, minimum: 1}
    get:
      operationId: getUser
      parameters:
        - name: important
          in: query
          required: true
        - name: isFoo
          in: query
          allowEmptyValue: true
          schema: {type: boolean}
    patch:
      operationId: patchUser
      parameters:
        - name: id
          in: path
          required: true
          schema: {type: integer, minimum: 3}
  /user/none:
    get:
      operationId: getNobody
  /both:
    get:
      operationId: both
      security:
        - Basic: []
          Bearer: []
  /either:
    get:
      operationId: either
      security:
        - Basic: []
        - Bearer: []
  /notes:
    post:
      operationId: postNote
      requestBody:
        content:
          text/*:
            schema: {type: string}
  /json:
    post:
      operationId: postJSON
      requestBody:
        content:
          application/json:
            schema: {type: object}
  /unhandled:
    get:
      operationId: unhandled
`

func echo(name string) execution.Handler {
	return func(_ context.Context, params execution.Parameters, body any, _ *execution.OperationInfo) (*execution.Response, error) {
		return execution.JSON(200, map[string]any{
			"handler": name,
			"path":    params.Path,
			"query":   params.Query,
			"body":    body,
		}), nil
	}
}

func handlers() execution.HandlersMap {
	ops := map[string]execution.Handler{}
	for _, id := range []string{"getUser", "patchUser", "getNobody", "both", "either", "postNote", "postJSON"} {
		ops[id] = echo(id)
	}
	return execution.HandlersMap{Operations: ops}
}

func newExecutable(t *testing.T, opts ...Option) *Executable {
	t.Helper()
	doc, err := parser.Parse([]byte(petstore))
	require.NoError(t, err)
	exe, err := New(doc, handlers(), opts...)
	require.NoError(t, err)
	return exe
}

func jsonContent(t *testing.T, resp *execution.Response) map[string]any {
	t.Helper()
	require.NotNil(t, resp)
	return resp.Content["application/json"].(map[string]any)
}

// =============================================================================
// Pipeline
// =============================================================================

func TestExecuteRouting(t *testing.T) {
	exe := newExecutable(t)
	ctx := context.Background()

	t.Run("most concrete template wins", func(t *testing.T) {
		resp, err := exe.Execute(ctx, &execution.Request{Path: "/user/none", Method: execution.MethodGet})
		require.NoError(t, err)
		assert.Equal(t, "getNobody", jsonContent(t, resp)["handler"])
	})

	t.Run("not in service", func(t *testing.T) {
		resp, err := exe.Execute(ctx, &execution.Request{Path: "/nowhere", Method: execution.MethodGet})
		require.NoError(t, err)
		assert.Nil(t, resp)
	})

	t.Run("missing handler is fatal", func(t *testing.T) {
		_, err := exe.Execute(ctx, &execution.Request{Path: "/unhandled", Method: execution.MethodGet})
		assert.ErrorIs(t, err, oaserrors.ErrNoHandler)
	})

	t.Run("nil request", func(t *testing.T) {
		_, err := exe.Execute(ctx, nil)
		assert.ErrorIs(t, err, oaserrors.ErrConfig)
	})

	t.Run("route lookup", func(t *testing.T) {
		route, err := exe.Route(ctx, execution.MethodPatch, "/user/9")
		require.NoError(t, err)
		require.NotNil(t, route)
		assert.Equal(t, "/user/{id}", route.Template)
		assert.Equal(t, "patchUser", route.Operation.OperationID)
	})
}

func TestExecuteParameters(t *testing.T) {
	exe := newExecutable(t)
	ctx := context.Background()
	get := func(path string, query map[string]string) *execution.Response {
		resp, err := exe.Execute(ctx, &execution.Request{Path: path, Method: execution.MethodGet, Query: query})
		require.NoError(t, err)
		require.NotNil(t, resp)
		return resp
	}

	t.Run("path parameter coercion", func(t *testing.T) {
		resp := get("/user/5", map[string]string{"important": "yes"})
		assert.Equal(t, 200, resp.Status)
		assert.Equal(t, int64(5), jsonContent(t, resp)["path"].(map[string]any)["id"])

		resp = get("/user/a", map[string]string{"important": "yes"})
		assert.Equal(t, 400, resp.Status)
		assert.Equal(t, map[string]any{"in": "path", "name": "id", "message": "must be integer"}, jsonContent(t, resp))

		resp = get("/user/0", map[string]string{"important": "yes"})
		assert.Equal(t, 400, resp.Status)
		assert.Equal(t, "must be >= 1", jsonContent(t, resp)["message"])
	})

	t.Run("required query parameter", func(t *testing.T) {
		resp := get("/user/5", nil)
		assert.Equal(t, 400, resp.Status)
		assert.Equal(t, map[string]any{"in": "query", "name": "important", "message": "is required"}, jsonContent(t, resp))
	})

	t.Run("allow empty value", func(t *testing.T) {
		resp := get("/user/5", map[string]string{"important": "yes", "isFoo": ""})
		assert.Equal(t, true, jsonContent(t, resp)["query"].(map[string]any)["isFoo"])

		resp = get("/user/5", map[string]string{"important": "yes"})
		assert.NotContains(t, jsonContent(t, resp)["query"], "isFoo")
	})

	t.Run("operation parameter overrides path item parameter", func(t *testing.T) {
		resp, err := exe.Execute(ctx, &execution.Request{Path: "/user/2", Method: execution.MethodPatch})
		require.NoError(t, err)
		assert.Equal(t, 400, resp.Status)
		assert.Equal(t, "must be >= 3", jsonContent(t, resp)["message"])
	})

	t.Run("idempotent", func(t *testing.T) {
		req := &execution.Request{Path: "/user/5", Method: execution.MethodGet, Query: map[string]string{"important": "yes"}}
		first, err := exe.Execute(ctx, req)
		require.NoError(t, err)
		second, err := exe.Execute(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestExecuteSecurity(t *testing.T) {
	exe := newExecutable(t)
	basic := map[string]execution.Security{"Basic": execution.Granted()}
	bearer := map[string]execution.Security{"Bearer": execution.Granted()}
	both := map[string]execution.Security{"Basic": execution.Granted(), "Bearer": execution.Granted()}

	tests := []struct {
		path       string
		securities map[string]execution.Security
		status     int
	}{
		{"/both", both, 200},
		{"/both", basic, 403},
		{"/both", nil, 403},
		{"/either", basic, 200},
		{"/either", bearer, 200},
		{"/either", nil, 403},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := exe.Execute(context.Background(), &execution.Request{Path: tt.path, Method: execution.MethodGet, Securities: tt.securities})
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.Status)
		})
	}
}

func TestExecuteRequestBody(t *testing.T) {
	exe := newExecutable(t)
	ctx := context.Background()

	resp, err := exe.Execute(ctx, &execution.Request{
		Path: "/notes", Method: execution.MethodPost,
		Body: &execution.Body{MediaType: "text/plain", Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "hello", jsonContent(t, resp)["body"])

	resp, err = exe.Execute(ctx, &execution.Request{
		Path: "/json", Method: execution.MethodPost,
		Body: &execution.Body{MediaType: "text/plain", Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, 400, resp.Status)
	assert.Equal(t, map[string]any{
		"type":    "invalid-requestBody",
		"message": "Media type text/plain is not acceptable",
	}, jsonContent(t, resp))
}

// =============================================================================
// Options
// =============================================================================

func TestUserMiddlewares(t *testing.T) {
	var trace []string
	record := func(name string) middleware.Func {
		return func(ctx context.Context, next execution.Handler, params execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error) {
			trace = append(trace, name+"-before")
			resp, err := next(ctx, params, body, info)
			trace = append(trace, name+"-after")
			return resp, err
		}
	}

	exe := newExecutable(t, WithMiddleware(middleware.Global(record("A")), middleware.Global(record("B"))))

	t.Run("order", func(t *testing.T) {
		trace = nil
		resp, err := exe.Execute(context.Background(), &execution.Request{Path: "/user/none", Method: execution.MethodGet})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Status)
		assert.Equal(t, []string{"A-before", "B-before", "B-after", "A-after"}, trace)
	})

	t.Run("user middlewares see validated values", func(t *testing.T) {
		var seen any
		peek := func(ctx context.Context, next execution.Handler, params execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error) {
			seen = params.Path["id"]
			return next(ctx, params, body, info)
		}
		exe := newExecutable(t, WithMiddleware(middleware.ByOperationID(map[string]middleware.Func{"patchUser": peek})))
		_, err := exe.Execute(context.Background(), &execution.Request{Path: "/user/7", Method: execution.MethodPatch})
		require.NoError(t, err)
		assert.Equal(t, int64(7), seen)
	})

	t.Run("user middlewares are not reached by rejected requests", func(t *testing.T) {
		trace = nil
		resp, err := exe.Execute(context.Background(), &execution.Request{Path: "/user/0", Method: execution.MethodGet})
		require.NoError(t, err)
		assert.Equal(t, 400, resp.Status)
		assert.Empty(t, trace)
	})

	t.Run("outer middlewares see rejected requests", func(t *testing.T) {
		var statuses []int
		observe := func(ctx context.Context, next execution.Handler, params execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error) {
			assert.IsType(t, "", params.Path["id"])
			resp, err := next(ctx, params, body, info)
			if resp != nil {
				statuses = append(statuses, resp.Status)
			}
			return resp, err
		}
		exe := newExecutable(t, WithOuterMiddleware(middleware.Global(observe)))
		for _, path := range []string{"/user/0", "/user/5"} {
			_, err := exe.Execute(context.Background(), &execution.Request{Path: path, Method: execution.MethodPatch})
			require.NoError(t, err)
		}
		assert.Equal(t, []int{400, 200}, statuses)
	})
}

func TestMiddlewareOptions(t *testing.T) {
	ctx := context.Background()

	t.Run("security", func(t *testing.T) {
		exe := newExecutable(t, WithSecurityOptions(middleware.WithForbiddenResponse(
			func(context.Context, map[string]string, execution.Parameters, any, *execution.OperationInfo) (*execution.Response, error) {
				return &execution.Response{Status: 401}, nil
			})))
		resp, err := exe.Execute(ctx, &execution.Request{Path: "/both", Method: execution.MethodGet})
		require.NoError(t, err)
		assert.Equal(t, 401, resp.Status)
	})

	t.Run("parameter error formatter", func(t *testing.T) {
		exe := newExecutable(t, WithQueryParametersOptions(middleware.WithErrorFormatter(
			func(_ context.Context, err error, _ *execution.OperationInfo) (*execution.Response, error) {
				return execution.JSON(422, err.Error()), nil
			})))
		resp, err := exe.Execute(ctx, &execution.Request{Path: "/user/1", Method: execution.MethodGet})
		require.NoError(t, err)
		assert.Equal(t, 422, resp.Status)
		assert.Equal(t, "query parameter important is not valid: is required", resp.Content["application/json"])
	})

	t.Run("compiler", func(t *testing.T) {
		exe := newExecutable(t, WithCompiler(schema.NewEngine(schema.WithCoercion(false))))
		resp, err := exe.Execute(ctx, &execution.Request{Path: "/user/5", Method: execution.MethodGet, Query: map[string]string{"important": "x"}})
		require.NoError(t, err)
		assert.Equal(t, 400, resp.Status)
		assert.Equal(t, "must be integer", jsonContent(t, resp)["message"])
	})
}

func TestNewAndLoad(t *testing.T) {
	_, err := New(nil, execution.HandlersMap{})
	assert.ErrorIs(t, err, oaserrors.ErrConfig)

	path := filepath.Join(t.TempDir(), "openapi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(petstore), 0o600))
	exe, err := Load(path, handlers())
	require.NoError(t, err)
	assert.Equal(t, path, exe.Document().SourcePath)
	assert.NotNil(t, exe.Executor())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), handlers())
	assert.ErrorIs(t, err, oaserrors.ErrParse)
}
