package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/oaserrors"
	"github.com/alexstrat/executable-openapi/resolver"
	"github.com/alexstrat/executable-openapi/schema"
)

const bodyDoc = `
openapi: 3.1.0
info: {title: body, version: '1'}
paths:
  /pets:
    post:
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name: {type: string}
                age: {type: integer, minimum: 0}
                tags: {type: array, items: {type: string}, default: []}
              additionalProperties: false
    put:
      requestBody:
        $ref: '#/components/requestBodies/Pet'
    get: {}
  /notes:
    post:
      requestBody:
        content:
          '*/*': {}
          text/*:
            schema: {type: string, maxLength: 3}
          text/plain:
            schema: {type: string, maxLength: 5}
  /empty:
    post:
      requestBody:
        content: {}
  /count:
    post:
      requestBody:
        content:
          application/json:
            schema: {type: integer}
components:
  requestBodies:
    Pet:
      required: true
      content:
        application/json:
          schema: {type: object, properties: {weight: {type: number}}}
`

func jsonBody(content any) *execution.Body {
	return &execution.Body{MediaType: "application/json", Content: content}
}

func TestRequestBody(t *testing.T) {
	run := newPipeline(t, bodyDoc, execution.HandlersMap{Default: echo}, Global(RequestBody()))

	send := func(path string, method execution.Method, body *execution.Body) (*execution.Response, error) {
		return run(&execution.Request{Path: path, Method: method, Body: body})
	}

	t.Run("valid body is coerced and completed", func(t *testing.T) {
		resp, err := send("/pets", execution.MethodPost, jsonBody(map[string]any{"name": "rex", "age": "3", "color": "red"}))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "rex", "age": int64(3), "tags": []any{}}, echoed(t, resp)["body"])
	})

	t.Run("missing required body", func(t *testing.T) {
		resp, err := send("/pets", execution.MethodPost, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"type": "invalid-requestBody", "message": "is missing"}, errorContent(t, resp))
	})

	t.Run("invalid body", func(t *testing.T) {
		resp, err := send("/pets", execution.MethodPost, jsonBody(map[string]any{"name": "rex", "age": -1}))
		require.NoError(t, err)
		assert.Equal(t, "/age must be >= 0", errorContent(t, resp)["message"])

		resp, err = send("/pets", execution.MethodPost, jsonBody(map[string]any{}))
		require.NoError(t, err)
		assert.Equal(t, "/ must have required property 'name'", errorContent(t, resp)["message"])
	})

	t.Run("scalar body", func(t *testing.T) {
		resp, err := send("/count", execution.MethodPost, jsonBody("12"))
		require.NoError(t, err)
		assert.Equal(t, int64(12), echoed(t, resp)["body"])

		resp, err = send("/count", execution.MethodPost, jsonBody("twelve"))
		require.NoError(t, err)
		assert.Equal(t, "/ must be integer", errorContent(t, resp)["message"])
	})

	t.Run("unacceptable media type", func(t *testing.T) {
		resp, err := send("/pets", execution.MethodPost, &execution.Body{MediaType: "text/plain", Content: "rex"})
		require.NoError(t, err)
		assert.Equal(t, "Media type text/plain is not acceptable", errorContent(t, resp)["message"])
	})

	t.Run("most specific media type", func(t *testing.T) {
		resp, err := send("/notes", execution.MethodPost, &execution.Body{MediaType: "text/plain", Content: "four"})
		require.NoError(t, err)
		assert.Equal(t, "four", echoed(t, resp)["body"], "text/plain schema applies over text/*")

		resp, err = send("/notes", execution.MethodPost, &execution.Body{MediaType: "text/csv", Content: "a,b,c,d"})
		require.NoError(t, err)
		assert.Equal(t, "/ must NOT have more than 3 characters", errorContent(t, resp)["message"])

		resp, err = send("/notes", execution.MethodPost, &execution.Body{MediaType: "image/png", Content: []byte{1}})
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, echoed(t, resp)["body"], "*/* declares no schema")
	})

	t.Run("optional body absent", func(t *testing.T) {
		resp, err := send("/notes", execution.MethodPost, nil)
		require.NoError(t, err)
		assert.Nil(t, echoed(t, resp)["body"])
	})

	t.Run("body discarded without declaration", func(t *testing.T) {
		for _, tc := range []struct {
			path   string
			method execution.Method
		}{{"/pets", execution.MethodGet}, {"/empty", execution.MethodPost}} {
			resp, err := send(tc.path, tc.method, jsonBody(map[string]any{"a": 1}))
			require.NoError(t, err)
			assert.Nil(t, echoed(t, resp)["body"], tc.path)
		}
	})

	t.Run("request body reference", func(t *testing.T) {
		resp, err := send("/pets", execution.MethodPut, jsonBody(map[string]any{"weight": "2.5"}))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"weight": 2.5}, echoed(t, resp)["body"])

		resp, err = send("/pets", execution.MethodPut, nil)
		require.NoError(t, err)
		assert.Equal(t, "is missing", errorContent(t, resp)["message"])
	})

	t.Run("unresolvable reference is fatal", func(t *testing.T) {
		broken := resolver.Func(func(context.Context, string) (any, error) {
			return nil, &oaserrors.ReferenceError{Ref: "#/components/requestBodies/Pet", Message: "reference not found"}
		})
		run := newPipeline(t, bodyDoc, execution.HandlersMap{Default: echo}, Global(RequestBody(WithResolver(broken))))
		_, err := run(&execution.Request{Path: "/pets", Method: execution.MethodPut, Body: jsonBody(map[string]any{})})
		assert.ErrorIs(t, err, oaserrors.ErrReference)
	})

	t.Run("strict compiler", func(t *testing.T) {
		run := newPipeline(t, bodyDoc, execution.HandlersMap{Default: echo}, Global(RequestBody(WithCompiler(schema.NewKinCompiler(nil)))))
		resp, err := run(&execution.Request{Path: "/pets", Method: execution.MethodPost, Body: jsonBody(map[string]any{"name": 3})})
		require.NoError(t, err)
		assert.Equal(t, 400, resp.Status)
	})
}
