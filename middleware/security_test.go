package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/parser"
)

func TestEvaluateSecurity(t *testing.T) {
	tests := []struct {
		name         string
		requirements []parser.SecurityRequirement
		securities   map[string]execution.Security
		ok           bool
		results      map[string]string
	}{
		{
			name: "no requirement",
			ok:   true,
		},
		{
			name:         "declared empty",
			requirements: []parser.SecurityRequirement{},
			ok:           true,
		},
		{
			name:         "empty set makes security optional",
			requirements: []parser.SecurityRequirement{{"key": nil}, {}},
			ok:           true,
			results:      map[string]string{"key": ReasonNotAuthorized},
		},
		{
			name:         "granted scheme",
			requirements: []parser.SecurityRequirement{{"key": nil}},
			securities:   map[string]execution.Security{"key": execution.Granted()},
			ok:           true,
		},
		{
			name:         "unknown scheme",
			requirements: []parser.SecurityRequirement{{"key": nil}},
			ok:           false,
			results:      map[string]string{"key": ReasonNotAuthorized},
		},
		{
			name:         "denied scheme",
			requirements: []parser.SecurityRequirement{{"key": nil}},
			securities:   map[string]execution.Security{"key": {}},
			ok:           false,
			results:      map[string]string{"key": ReasonNotAuthorized},
		},
		{
			name:         "missing scopes",
			requirements: []parser.SecurityRequirement{{"oauth": {"read", "write", "admin"}}},
			securities:   map[string]execution.Security{"oauth": execution.Granted("write")},
			ok:           false,
			results:      map[string]string{"oauth": "required scopes are missing: read,admin"},
		},
		{
			name:         "scopes granted",
			requirements: []parser.SecurityRequirement{{"oauth": {"read"}}},
			securities:   map[string]execution.Security{"oauth": execution.Granted("write", "read")},
			ok:           true,
		},
		{
			name:         "and within a set",
			requirements: []parser.SecurityRequirement{{"a": nil, "b": nil}},
			securities:   map[string]execution.Security{"a": execution.Granted()},
			ok:           false,
			results:      map[string]string{"b": ReasonNotAuthorized},
		},
		{
			name:         "or across sets",
			requirements: []parser.SecurityRequirement{{"a": nil, "b": nil}, {"c": nil}},
			securities:   map[string]execution.Security{"c": execution.Granted()},
			ok:           true,
			results:      map[string]string{"a": ReasonNotAuthorized},
		},
		{
			name:         "reasons accumulate across sets",
			requirements: []parser.SecurityRequirement{{"a": nil}, {"c": {"x"}}},
			securities:   map[string]execution.Security{"c": execution.Granted()},
			ok:           false,
			results:      map[string]string{"a": ReasonNotAuthorized, "c": "required scopes are missing: x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, results := EvaluateSecurity(tt.requirements, tt.securities)
			assert.Equal(t, tt.ok, ok)
			if tt.results == nil {
				assert.Empty(t, results)
				return
			}
			assert.Equal(t, tt.results, results)
		})
	}
}

const securityDoc = `
openapi: 3.1.0
info: {title: security, version: '1'}
security:
  - apiKey: []
paths:
  /private:
    get: {}
  /public:
    get:
      security: []
  /admin:
    get:
      security:
        - oauth: [admin]
        - apiKey: []
          basic: []
`

func TestSecurityMiddleware(t *testing.T) {
	run := newPipeline(t, securityDoc, execution.HandlersMap{Default: echo}, Global(Security()))

	tests := []struct {
		name       string
		path       string
		securities map[string]execution.Security
		status     int
	}{
		{"document requirement met", "/private", map[string]execution.Security{"apiKey": execution.Granted()}, 200},
		{"document requirement not met", "/private", nil, 403},
		{"operation opts out", "/public", nil, 200},
		{"operation overrides document", "/admin", map[string]execution.Security{"apiKey": execution.Granted()}, 403},
		{"first alternative", "/admin", map[string]execution.Security{"oauth": execution.Granted("admin")}, 200},
		{"second alternative", "/admin", map[string]execution.Security{"apiKey": execution.Granted(), "basic": execution.Granted()}, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := run(&execution.Request{Path: tt.path, Method: execution.MethodGet, Securities: tt.securities})
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.Status)
			if tt.status == 403 {
				assert.Empty(t, resp.Content)
			}
		})
	}

	t.Run("custom forbidden response", func(t *testing.T) {
		var got map[string]string
		forbidden := func(_ context.Context, results map[string]string, _ execution.Parameters, _ any, info *execution.OperationInfo) (*execution.Response, error) {
			got = results
			return execution.JSON(401, map[string]any{"route": info.Path}), nil
		}
		run := newPipeline(t, securityDoc, execution.HandlersMap{Default: echo}, Global(Security(WithForbiddenResponse(forbidden))))

		resp, err := run(&execution.Request{Path: "/admin", Method: execution.MethodGet, Securities: map[string]execution.Security{
			"oauth": execution.Granted("read"),
		}})
		require.NoError(t, err)
		assert.Equal(t, 401, resp.Status)
		assert.Equal(t, map[string]any{"route": "/admin"}, resp.Content["application/json"])
		assert.Equal(t, map[string]string{
			"oauth":  "required scopes are missing: admin",
			"apiKey": ReasonNotAuthorized,
		}, got)
	})
}
