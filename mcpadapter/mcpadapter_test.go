package mcpadapter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	executableopenapi "github.com/alexstrat/executable-openapi"
	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
)

const petsDoc = `
openapi: 3.0.3
info: {title: Pets, version: '2.1', description: Pet store}
paths:
  /pets/{id}:
    parameters:
      - {name: id, in: path, required: true, schema: {type: integer, minimum: 1}}
    get:
      operationId: getPet
      summary: Get a pet
      security:
        - apiKey: []
      parameters:
        - {name: fields, in: query, description: Fields to return, schema: {type: array, items: {type: string}}}
  /pets:
    post:
      requestBody:
        required: true
        content:
          application/json:
            schema: {$ref: '#/components/schemas/Pet'}
components:
  securitySchemes:
    apiKey: {type: apiKey, in: header, name: X-Api-Key}
  schemas:
    Pet:
      type: object
      required: [name]
      properties:
        name: {type: string, maxLength: 10}
        parent: {$ref: '#/components/schemas/Pet'}
`

func loadPets(t *testing.T) *parser.Document {
	t.Helper()
	doc, err := parser.Parse([]byte(petsDoc))
	require.NoError(t, err)
	return doc
}

func echoExecutable(t *testing.T, doc *parser.Document) *executableopenapi.Executable {
	t.Helper()
	exe, err := executableopenapi.New(doc, execution.HandlersMap{
		Default: func(_ context.Context, params execution.Parameters, body any, _ *execution.OperationInfo) (*execution.Response, error) {
			return execution.JSON(200, map[string]any{"path": params.Path, "query": params.Query, "body": body}), nil
		},
	})
	require.NoError(t, err)
	return exe
}

// startSession connects an in-memory client to server.
func startSession(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = session.Close()
		cancel()
		<-done
	})
	return session
}

// decodeResponse parses the execution response carried by a tool result.
func decodeResponse(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &m))
	return m
}

// =============================================================================
// Tool derivation
// =============================================================================

func TestToolName(t *testing.T) {
	tests := []struct {
		method   string
		template string
		op       *parser.Operation
		want     string
	}{
		{"get", "/pets/{id}", &parser.Operation{}, "get_pets_id"},
		{"post", "/", nil, "post"},
		{"GET", "/pets", &parser.Operation{OperationID: "listPets"}, "listPets"},
		{"delete", "/a-b/{c}.json", nil, "delete_a_b_c_json"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ToolName(tt.method, tt.template, tt.op))
		})
	}
}

func TestTools(t *testing.T) {
	doc := loadPets(t)
	tools, err := Tools(context.Background(), doc, resolver.NewTyped(resolver.NewLocal(doc)))
	require.NoError(t, err)
	require.Len(t, tools, 2)

	t.Run("parameters", func(t *testing.T) {
		get := tools[0]
		assert.Equal(t, "getPet", get.Tool.Name)
		assert.Equal(t, "Get a pet", get.Tool.Title)
		assert.Equal(t, "Get a pet", get.Tool.Description)
		require.NotNil(t, get.Tool.Annotations)
		assert.True(t, get.Tool.Annotations.ReadOnlyHint)
		assert.Empty(t, get.MediaType)

		input := get.Tool.InputSchema.(*jsonschema.Schema)
		assert.Equal(t, "object", input.Type)
		assert.Equal(t, []string{"path"}, input.Required)

		path := input.Properties["path"]
		require.NotNil(t, path)
		assert.Equal(t, []string{"id"}, path.Required)
		assert.Equal(t, "integer", path.Properties["id"].Type)
		require.NotNil(t, path.Properties["id"].Minimum)
		assert.Equal(t, 1.0, *path.Properties["id"].Minimum)

		query := input.Properties["query"]
		require.NotNil(t, query)
		assert.Empty(t, query.Required)
		assert.Equal(t, "array", query.Properties["fields"].Type)
		assert.Equal(t, "Fields to return", query.Properties["fields"].Description)
		assert.Equal(t, "string", query.Properties["fields"].Items.Type)

		assert.NotContains(t, input.Properties, "body")
	})

	t.Run("request body", func(t *testing.T) {
		post := tools[1]
		assert.Equal(t, "post_pets", post.Tool.Name)
		assert.Equal(t, "Post Pets", post.Tool.Title)
		assert.Equal(t, "POST /pets", post.Tool.Description)
		assert.Nil(t, post.Tool.Annotations)
		assert.Equal(t, "application/json", post.MediaType)

		input := post.Tool.InputSchema.(*jsonschema.Schema)
		assert.Equal(t, []string{"body"}, input.Required)
		body := input.Properties["body"]
		require.NotNil(t, body)
		assert.Equal(t, "object", body.Type)
		assert.Equal(t, []string{"name"}, body.Required)
		assert.Equal(t, []string{"name", "parent"}, body.PropertyOrder)

		// The recursive reference is inlined once.
		parent := body.Properties["parent"]
		require.NotNil(t, parent)
		assert.Equal(t, "object", parent.Type)
		assert.Equal(t, &jsonschema.Schema{}, parent.Properties["parent"])
	})

	t.Run("unresolvable reference", func(t *testing.T) {
		broken, err := parser.Parse([]byte(`
openapi: 3.0.3
info: {title: b, version: '1'}
paths:
  /x:
    post:
      requestBody: {$ref: '#/components/requestBodies/Missing'}
`))
		require.NoError(t, err)
		_, err = Tools(context.Background(), broken, resolver.NewTyped(resolver.NewLocal(broken)))
		assert.Error(t, err)
	})
}

func TestSchemaConversion(t *testing.T) {
	c := newConverter(resolver.NewTyped(nil))

	t.Run("nullable and bounds", func(t *testing.T) {
		s, err := c.schema(context.Background(), &parser.Schema{
			Type:             parser.NewSchemaType("number"),
			Nullable:         true,
			Minimum:          parser.Float64(0),
			ExclusiveMinimum: true,
			ExclusiveMaximum: 10.0,
			Default:          2.5,
			Example:          3,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"number", "null"}, s.Types)
		assert.Nil(t, s.Minimum)
		require.NotNil(t, s.ExclusiveMinimum)
		assert.Equal(t, 0.0, *s.ExclusiveMinimum)
		require.NotNil(t, s.ExclusiveMaximum)
		assert.Equal(t, 10.0, *s.ExclusiveMaximum)
		assert.JSONEq(t, `2.5`, string(s.Default))
		assert.Equal(t, []any{3}, s.Examples)
	})

	t.Run("closed objects", func(t *testing.T) {
		s, err := c.schema(context.Background(), &parser.Schema{
			Type:                 parser.NewSchemaType("object"),
			AdditionalProperties: parser.AdditionalPropertiesAllowed(false),
		})
		require.NoError(t, err)
		assert.Equal(t, &jsonschema.Schema{Not: &jsonschema.Schema{}}, s.AdditionalProperties)
	})

	t.Run("references need a resolver", func(t *testing.T) {
		_, err := c.schema(context.Background(), &parser.Schema{Ref: "#/components/schemas/Pet"})
		assert.Error(t, err)
	})
}

// =============================================================================
// Tool calls
// =============================================================================

func TestRequest(t *testing.T) {
	tool := &Tool{
		Template:  "/files/{name}/{filter}",
		Method:    execution.MethodPut,
		MediaType: "text/plain",
		params: []*parser.Parameter{
			{Name: "name", In: parser.ParameterInPath},
			{Name: "filter", In: parser.ParameterInPath},
			{Name: "meta", In: parser.ParameterInQuery},
		},
	}

	req, err := tool.Request(Arguments{
		Path:  map[string]any{"name": "a b", "filter": map[string]any{"size": 2.0, "kind": "pdf"}},
		Query: map[string]any{"meta": map[string]any{"x": true}, "tags": []any{"a", "b"}, "n": 1.5},
		Body:  json.RawMessage(`"hello"`),
	})
	require.NoError(t, err)
	assert.Equal(t, "/files/a%20b/kind%2Cpdf%2Csize%2C2", req.Path)
	assert.Equal(t, execution.MethodPut, req.Method)
	assert.Equal(t, map[string]string{"meta": "x=true", "tags": "a,b", "n": "1.5"}, req.Query)
	assert.Equal(t, &execution.Body{MediaType: "text/plain", Content: "hello"}, req.Body)

	_, err = tool.Request(Arguments{Path: map[string]any{"name": "a"}})
	assert.EqualError(t, err, "path parameter filter is required")

	noBody := &Tool{Template: "/x", Method: execution.MethodGet, Tool: &mcp.Tool{Name: "get_x"}}
	req, err = noBody.Request(Arguments{Body: json.RawMessage(`null`)})
	require.NoError(t, err)
	assert.Nil(t, req.Body)
	_, err = noBody.Request(Arguments{Body: json.RawMessage(`{}`)})
	assert.EqualError(t, err, "operation get_x does not accept a body")
}

func TestServer(t *testing.T) {
	doc := loadPets(t)
	server, err := NewServer(doc, echoExecutable(t, doc),
		WithSecurities(map[string]execution.Security{"apiKey": execution.Granted()}),
	)
	require.NoError(t, err)
	session := startSession(t, server)
	ctx := context.Background()

	t.Run("implementation", func(t *testing.T) {
		info := session.InitializeResult()
		require.NotNil(t, info)
		assert.Equal(t, "Pets", info.ServerInfo.Name)
		assert.Equal(t, "2.1", info.ServerInfo.Version)
		assert.Equal(t, "Pet store", info.Instructions)
	})

	t.Run("list tools", func(t *testing.T) {
		result, err := session.ListTools(ctx, &mcp.ListToolsParams{})
		require.NoError(t, err)
		names := make([]string, 0, len(result.Tools))
		for _, tool := range result.Tools {
			names = append(names, tool.Name)
		}
		assert.ElementsMatch(t, []string{"getPet", "post_pets"}, names)
	})

	t.Run("call executes the operation", func(t *testing.T) {
		result, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "getPet",
			Arguments: map[string]any{"path": map[string]any{"id": 3}, "query": map[string]any{"fields": []string{"a", "b"}}},
		})
		require.NoError(t, err)
		assert.False(t, result.IsError)

		resp := decodeResponse(t, result)
		assert.Equal(t, 200.0, resp["status"])
		content := resp["content"].(map[string]any)["application/json"].(map[string]any)
		assert.Equal(t, map[string]any{"id": 3.0}, content["path"])
		assert.Equal(t, map[string]any{"fields": []any{"a", "b"}}, content["query"])
	})

	t.Run("validation failures are tool errors", func(t *testing.T) {
		result, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "getPet",
			Arguments: map[string]any{"path": map[string]any{"id": 0}},
		})
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Equal(t, 400.0, decodeResponse(t, result)["status"])

		result, err = session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "post_pets",
			Arguments: map[string]any{"body": map[string]any{"name": "far too long a name"}},
		})
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Equal(t, 400.0, decodeResponse(t, result)["status"])
	})

	t.Run("body", func(t *testing.T) {
		result, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "post_pets",
			Arguments: map[string]any{"body": map[string]any{"name": "rex"}},
		})
		require.NoError(t, err)
		assert.False(t, result.IsError)
		content := decodeResponse(t, result)["content"].(map[string]any)["application/json"].(map[string]any)
		assert.Equal(t, map[string]any{"name": "rex"}, content["body"])
	})

	t.Run("missing path parameter", func(t *testing.T) {
		result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "getPet", Arguments: map[string]any{}})
		require.NoError(t, err)
		assert.True(t, result.IsError)
		text := result.Content[0].(*mcp.TextContent)
		assert.Equal(t, "path parameter id is required", text.Text)
	})
}

func TestServerSecurities(t *testing.T) {
	doc := loadPets(t)
	server, err := NewServer(doc, echoExecutable(t, doc), WithName("pets-mcp"), WithVersion("9"))
	require.NoError(t, err)
	session := startSession(t, server)

	assert.Equal(t, "pets-mcp", session.InitializeResult().ServerInfo.Name)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "getPet",
		Arguments: map[string]any{"path": map[string]any{"id": 1}},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, 403.0, decodeResponse(t, result)["status"])
}

func TestNewServerErrors(t *testing.T) {
	exec := execution.ExecutorFunc(func(context.Context, *execution.Request) (*execution.Response, error) { return nil, nil })

	_, err := NewServer(nil, exec)
	assert.Error(t, err)

	_, err = NewServer(loadPets(t), nil)
	assert.Error(t, err)
}
