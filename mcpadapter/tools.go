package mcpadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/internal/httputil"
	"github.com/alexstrat/executable-openapi/internal/maputil"
	"github.com/alexstrat/executable-openapi/params"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
)

// Tool is the MCP tool derived from one operation.
type Tool struct {
	Tool *mcp.Tool
	// Template and Method locate the operation in the document
	Template string
	Method   execution.Method
	// MediaType is the media type tool call bodies are sent with, empty when
	// the operation has no request body
	MediaType string

	params []*parser.Parameter
}

// Tools derives one tool per operation of doc, in document order.
func Tools(ctx context.Context, doc *parser.Document, refs *resolver.Typed) ([]*Tool, error) {
	titleCaser := cases.Title(language.English)
	seen := make(map[string]int)

	var tools []*Tool
	for _, template := range doc.PathTemplates() {
		item, err := refs.PathItem(ctx, doc.Paths[template])
		if err != nil {
			return nil, err
		}
		if item == nil {
			continue
		}
		for _, mo := range item.Operations() {
			tool, err := buildTool(ctx, refs, template, item, mo)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", strings.ToUpper(mo.Method), template, err)
			}

			name := tool.Tool.Name
			if n := seen[name]; n > 0 {
				tool.Tool.Name = fmt.Sprintf("%s_%d", name, n+1)
			}
			seen[name]++

			if tool.Tool.Title == "" {
				tool.Tool.Title = titleCaser.String(strings.ReplaceAll(tool.Tool.Name, "_", " "))
			}
			tools = append(tools, tool)
		}
	}
	return tools, nil
}

func buildTool(ctx context.Context, refs *resolver.Typed, template string, item *parser.PathItem, mo parser.MethodOperation) (*Tool, error) {
	op := mo.Operation
	tool := &Tool{
		Template: template,
		Method:   execution.Method(mo.Method),
		Tool: &mcp.Tool{
			Name:        ToolName(mo.Method, template, op),
			Title:       op.Summary,
			Description: description(mo.Method, template, op),
		},
	}
	if mo.Method == httputil.MethodGet || mo.Method == httputil.MethodHead || mo.Method == httputil.MethodOptions {
		tool.Tool.Annotations = &mcp.ToolAnnotations{ReadOnlyHint: true}
	}

	specs, err := params.Resolve(ctx, refs, item, op)
	if err != nil {
		return nil, err
	}
	tool.params = specs
	conv := newConverter(refs)

	input := &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}}
	for _, in := range []string{parser.ParameterInPath, parser.ParameterInQuery} {
		group, required, err := conv.parameters(ctx, params.Filter(specs, in), in == parser.ParameterInPath)
		if err != nil {
			return nil, err
		}
		if group == nil {
			continue
		}
		input.Properties[in] = group
		input.PropertyOrder = append(input.PropertyOrder, in)
		if required {
			input.Required = append(input.Required, in)
		}
	}

	rb, err := refs.RequestBody(ctx, op.RequestBody)
	if err != nil {
		return nil, err
	}
	if rb != nil && len(rb.Content) > 0 {
		tool.MediaType = bodyMediaType(rb.Content)
		var bodySchema *parser.Schema
		if mt := rb.Content[tool.MediaType]; mt != nil {
			bodySchema = mt.Schema
		}
		body, err := conv.schema(ctx, bodySchema)
		if err != nil {
			return nil, err
		}
		if body.Description == "" {
			body.Description = rb.Description
		}
		input.Properties["body"] = body
		input.PropertyOrder = append(input.PropertyOrder, "body")
		if rb.Required {
			input.Required = append(input.Required, "body")
		}
	}

	tool.Tool.InputSchema = input
	return tool, nil
}

// ToolName returns the tool name of an operation: its operationId, or the
// method and the template with every character other than letters and
// digits replaced by underscores.
func ToolName(method, template string, op *parser.Operation) string {
	if op != nil && op.OperationID != "" {
		return op.OperationID
	}
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	underscore := true
	for _, r := range template {
		if r < 128 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			if underscore {
				b.WriteByte('_')
				underscore = false
			}
			b.WriteRune(r)
			continue
		}
		underscore = true
	}
	return b.String()
}

func description(method, template string, op *parser.Operation) string {
	switch {
	case op.Description != "":
		return op.Description
	case op.Summary != "":
		return op.Summary
	}
	return strings.ToUpper(method) + " " + template
}

// bodyMediaType prefers JSON, then the first media type in lexical order.
func bodyMediaType(content map[string]*parser.MediaType) string {
	if _, ok := content["application/json"]; ok {
		return "application/json"
	}
	types := maputil.SortedKeys(content)
	for _, mediaType := range types {
		if strings.HasSuffix(mediaType, "+json") {
			return mediaType
		}
	}
	return types[0]
}
