package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/internal/maputil"
	"github.com/alexstrat/executable-openapi/params"
	"github.com/alexstrat/executable-openapi/parser"
)

// Arguments is the input of a tool call.
type Arguments struct {
	Path  map[string]any  `json:"path,omitempty"`
	Query map[string]any  `json:"query,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
}

func (t *Tool) handler(executor execution.Executor, cfg *config) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args Arguments
		if raw := req.Params.Arguments; len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return errResult(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}

		execReq, err := t.Request(args)
		if err != nil {
			return errResult(err), nil
		}
		execReq.ID = uuid.New().String()
		execReq.Securities = cfg.securities

		resp, err := executor.Execute(ctx, execReq)
		if err != nil {
			cfg.logger.Error("executing tool call", "tool", t.Tool.Name, "request_id", execReq.ID, "error", err)
			return errResult(err), nil
		}
		if resp == nil {
			return errResult(fmt.Errorf("no operation for %s %s", strings.ToUpper(execReq.Method.String()), execReq.Path)), nil
		}
		return responseResult(resp)
	}
}

// Request builds the execution request of a tool call.
func (t *Tool) Request(args Arguments) (*execution.Request, error) {
	path, err := t.expand(args.Path)
	if err != nil {
		return nil, err
	}
	req := &execution.Request{Path: path, Method: t.Method}

	if len(args.Query) > 0 {
		req.Query = make(map[string]string, len(args.Query))
		for name, value := range args.Query {
			req.Query[name] = stringify(t.param(name, parser.ParameterInQuery), value)
		}
	}

	if len(args.Body) > 0 && string(args.Body) != "null" {
		if t.MediaType == "" {
			return nil, fmt.Errorf("operation %s does not accept a body", t.Tool.Name)
		}
		var content any
		if err := json.Unmarshal(args.Body, &content); err != nil {
			return nil, fmt.Errorf("invalid body: %w", err)
		}
		req.Body = &execution.Body{MediaType: t.MediaType, Content: content}
	}
	return req, nil
}

// expand substitutes the path variables of the template.
func (t *Tool) expand(values map[string]any) (string, error) {
	var b strings.Builder
	rest := t.Template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		name := rest[open+1 : open+end]
		value, ok := values[name]
		if !ok || value == nil {
			return "", fmt.Errorf("path parameter %s is required", name)
		}
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(stringify(t.param(name, parser.ParameterInPath), value)))
		rest = rest[open+end+1:]
	}
}

func (t *Tool) param(name, in string) *parser.Parameter {
	for _, p := range t.params {
		if p.Name == name && p.In == in {
			return p
		}
	}
	return &parser.Parameter{Name: name, In: in}
}

// stringify renders a JSON value the way the parameter would be serialized
// in a URL: arrays and objects are comma separated, objects as key=value
// pairs when exploded.
func stringify(p *parser.Parameter, v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = stringify(p, item)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		keys := maputil.SortedKeys(v)
		parts := make([]string, 0, 2*len(keys))
		for _, k := range keys {
			if params.Explode(p) {
				parts = append(parts, k+"="+stringify(p, v[k]))
			} else {
				parts = append(parts, k, stringify(p, v[k]))
			}
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

func responseResult(resp *execution.Response) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return errResult(fmt.Errorf("encoding response: %w", err)), nil
	}
	return &mcp.CallToolResult{
		IsError: resp.Status >= 400,
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

func errResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
