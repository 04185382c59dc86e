package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alexstrat/executable-openapi/internal/httputil"
)

// Paths maps path templates to path items.
type Paths map[string]*PathItem

// PathItem describes the operations available on a single path.
type PathItem struct {
	Ref         string       `yaml:"$ref,omitempty" json:"$ref,omitempty"`
	Summary     string       `yaml:"summary,omitempty" json:"summary,omitempty"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Get         *Operation   `yaml:"get,omitempty" json:"get,omitempty"`
	Put         *Operation   `yaml:"put,omitempty" json:"put,omitempty"`
	Post        *Operation   `yaml:"post,omitempty" json:"post,omitempty"`
	Delete      *Operation   `yaml:"delete,omitempty" json:"delete,omitempty"`
	Options     *Operation   `yaml:"options,omitempty" json:"options,omitempty"`
	Head        *Operation   `yaml:"head,omitempty" json:"head,omitempty"`
	Patch       *Operation   `yaml:"patch,omitempty" json:"patch,omitempty"`
	Trace       *Operation   `yaml:"trace,omitempty" json:"trace,omitempty"`
	Parameters  []*Parameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	// Extra captures specification extensions (fields starting with "x-")
	Extra map[string]any `yaml:",inline" json:"-"`
}

// Operation returns the operation declared for method (lower or upper case),
// or nil.
func (p *PathItem) Operation(method string) *Operation {
	if p == nil {
		return nil
	}
	switch strings.ToLower(method) {
	case httputil.MethodGet:
		return p.Get
	case httputil.MethodPut:
		return p.Put
	case httputil.MethodPost:
		return p.Post
	case httputil.MethodDelete:
		return p.Delete
	case httputil.MethodOptions:
		return p.Options
	case httputil.MethodHead:
		return p.Head
	case httputil.MethodPatch:
		return p.Patch
	case httputil.MethodTrace:
		return p.Trace
	default:
		return nil
	}
}

// Operations returns the declared operations keyed by lower-case method, in
// the canonical method order.
func (p *PathItem) Operations() []MethodOperation {
	var ops []MethodOperation
	for _, method := range httputil.Methods {
		if op := p.Operation(method); op != nil {
			ops = append(ops, MethodOperation{Method: method, Operation: op})
		}
	}
	return ops
}

// MethodOperation pairs an operation with its method.
type MethodOperation struct {
	Method    string
	Operation *Operation
}

// Operation describes a single API operation on a path.
type Operation struct {
	Tags        []string              `yaml:"tags,omitempty" json:"tags,omitempty"`
	Summary     string                `yaml:"summary,omitempty" json:"summary,omitempty"`
	Description string                `yaml:"description,omitempty" json:"description,omitempty"`
	OperationID string                `yaml:"operationId,omitempty" json:"operationId,omitempty"`
	Parameters  []*Parameter          `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	RequestBody *RequestBody          `yaml:"requestBody,omitempty" json:"requestBody,omitempty"`
	Responses   *Responses            `yaml:"responses,omitempty" json:"responses,omitempty"`
	Deprecated  bool                  `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
	Security    []SecurityRequirement `yaml:"security,omitempty" json:"security,omitempty"`
	// Extra captures specification extensions (fields starting with "x-")
	Extra map[string]any `yaml:",inline" json:"-"`
}

// Parameter describes a single operation parameter.
type Parameter struct {
	Ref             string  `yaml:"$ref,omitempty" json:"$ref,omitempty"`
	Name            string  `yaml:"name,omitempty" json:"name,omitempty"`
	In              string  `yaml:"in,omitempty" json:"in,omitempty"`
	Description     string  `yaml:"description,omitempty" json:"description,omitempty"`
	Required        bool    `yaml:"required,omitempty" json:"required,omitempty"`
	Deprecated      bool    `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
	AllowEmptyValue bool    `yaml:"allowEmptyValue,omitempty" json:"allowEmptyValue,omitempty"`
	Style           string  `yaml:"style,omitempty" json:"style,omitempty"`
	Explode         *bool   `yaml:"explode,omitempty" json:"explode,omitempty"`
	Schema          *Schema `yaml:"schema,omitempty" json:"schema,omitempty"`
	Example         any     `yaml:"example,omitempty" json:"example,omitempty"`
	// Extra captures specification extensions (fields starting with "x-")
	Extra map[string]any `yaml:",inline" json:"-"`
}

// Parameter locations
const (
	ParameterInPath   = "path"
	ParameterInQuery  = "query"
	ParameterInHeader = "header"
	ParameterInCookie = "cookie"
)

// RequestBody describes a single request body.
type RequestBody struct {
	Ref         string                `yaml:"$ref,omitempty" json:"$ref,omitempty"`
	Description string                `yaml:"description,omitempty" json:"description,omitempty"`
	Content     map[string]*MediaType `yaml:"content,omitempty" json:"content,omitempty"`
	Required    bool                  `yaml:"required,omitempty" json:"required,omitempty"`
	// Extra captures specification extensions (fields starting with "x-")
	Extra map[string]any `yaml:",inline" json:"-"`
}

// MediaType provides the schema and examples for a media type.
type MediaType struct {
	Schema   *Schema             `yaml:"schema,omitempty" json:"schema,omitempty"`
	Example  any                 `yaml:"example,omitempty" json:"example,omitempty"`
	Examples map[string]*Example `yaml:"examples,omitempty" json:"examples,omitempty"`
	// Extra captures specification extensions (fields starting with "x-")
	Extra map[string]any `yaml:",inline" json:"-"`
}

// Example represents an example object.
type Example struct {
	Ref         string `yaml:"$ref,omitempty" json:"$ref,omitempty"`
	Summary     string `yaml:"summary,omitempty" json:"summary,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Value       any    `yaml:"value,omitempty" json:"value,omitempty"`
}

// Responses is a container for the expected responses of an operation.
type Responses struct {
	Default *Response            `yaml:"default,omitempty" json:"default,omitempty"`
	Codes   map[string]*Response `yaml:",inline" json:"-"` // Handled by custom marshaler
}

// UnmarshalYAML implements custom unmarshaling for Responses to validate
// status codes during parsing.
func (r *Responses) UnmarshalYAML(unmarshal func(any) error) error {
	var raw map[string]any
	if err := unmarshal(&raw); err != nil {
		return err
	}

	r.Codes = make(map[string]*Response)
	for key, value := range raw {
		if strings.HasPrefix(key, "x-") {
			continue
		}
		if key != "default" && !httputil.ValidateStatusCode(key) {
			return fmt.Errorf("invalid status code '%s' in responses: must be a valid HTTP status code (e.g., \"200\", \"404\"), wildcard pattern (e.g., \"2XX\") or \"default\"", key)
		}
		var resp Response
		if err := Decode(value, &resp); err != nil {
			return fmt.Errorf("failed to unmarshal response for status code %s: %w", key, err)
		}
		if key == "default" {
			r.Default = &resp
		} else {
			r.Codes[key] = &resp
		}
	}
	return nil
}

// MarshalJSON flattens status codes next to the default response.
func (r *Responses) MarshalJSON() ([]byte, error) {
	m := make(map[string]*Response, len(r.Codes)+1)
	for code, resp := range r.Codes {
		m[code] = resp
	}
	if r.Default != nil {
		m["default"] = r.Default
	}
	return json.Marshal(m)
}

// Response describes a single response from an operation.
type Response struct {
	Ref         string                `yaml:"$ref,omitempty" json:"$ref,omitempty"`
	Description string                `yaml:"description,omitempty" json:"description,omitempty"`
	Headers     map[string]*Header    `yaml:"headers,omitempty" json:"headers,omitempty"`
	Content     map[string]*MediaType `yaml:"content,omitempty" json:"content,omitempty"`
	// Extra captures specification extensions (fields starting with "x-")
	Extra map[string]any `yaml:",inline" json:"-"`
}

// Header describes a response header.
type Header struct {
	Ref         string  `yaml:"$ref,omitempty" json:"$ref,omitempty"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool    `yaml:"required,omitempty" json:"required,omitempty"`
	Schema      *Schema `yaml:"schema,omitempty" json:"schema,omitempty"`
	Example     any     `yaml:"example,omitempty" json:"example,omitempty"`
}
