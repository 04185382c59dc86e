// Package params resolves the parameter declarations of an operation and
// deserializes raw parameter values.
package params

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexstrat/executable-openapi/oaserrors"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
)

// Serialization styles supported for each location.
const (
	StyleSimple = "simple"
	StyleForm   = "form"
)

// Resolve returns the parameters of op merged with those of its path item.
// Path item parameters come first; an operation parameter with the same
// name and location replaces the path item one in place. References are
// resolved through refs.
func Resolve(ctx context.Context, refs *resolver.Typed, item *parser.PathItem, op *parser.Operation) ([]*parser.Parameter, error) {
	var declared []*parser.Parameter
	if item != nil {
		declared = append(declared, item.Parameters...)
	}
	pathLevel := len(declared)
	if op != nil {
		declared = append(declared, op.Parameters...)
	}

	merged := make([]*parser.Parameter, 0, len(declared))
	for i, p := range declared {
		resolved, err := refs.Parameter(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("params: resolving parameter %d: %w", i, err)
		}
		if resolved == nil {
			continue
		}
		if i >= pathLevel {
			if idx := indexOf(merged, resolved.Name, resolved.In); idx >= 0 {
				merged[idx] = resolved
				continue
			}
		}
		merged = append(merged, resolved)
	}
	return merged, nil
}

func indexOf(specs []*parser.Parameter, name, in string) int {
	for i, s := range specs {
		if s.Name == name && s.In == in {
			return i
		}
	}
	return -1
}

// Filter returns the parameters declared in location in.
func Filter(specs []*parser.Parameter, in string) []*parser.Parameter {
	var out []*parser.Parameter
	for _, s := range specs {
		if s.In == in {
			out = append(out, s)
		}
	}
	return out
}

// CheckStyle fails with an oaserrors.NotImplementedError unless the style of
// p is the default style of its location: simple for path parameters, form
// for query parameters.
func CheckStyle(p *parser.Parameter) error {
	want := StyleSimple
	if p.In == parser.ParameterInQuery {
		want = StyleForm
	}
	if p.Style == "" || p.Style == want {
		return nil
	}
	return &oaserrors.NotImplementedError{
		Feature:  "parameter style",
		Value:    p.Style,
		Location: p.In + " parameter " + p.Name,
	}
}

// Deserialize turns a raw parameter value into the shape its schema
// declares. Values of array schemas are split on commas; values of object
// schemas are read as "k,v,k,v" or, exploded, "k=v,k=v". Other values are
// returned unchanged and left to schema coercion.
func Deserialize(p *parser.Parameter, s *parser.Schema, raw string) any {
	if s == nil {
		return raw
	}
	switch {
	case s.Type.Includes("array") && !s.Type.Includes("string"):
		if raw == "" {
			return []any{}
		}
		parts := strings.Split(raw, ",")
		out := make([]any, len(parts))
		for i, part := range parts {
			out[i] = part
		}
		return out

	case s.Type.Includes("object") && !s.Type.Includes("string"):
		out := make(map[string]any)
		if raw == "" {
			return out
		}
		parts := strings.Split(raw, ",")
		if Explode(p) {
			for _, part := range parts {
				key, value, _ := strings.Cut(part, "=")
				out[key] = value
			}
			return out
		}
		for i := 0; i+1 < len(parts); i += 2 {
			out[parts[i]] = parts[i+1]
		}
		return out
	}
	return raw
}

// Explode reports whether values of p are exploded: the explode field when
// set, otherwise true for query parameters (form style) only.
func Explode(p *parser.Parameter) bool {
	if p.Explode != nil {
		return *p.Explode
	}
	return p.In == parser.ParameterInQuery
}
