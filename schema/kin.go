package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/alexstrat/executable-openapi/oaserrors"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
)

// maxInlineDepth bounds the inlining of recursive references.
const maxInlineDepth = 32

// KinCompiler compiles schemas into kin-openapi schemas. It does not coerce
// values nor fill defaults: it is meant for strict validation, typically of
// JSON bodies.
type KinCompiler struct {
	refs resolver.Resolver
}

// NewKinCompiler returns a KinCompiler following references with r. A nil r
// rejects schemas containing references.
func NewKinCompiler(r resolver.Resolver) *KinCompiler {
	return &KinCompiler{refs: r}
}

// Compile implements Compiler.
func (k *KinCompiler) Compile(ctx context.Context, s *parser.Schema) (Validator, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("schema: encoding schema: %w", err)
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("schema: encoding schema: %w", err)
	}
	tree, err = k.normalize(ctx, tree, 0)
	if err != nil {
		return nil, err
	}
	if data, err = json.Marshal(tree); err != nil {
		return nil, fmt.Errorf("schema: encoding schema: %w", err)
	}

	var compiled openapi3.Schema
	if err := json.Unmarshal(data, &compiled); err != nil {
		return nil, &oaserrors.ConfigError{Option: "schema", Message: "not supported by kin-openapi", Cause: err}
	}
	return kinValidator{schema: &compiled}, nil
}

// normalize inlines references and rewrites OAS 3.1 forms into the ones
// kin-openapi understands.
func (k *KinCompiler) normalize(ctx context.Context, node any, depth int) (any, error) {
	switch n := node.(type) {
	case []any:
		for i := range n {
			v, err := k.normalize(ctx, n[i], depth)
			if err != nil {
				return nil, err
			}
			n[i] = v
		}
		return n, nil

	case map[string]any:
		if ref, ok := n["$ref"].(string); ok {
			if depth >= maxInlineDepth {
				return map[string]any{}, nil
			}
			if k.refs == nil {
				return nil, &oaserrors.ReferenceError{Ref: ref, Message: "no resolver configured"}
			}
			target, err := k.refs.Resolve(ctx, ref)
			if err != nil {
				return nil, fmt.Errorf("schema: %w", err)
			}
			var copied any
			if err := parser.Decode(target, &copied); err != nil {
				return nil, fmt.Errorf("schema: decoding %s: %w", ref, err)
			}
			if data, err := json.Marshal(toJSONTree(copied)); err == nil {
				_ = json.Unmarshal(data, &copied)
			}
			return k.normalize(ctx, copied, depth+1)
		}

		for key, v := range n {
			out, err := k.normalize(ctx, v, depth)
			if err != nil {
				return nil, err
			}
			n[key] = out
		}
		for _, bound := range [][2]string{{"exclusiveMinimum", "minimum"}, {"exclusiveMaximum", "maximum"}} {
			if f, ok := n[bound[0]].(float64); ok {
				n[bound[1]] = f
				n[bound[0]] = true
			}
		}
		if types, ok := n["type"].([]any); ok {
			kept := make([]any, 0, len(types))
			for _, t := range types {
				if t == "null" {
					n["nullable"] = true
					continue
				}
				kept = append(kept, t)
			}
			n["type"] = kept
		}
		return n, nil
	}
	return node, nil
}

// toJSONTree turns map[any]any nodes into map[string]any.
func toJSONTree(v any) any {
	switch x := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = toJSONTree(val)
		}
		return out
	case map[string]any:
		for k, val := range x {
			x[k] = toJSONTree(val)
		}
		return x
	case []any:
		for i := range x {
			x[i] = toJSONTree(x[i])
		}
		return x
	}
	return v
}

type kinValidator struct {
	schema *openapi3.Schema
}

func (v kinValidator) Validate(data any) Result {
	// kin-openapi expects decoded JSON values
	var value any
	if raw, err := json.Marshal(data); err == nil {
		if err := json.Unmarshal(raw, &value); err != nil {
			value = data
		}
	} else {
		value = data
	}

	err := v.schema.VisitJSON(value, openapi3.MultiErrors(), openapi3.VisitAsRequest())
	if err == nil {
		return Result{Valid: true, Data: value}
	}
	return Result{Errors: kinErrors(err), Data: value}
}

func kinErrors(err error) []Error {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		var out []Error
		for _, e := range multi {
			out = append(out, kinErrors(e)...)
		}
		return out
	}

	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		pointer := schemaErr.JSONPointer()
		inst := ""
		for _, token := range pointer {
			inst += "/" + escapePointer(token)
		}
		return []Error{{
			InstancePath: inst,
			SchemaPath:   "#/" + schemaErr.SchemaField,
			Keyword:      schemaErr.SchemaField,
			Message:      strings.TrimSpace(schemaErr.Reason),
		}}
	}
	return []Error{{Message: err.Error()}}
}
