package mock

import (
	"context"

	"github.com/alexstrat/executable-openapi/internal/maputil"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
)

// maxDepth bounds the nesting of derived values.
const maxDepth = 8

type sampler struct {
	refs     *resolver.Typed
	visiting map[string]bool
}

func newSampler(refs *resolver.Typed) *sampler {
	return &sampler{refs: refs, visiting: make(map[string]bool)}
}

// mediaType returns the example of mt: the named example when declared,
// mt.example, the first of mt.examples by name, then a value derived from
// the schema.
func (s *sampler) mediaType(ctx context.Context, mt *parser.MediaType, named string) (any, error) {
	if mt == nil {
		return nil, nil
	}
	if ex, ok := mt.Examples[named]; ok && named != "" {
		if v, err := s.example(ctx, ex); err != nil || v != nil {
			return v, err
		}
	}
	if mt.Example != nil {
		return mt.Example, nil
	}
	if len(mt.Examples) > 0 {
		names := maputil.SortedKeys(mt.Examples)
		for _, name := range names {
			v, err := s.example(ctx, mt.Examples[name])
			if err != nil || v != nil {
				return v, err
			}
		}
	}
	if mt.Schema == nil {
		return nil, nil
	}
	return s.sample(ctx, mt.Schema)
}

func (s *sampler) example(ctx context.Context, ex *parser.Example) (any, error) {
	if ex == nil {
		return nil, nil
	}
	if ex.Ref == "" {
		return ex.Value, nil
	}
	node, err := s.refs.Resolver().Resolve(ctx, ex.Ref)
	if err != nil {
		return nil, err
	}
	var resolved parser.Example
	if err := parser.Decode(node, &resolved); err != nil {
		return nil, err
	}
	return resolved.Value, nil
}

// sample derives a value from a schema: its example, default, first enum
// value, or a value built from its type.
func (s *sampler) sample(ctx context.Context, schema *parser.Schema) (any, error) {
	return s.walk(ctx, schema, 0)
}

func (s *sampler) walk(ctx context.Context, schema *parser.Schema, depth int) (any, error) {
	if schema == nil || depth > maxDepth {
		return nil, nil
	}
	if ref := schema.Ref; ref != "" {
		if s.visiting[ref] {
			return nil, nil
		}
		s.visiting[ref] = true
		defer delete(s.visiting, ref)

		resolved, err := s.refs.Schema(ctx, schema)
		if err != nil {
			return nil, err
		}
		schema = resolved
	}

	switch {
	case schema.Example != nil:
		return schema.Example, nil
	case schema.Default != nil:
		return schema.Default, nil
	case len(schema.Enum) > 0:
		return schema.Enum[0], nil
	case schema.Const != nil:
		return schema.Const, nil
	}

	if len(schema.AllOf) > 0 {
		merged := map[string]any{}
		var scalar any
		for _, sub := range schema.AllOf {
			v, err := s.walk(ctx, sub, depth+1)
			if err != nil {
				return nil, err
			}
			if m, ok := v.(map[string]any); ok {
				for k, val := range m {
					merged[k] = val
				}
			} else if v != nil {
				scalar = v
			}
		}
		if len(merged) == 0 && scalar != nil {
			return scalar, nil
		}
		return merged, nil
	}
	for _, alternatives := range [][]*parser.Schema{schema.OneOf, schema.AnyOf} {
		if len(alternatives) > 0 {
			return s.walk(ctx, alternatives[0], depth+1)
		}
	}

	switch {
	case schema.Type.Includes("object") || len(schema.Properties) > 0:
		out := make(map[string]any, len(schema.Properties))
		for name, prop := range schema.Properties {
			if prop != nil && prop.WriteOnly {
				continue
			}
			v, err := s.walk(ctx, prop, depth+1)
			if err != nil {
				return nil, err
			}
			if v != nil {
				out[name] = v
			}
		}
		return out, nil
	case schema.Type.Includes("array"):
		item, err := s.walk(ctx, schema.Items, depth+1)
		if err != nil || item == nil {
			return []any{}, err
		}
		return []any{item}, nil
	case schema.Type.Includes("string"):
		return "string", nil
	case schema.Type.Includes("integer"):
		if schema.Minimum != nil {
			return int64(*schema.Minimum), nil
		}
		return int64(0), nil
	case schema.Type.Includes("number"):
		if schema.Minimum != nil {
			return *schema.Minimum, nil
		}
		return 0.0, nil
	case schema.Type.Includes("boolean"):
		return true, nil
	}
	return nil, nil
}
