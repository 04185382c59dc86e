package mcpadapter

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/alexstrat/executable-openapi/internal/maputil"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
)

// converter translates document schemas into tool input schemas, inlining
// references. A reference met again while it is being inlined becomes the
// empty schema.
type converter struct {
	refs     *resolver.Typed
	visiting map[string]bool
}

func newConverter(refs *resolver.Typed) *converter {
	return &converter{refs: refs, visiting: make(map[string]bool)}
}

// parameters returns the object schema grouping specs, nil when there are
// none. required reports whether the group must be sent.
func (c *converter) parameters(ctx context.Context, specs []*parser.Parameter, allRequired bool) (*jsonschema.Schema, bool, error) {
	if len(specs) == 0 {
		return nil, false, nil
	}
	group := &jsonschema.Schema{Type: "object", Properties: make(map[string]*jsonschema.Schema, len(specs))}
	for _, p := range specs {
		s, err := c.schema(ctx, p.Schema)
		if err != nil {
			return nil, false, err
		}
		if p.Description != "" {
			s.Description = p.Description
		}
		if p.Deprecated {
			s.Deprecated = true
		}
		group.Properties[p.Name] = s
		group.PropertyOrder = append(group.PropertyOrder, p.Name)
		if allRequired || p.Required {
			group.Required = append(group.Required, p.Name)
		}
	}
	return group, len(group.Required) > 0, nil
}

func (c *converter) schema(ctx context.Context, s *parser.Schema) (*jsonschema.Schema, error) {
	if s == nil {
		return &jsonschema.Schema{}, nil
	}
	if ref := s.Ref; ref != "" {
		if c.visiting[ref] {
			return &jsonschema.Schema{}, nil
		}
		c.visiting[ref] = true
		defer delete(c.visiting, ref)

		resolved, err := c.refs.Schema(ctx, s)
		if err != nil {
			return nil, err
		}
		s = resolved
	}

	out := &jsonschema.Schema{
		Title:         s.Title,
		Description:   s.Description,
		Format:        s.Format,
		Enum:          s.Enum,
		MultipleOf:    s.MultipleOf,
		Minimum:       s.Minimum,
		Maximum:       s.Maximum,
		MinLength:     s.MinLength,
		MaxLength:     s.MaxLength,
		Pattern:       s.Pattern,
		MinItems:      s.MinItems,
		MaxItems:      s.MaxItems,
		UniqueItems:   s.UniqueItems,
		MinProperties: s.MinProperties,
		MaxProperties: s.MaxProperties,
		Required:      s.Required,
		ReadOnly:      s.ReadOnly,
		WriteOnly:     s.WriteOnly,
	}

	types := []string(s.Type)
	if s.Nullable && len(types) > 0 && !s.Type.Includes("null") {
		types = append(append([]string(nil), types...), "null")
	}
	switch len(types) {
	case 0:
	case 1:
		out.Type = types[0]
	default:
		out.Types = types
	}

	if s.Const != nil {
		v := s.Const
		out.Const = &v
	}
	if s.Default != nil {
		data, err := json.Marshal(s.Default)
		if err == nil {
			out.Default = data
		}
	}
	if s.Example != nil {
		out.Examples = []any{s.Example}
	}
	exclusiveBound(s.ExclusiveMinimum, &out.Minimum, &out.ExclusiveMinimum)
	exclusiveBound(s.ExclusiveMaximum, &out.Maximum, &out.ExclusiveMaximum)

	var err error
	if s.Items != nil {
		if out.Items, err = c.schema(ctx, s.Items); err != nil {
			return nil, err
		}
	}
	if len(s.Properties) > 0 {
		names := maputil.SortedKeys(s.Properties)
		out.Properties = make(map[string]*jsonschema.Schema, len(names))
		for _, name := range names {
			if out.Properties[name], err = c.schema(ctx, s.Properties[name]); err != nil {
				return nil, err
			}
		}
		out.PropertyOrder = names
	}
	if ap := s.AdditionalProperties; ap != nil {
		switch {
		case ap.Schema != nil:
			if out.AdditionalProperties, err = c.schema(ctx, ap.Schema); err != nil {
				return nil, err
			}
		case !ap.Allowed:
			out.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
		}
	}
	if out.AllOf, err = c.schemas(ctx, s.AllOf); err != nil {
		return nil, err
	}
	if out.AnyOf, err = c.schemas(ctx, s.AnyOf); err != nil {
		return nil, err
	}
	if out.OneOf, err = c.schemas(ctx, s.OneOf); err != nil {
		return nil, err
	}
	if s.Not != nil {
		if out.Not, err = c.schema(ctx, s.Not); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *converter) schemas(ctx context.Context, in []*parser.Schema) ([]*jsonschema.Schema, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]*jsonschema.Schema, len(in))
	for i, s := range in {
		converted, err := c.schema(ctx, s)
		if err != nil {
			return nil, err
		}
		out[i] = converted
	}
	return out, nil
}

// exclusiveBound maps an OAS 3.0 boolean or OAS 3.1 numeric exclusive bound
// onto the numeric form.
func exclusiveBound(v any, bound, exclusive **float64) {
	switch v := v.(type) {
	case bool:
		if v && *bound != nil {
			*exclusive = *bound
			*bound = nil
		}
	case int:
		f := float64(v)
		*exclusive = &f
	case int64:
		f := float64(v)
		*exclusive = &f
	case float64:
		*exclusive = &v
	}
}
