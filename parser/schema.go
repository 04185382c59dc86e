package parser

import (
	"encoding/json"
	"fmt"

	"go.yaml.in/yaml/v4"
)

// Schema is the subset of JSON Schema used by OpenAPI 3.0 and 3.1 documents
// to describe parameters and request bodies.
type Schema struct {
	Ref         string `yaml:"$ref,omitempty" json:"$ref,omitempty"`
	Title       string `yaml:"title,omitempty" json:"title,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Type     SchemaType `yaml:"type,omitempty" json:"type,omitempty"`
	Format   string     `yaml:"format,omitempty" json:"format,omitempty"`
	Nullable bool       `yaml:"nullable,omitempty" json:"nullable,omitempty"` // OAS 3.0
	Enum     []any      `yaml:"enum,omitempty" json:"enum,omitempty"`
	Const    any        `yaml:"const,omitempty" json:"const,omitempty"`
	Default  any        `yaml:"default,omitempty" json:"default,omitempty"`
	Example  any        `yaml:"example,omitempty" json:"example,omitempty"`

	// Numeric
	MultipleOf       *float64 `yaml:"multipleOf,omitempty" json:"multipleOf,omitempty"`
	Minimum          *float64 `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum          *float64 `yaml:"maximum,omitempty" json:"maximum,omitempty"`
	ExclusiveMinimum any      `yaml:"exclusiveMinimum,omitempty" json:"exclusiveMinimum,omitempty"` // bool (3.0) or number (3.1)
	ExclusiveMaximum any      `yaml:"exclusiveMaximum,omitempty" json:"exclusiveMaximum,omitempty"` // bool (3.0) or number (3.1)

	// String
	MinLength *int   `yaml:"minLength,omitempty" json:"minLength,omitempty"`
	MaxLength *int   `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
	Pattern   string `yaml:"pattern,omitempty" json:"pattern,omitempty"`

	// Array
	Items       *Schema `yaml:"items,omitempty" json:"items,omitempty"`
	MinItems    *int    `yaml:"minItems,omitempty" json:"minItems,omitempty"`
	MaxItems    *int    `yaml:"maxItems,omitempty" json:"maxItems,omitempty"`
	UniqueItems bool    `yaml:"uniqueItems,omitempty" json:"uniqueItems,omitempty"`

	// Object
	Properties           map[string]*Schema    `yaml:"properties,omitempty" json:"properties,omitempty"`
	Required             []string              `yaml:"required,omitempty" json:"required,omitempty"`
	AdditionalProperties *AdditionalProperties `yaml:"additionalProperties,omitempty" json:"additionalProperties,omitempty"`
	MinProperties        *int                  `yaml:"minProperties,omitempty" json:"minProperties,omitempty"`
	MaxProperties        *int                  `yaml:"maxProperties,omitempty" json:"maxProperties,omitempty"`

	// Composition
	AllOf []*Schema `yaml:"allOf,omitempty" json:"allOf,omitempty"`
	AnyOf []*Schema `yaml:"anyOf,omitempty" json:"anyOf,omitempty"`
	OneOf []*Schema `yaml:"oneOf,omitempty" json:"oneOf,omitempty"`
	Not   *Schema   `yaml:"not,omitempty" json:"not,omitempty"`

	ReadOnly  bool `yaml:"readOnly,omitempty" json:"readOnly,omitempty"`
	WriteOnly bool `yaml:"writeOnly,omitempty" json:"writeOnly,omitempty"`

	Extra map[string]any `yaml:",inline" json:"-"`
}

// SchemaType holds the value of the "type" keyword. OAS 3.0 documents use a
// single string, OAS 3.1 documents may use a list.
type SchemaType []string

// NewSchemaType builds a SchemaType from one or more JSON types.
func NewSchemaType(types ...string) SchemaType {
	return SchemaType(types)
}

// Includes reports whether typ is one of the declared types.
func (t SchemaType) Includes(typ string) bool {
	for _, v := range t {
		if v == typ {
			return true
		}
	}
	return false
}

// UnmarshalYAML accepts a scalar or a sequence.
func (t *SchemaType) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*t = SchemaType{node.Value}
		return nil
	case yaml.SequenceNode:
		var types []string
		if err := node.Decode(&types); err != nil {
			return err
		}
		*t = types
		return nil
	default:
		return fmt.Errorf("schema type must be a string or a list of strings, got line %d", node.Line)
	}
}

// MarshalYAML renders a single type as a scalar.
func (t SchemaType) MarshalYAML() (any, error) {
	if len(t) == 1 {
		return t[0], nil
	}
	return []string(t), nil
}

// MarshalJSON renders a single type as a string.
func (t SchemaType) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

// UnmarshalJSON accepts a string or an array.
func (t *SchemaType) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = SchemaType{single}
		return nil
	}
	var types []string
	if err := json.Unmarshal(data, &types); err != nil {
		return err
	}
	*t = types
	return nil
}

// AdditionalProperties is either a boolean or a schema.
type AdditionalProperties struct {
	Allowed bool
	Schema  *Schema
}

// AdditionalPropertiesAllowed returns an AdditionalProperties set to a boolean.
func AdditionalPropertiesAllowed(allowed bool) *AdditionalProperties {
	return &AdditionalProperties{Allowed: allowed}
}

// AdditionalPropertiesSchema returns an AdditionalProperties constrained by s.
func AdditionalPropertiesSchema(s *Schema) *AdditionalProperties {
	return &AdditionalProperties{Allowed: true, Schema: s}
}

// UnmarshalYAML accepts a boolean or a schema mapping.
func (a *AdditionalProperties) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var allowed bool
		if err := node.Decode(&allowed); err != nil {
			return fmt.Errorf("additionalProperties must be a boolean or a schema: %w", err)
		}
		*a = AdditionalProperties{Allowed: allowed}
		return nil
	}
	var s Schema
	if err := node.Decode(&s); err != nil {
		return err
	}
	*a = AdditionalProperties{Allowed: true, Schema: &s}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (a AdditionalProperties) MarshalYAML() (any, error) {
	if a.Schema != nil {
		return a.Schema, nil
	}
	return a.Allowed, nil
}

// MarshalJSON implements json.Marshaler.
func (a AdditionalProperties) MarshalJSON() ([]byte, error) {
	if a.Schema != nil {
		return json.Marshal(a.Schema)
	}
	return json.Marshal(a.Allowed)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *AdditionalProperties) UnmarshalJSON(data []byte) error {
	var allowed bool
	if err := json.Unmarshal(data, &allowed); err == nil {
		*a = AdditionalProperties{Allowed: allowed}
		return nil
	}
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = AdditionalProperties{Allowed: true, Schema: &s}
	return nil
}

// Float64 returns a pointer to v. Useful when building schemas in code.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v. Useful when building schemas in code.
func Int(v int) *int { return &v }
