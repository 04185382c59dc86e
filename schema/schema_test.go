package schema

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v4"

	"github.com/alexstrat/executable-openapi/oaserrors"
	"github.com/alexstrat/executable-openapi/parser"
	"github.com/alexstrat/executable-openapi/resolver"
)

func mustSchema(t *testing.T, src string) *parser.Schema {
	t.Helper()
	var s parser.Schema
	require.NoError(t, yaml.Unmarshal([]byte(src), &s))
	return &s
}

func validate(t *testing.T, a *Adapter, s *parser.Schema, data any) Result {
	t.Helper()
	res, err := a.Validate(context.Background(), s, data)
	require.NoError(t, err)
	return res
}

// =============================================================================
// Coercion through the root wrapper
// =============================================================================

func TestAdapterCoercion(t *testing.T) {
	a := NewAdapter(nil)
	positive := mustSchema(t, "type: integer\nminimum: 1")

	tests := []struct {
		name    string
		schema  *parser.Schema
		input   any
		want    any
		message string
	}{
		{name: "integer from string", schema: positive, input: "5", want: int64(5)},
		{name: "not an integer", schema: positive, input: "a", message: "must be integer"},
		{name: "below minimum", schema: positive, input: "0", message: "must be >= 1"},
		{name: "fraction is not integer", schema: positive, input: "1.5", message: "must be integer"},
		{name: "integer beyond int64", schema: mustSchema(t, "type: integer\nmaximum: 100"), input: "99999999999999999999", message: "must be integer"},
		{name: "integer below int64", schema: mustSchema(t, "type: integer"), input: "-99999999999999999999", message: "must be integer"},
		{name: "integer beyond 2^53 keeps precision", schema: mustSchema(t, "type: integer"), input: "9007199254740993", want: int64(9007199254740993)},
		{name: "largest int64", schema: mustSchema(t, "type: integer"), input: "9223372036854775807", want: int64(9223372036854775807)},
		{name: "integer in exponent form", schema: positive, input: "1e3", want: int64(1000)},
		{name: "integer with zero fraction", schema: positive, input: "2.0", want: int64(2)},
		{name: "inexact exponent form", schema: mustSchema(t, "type: integer"), input: "1e20", message: "must be integer"},
		{name: "number", schema: mustSchema(t, "type: number"), input: "1.5", want: 1.5},
		{name: "boolean true", schema: mustSchema(t, "type: boolean"), input: "true", want: true},
		{name: "boolean from flag", schema: mustSchema(t, "type: boolean"), input: true, want: true},
		{name: "boolean garbage", schema: mustSchema(t, "type: boolean"), input: "yes", message: "must be boolean"},
		{name: "string from number", schema: mustSchema(t, "type: string"), input: 12, want: "12"},
		{name: "null from empty string", schema: mustSchema(t, "type: 'null'"), input: "", want: nil},
		{name: "first coercible type wins", schema: mustSchema(t, "type: [integer, string]"), input: "7", want: int64(7)},
		{name: "multiple types message", schema: mustSchema(t, "type: [integer, boolean]"), input: "x", message: "must be integer,boolean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate(t, a, tt.schema, tt.input)
			if tt.message != "" {
				require.False(t, res.Valid)
				require.NotEmpty(t, res.Errors)
				assert.Equal(t, tt.message, res.Errors[0].Message)
				assert.Equal(t, "", res.Errors[0].InstancePath)
				return
			}
			require.True(t, res.Valid, "errors: %v", res.Errors)
			assert.Equal(t, tt.want, res.Data)
		})
	}
}

func TestEngineDoesNotCoerceRoot(t *testing.T) {
	v, err := NewEngine().Compile(context.Background(), mustSchema(t, "type: integer"))
	require.NoError(t, err)

	res := v.Validate("5")
	assert.False(t, res.Valid)
	assert.Equal(t, "must be integer", res.Errors[0].Message)
}

func TestEngineWithoutCoercion(t *testing.T) {
	a := NewAdapter(NewEngine(WithCoercion(false)))
	res := validate(t, a, mustSchema(t, "type: integer"), "5")
	assert.False(t, res.Valid)
}

// =============================================================================
// Keywords
// =============================================================================

func TestEngineKeywords(t *testing.T) {
	a := NewAdapter(NewEngine())

	tests := []struct {
		name    string
		schema  string
		input   any
		message string
		path    string
	}{
		{name: "maximum", schema: "type: number\nmaximum: 3", input: 4, message: "must be <= 3"},
		{name: "exclusive maximum 3.0", schema: "type: number\nmaximum: 3\nexclusiveMaximum: true", input: 3, message: "must be < 3"},
		{name: "exclusive minimum 3.1", schema: "type: number\nexclusiveMinimum: 2.5", input: 2.5, message: "must be > 2.5"},
		{name: "multipleOf", schema: "type: integer\nmultipleOf: 5", input: 12, message: "must be multiple of 5"},
		{name: "minLength", schema: "type: string\nminLength: 3", input: "ab", message: "must NOT have fewer than 3 characters"},
		{name: "maxLength counts runes", schema: "type: string\nmaxLength: 2", input: "héé", message: "must NOT have more than 2 characters"},
		{name: "pattern", schema: "type: string\npattern: '^[a-z]+$'", input: "A1", message: `must match pattern "^[a-z]+$"`},
		{name: "format", schema: "type: string\nformat: email", input: "nope", message: `must match format "email"`},
		{name: "enum", schema: "enum: [a, b]", input: "c", message: "must be equal to one of the allowed values"},
		{name: "const", schema: "const: 3", input: 4.0, message: "must be equal to constant"},
		{name: "required", schema: "type: object\nrequired: [name]", input: map[string]any{}, message: "must have required property 'name'"},
		{name: "minItems", schema: "type: array\nminItems: 2", input: []any{1}, message: "must NOT have fewer than 2 items"},
		{name: "maxItems", schema: "type: array\nmaxItems: 1", input: []any{1, 2}, message: "must NOT have more than 1 items"},
		{name: "uniqueItems", schema: "type: array\nuniqueItems: true", input: []any{1, 2, 1.0}, message: "must NOT have duplicate items (items ## 0 and 2 are identical)"},
		{name: "nested path", schema: "type: object\nproperties:\n  foo:\n    type: number", input: map[string]any{"foo": "bar"}, message: "must be number", path: "/foo"},
		{name: "item path", schema: "type: array\nitems:\n  type: integer", input: []any{"1", "x"}, message: "must be integer", path: "/1"},
		{name: "oneOf none", schema: "oneOf:\n  - type: string\n  - type: boolean", input: []any{}, message: "must match exactly one schema in oneOf"},
		{name: "oneOf both", schema: "oneOf:\n  - type: number\n  - type: integer", input: 1, message: "must match exactly one schema in oneOf"},
		{name: "anyOf", schema: "anyOf:\n  - type: string\n  - type: boolean", input: []any{}, message: "must match a schema in anyOf"},
		{name: "not", schema: "not:\n  type: string", input: "x", message: "must NOT be valid"},
		{name: "allOf", schema: "allOf:\n  - type: integer\n  - minimum: 10", input: 3, message: "must be >= 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate(t, a, mustSchema(t, tt.schema), tt.input)
			require.False(t, res.Valid)
			last := res.Errors[len(res.Errors)-1]
			assert.Equal(t, tt.message, last.Message)
			assert.Equal(t, tt.path, last.InstancePath)
		})
	}

	t.Run("multipleOf tolerates float rounding", func(t *testing.T) {
		res := validate(t, a, mustSchema(t, "type: number\nmultipleOf: 0.1"), 0.3)
		assert.True(t, res.Valid, "errors: %v", res.Errors)

		res = validate(t, a, mustSchema(t, "type: number\nmultipleOf: 0.01"), 19.99)
		assert.True(t, res.Valid, "errors: %v", res.Errors)

		res = validate(t, a, mustSchema(t, "type: number\nmultipleOf: 1"), 1e300)
		assert.True(t, res.Valid, "errors: %v", res.Errors)

		res = validate(t, a, mustSchema(t, "type: number\nmultipleOf: 0.1"), 0.35)
		assert.False(t, res.Valid)
	})

	t.Run("valid values pass", func(t *testing.T) {
		res := validate(t, a, mustSchema(t, "type: string\nformat: uuid"), "0b6c5c58-5d4e-4c1e-9bb6-7d7f0e2f9b9e")
		assert.True(t, res.Valid)

		res = validate(t, a, mustSchema(t, "anyOf:\n  - type: integer\n  - type: boolean"), "true")
		assert.True(t, res.Valid)
		assert.Equal(t, true, res.Data)
	})
}

func TestEngineNullable(t *testing.T) {
	a := NewAdapter(nil)

	res := validate(t, a, mustSchema(t, "type: string\nnullable: true"), nil)
	assert.True(t, res.Valid)

	res = validate(t, a, mustSchema(t, "type: [string, 'null']"), nil)
	assert.True(t, res.Valid)

	res = validate(t, NewAdapter(NewEngine(WithCoercion(false))), mustSchema(t, "type: string"), nil)
	assert.False(t, res.Valid)
}

func TestEngineAllErrors(t *testing.T) {
	s := mustSchema(t, "type: object\nrequired: [a, b]")

	res := validate(t, NewAdapter(NewEngine()), s, map[string]any{})
	assert.Len(t, res.Errors, 1)

	res = validate(t, NewAdapter(NewEngine(WithAllErrors(true))), s, map[string]any{})
	assert.Len(t, res.Errors, 2)
}

// =============================================================================
// Defaults and additional properties
// =============================================================================

func TestEngineObjects(t *testing.T) {
	s := mustSchema(t, `
type: object
additionalProperties: false
properties:
  limit:
    type: integer
    default: 10
  tags:
    type: array
    items:
      type: string
`)

	t.Run("defaults and removal", func(t *testing.T) {
		input := map[string]any{"tags": []any{1, "x"}, "extra": true}
		res := validate(t, NewAdapter(nil), s, input)
		require.True(t, res.Valid, "errors: %v", res.Errors)
		assert.Equal(t, map[string]any{"limit": 10, "tags": []any{"1", "x"}}, res.Data)
		assert.Contains(t, input, "extra", "the caller's value is left untouched")
		assert.Equal(t, 1, input["tags"].([]any)[0])
	})

	t.Run("additional properties reported", func(t *testing.T) {
		a := NewAdapter(NewEngine(WithRemoveAdditional(false), WithDefaults(false)))
		res := validate(t, a, s, map[string]any{"extra": true})
		require.False(t, res.Valid)
		assert.Equal(t, "must NOT have additional properties", res.Errors[0].Message)
	})

	t.Run("additional properties schema", func(t *testing.T) {
		meta := mustSchema(t, "type: object\nadditionalProperties:\n  type: integer")
		res := validate(t, NewAdapter(nil), meta, map[string]any{"a": "1"})
		require.True(t, res.Valid)
		assert.Equal(t, map[string]any{"a": int64(1)}, res.Data)
	})
}

// =============================================================================
// References, formats and memoization
// =============================================================================

const componentsDoc = `
openapi: 3.1.0
info: {title: t, version: '1'}
paths: {}
components:
  schemas:
    ID:
      type: integer
      minimum: 1
    Node:
      type: object
      properties:
        id:
          $ref: '#/components/schemas/ID'
        children:
          type: array
          items:
            $ref: '#/components/schemas/Node'
`

func TestEngineReferences(t *testing.T) {
	doc, err := parser.Parse([]byte(componentsDoc))
	require.NoError(t, err)
	a := NewAdapter(NewEngine(WithResolver(resolver.NewLocal(doc))))

	t.Run("recursive schema", func(t *testing.T) {
		node := &parser.Schema{Ref: "#/components/schemas/Node"}
		res := validate(t, a, node, map[string]any{
			"id":       "3",
			"children": []any{map[string]any{"id": 0}},
		})
		require.False(t, res.Valid)
		assert.Equal(t, "/children/0/id", res.Errors[0].InstancePath)
		assert.Equal(t, "must be >= 1", res.Errors[0].Message)
	})

	t.Run("coerces through references", func(t *testing.T) {
		res := validate(t, a, &parser.Schema{Ref: "#/components/schemas/ID"}, "4")
		require.True(t, res.Valid)
		assert.Equal(t, int64(4), res.Data)
	})

	t.Run("missing reference", func(t *testing.T) {
		_, err := a.Compile(context.Background(), &parser.Schema{Ref: "#/components/schemas/Nope"})
		assert.ErrorIs(t, err, oaserrors.ErrReference)
	})

	t.Run("no resolver", func(t *testing.T) {
		_, err := NewEngine().Compile(context.Background(), &parser.Schema{Ref: "#/components/schemas/ID"})
		assert.ErrorIs(t, err, oaserrors.ErrReference)
	})
}

func TestEngineFormats(t *testing.T) {
	even := func(v any) bool {
		n, ok := v.(int64)
		return !ok || n%2 == 0
	}
	a := NewAdapter(NewEngine(WithFormat("even", even)))
	s := mustSchema(t, "type: integer\nformat: even")

	assert.True(t, validate(t, a, s, "4").Valid)
	assert.False(t, validate(t, a, s, "3").Valid)

	unknown := mustSchema(t, "type: string\nformat: color")
	assert.True(t, validate(t, a, unknown, "red").Valid, "unknown formats are not checked")

	assert.False(t, validate(t, a, mustSchema(t, "type: integer\nformat: int32"), "4294967296").Valid)
	assert.True(t, validate(t, a, mustSchema(t, "type: string\nformat: date"), "2024-02-29").Valid)
	assert.False(t, validate(t, a, mustSchema(t, "type: string\nformat: ipv4"), "::1").Valid)
}

func TestEngineInvalidPattern(t *testing.T) {
	_, err := NewEngine().Compile(context.Background(), &parser.Schema{Pattern: "(["})
	assert.ErrorIs(t, err, oaserrors.ErrConfig)
}

func TestAdapterMemoizes(t *testing.T) {
	var compiles atomic.Int32
	engine := NewEngine()
	a := NewAdapter(CompilerFunc(func(ctx context.Context, s *parser.Schema) (Validator, error) {
		compiles.Add(1)
		return engine.Compile(ctx, s)
	}))
	s := mustSchema(t, "type: integer")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := a.Validate(context.Background(), s, "1")
			assert.NoError(t, err)
			assert.True(t, res.Valid)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), compiles.Load())

	other := mustSchema(t, "type: integer")
	_, err := a.Compile(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, int32(2), compiles.Load())
}

func TestAdapterPaths(t *testing.T) {
	assert.Equal(t, "", unwrapInstancePath("/ROOT"))
	assert.Equal(t, "/a/0", unwrapInstancePath("/ROOT/a/0"))
	assert.Equal(t, "/ROOTS", unwrapInstancePath("/ROOTS"))
	assert.Equal(t, "#/type", unwrapSchemaPath("#/properties/ROOT/type"))
	assert.Equal(t, "#/components/schemas/ID/minimum", unwrapSchemaPath("#/components/schemas/ID/minimum"))
}

// =============================================================================
// kin-openapi compiler
// =============================================================================

func TestKinCompiler(t *testing.T) {
	doc, err := parser.Parse([]byte(componentsDoc))
	require.NoError(t, err)
	a := NewAdapter(NewKinCompiler(resolver.NewLocal(doc)))

	s := mustSchema(t, `
type: object
required: [id]
properties:
  id:
    $ref: '#/components/schemas/ID'
  name:
    type: [string, 'null']
  ratio:
    type: number
    exclusiveMinimum: 0
`)

	t.Run("valid", func(t *testing.T) {
		res := validate(t, a, s, map[string]any{"id": 2, "name": nil, "ratio": 0.5})
		assert.True(t, res.Valid, "errors: %v", res.Errors)
	})

	t.Run("no coercion", func(t *testing.T) {
		res := validate(t, a, s, map[string]any{"id": "2"})
		require.False(t, res.Valid)
		assert.Equal(t, "/id", res.Errors[0].InstancePath)
	})

	t.Run("exclusive bound", func(t *testing.T) {
		res := validate(t, a, s, map[string]any{"id": 2, "ratio": 0})
		assert.False(t, res.Valid)
	})

	t.Run("missing reference", func(t *testing.T) {
		_, err := NewKinCompiler(nil).Compile(context.Background(), &parser.Schema{Ref: "#/x"})
		assert.ErrorIs(t, err, oaserrors.ErrReference)
	})
}
