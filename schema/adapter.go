package schema

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/alexstrat/executable-openapi/parser"
)

// RootKey is the property the Adapter stores the validated value under.
const RootKey = "ROOT"

// Adapter validates any value, scalars included, with full coercion
// support, and memoizes compiled validators per schema. An Adapter is safe
// for concurrent use; concurrent first uses of a schema compile it once.
type Adapter struct {
	compiler Compiler
	cache    sync.Map // *parser.Schema -> Validator
	group    singleflight.Group
}

// NewAdapter returns an Adapter over c. A nil c selects NewEngine().
func NewAdapter(c Compiler) *Adapter {
	if c == nil {
		c = NewEngine()
	}
	return &Adapter{compiler: c}
}

// Compile implements Compiler. The returned validator expects the bare value
// and reports errors as if it had been validated directly.
func (a *Adapter) Compile(ctx context.Context, s *parser.Schema) (Validator, error) {
	if v, ok := a.cache.Load(s); ok {
		return v.(Validator), nil
	}

	v, err, _ := a.group.Do(fmt.Sprintf("%p", s), func() (any, error) {
		if v, ok := a.cache.Load(s); ok {
			return v, nil
		}
		inner, err := a.compiler.Compile(ctx, wrap(s))
		if err != nil {
			return nil, err
		}
		v := rootValidator{inner: inner}
		a.cache.Store(s, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Validator), nil
}

// Validate compiles s if needed and validates data against it.
func (a *Adapter) Validate(ctx context.Context, s *parser.Schema, data any) (Result, error) {
	v, err := a.Compile(ctx, s)
	if err != nil {
		return Result{}, err
	}
	return v.Validate(data), nil
}

func wrap(s *parser.Schema) *parser.Schema {
	return &parser.Schema{
		Type:                 parser.NewSchemaType("object"),
		AdditionalProperties: parser.AdditionalPropertiesAllowed(false),
		Properties:           map[string]*parser.Schema{RootKey: s},
	}
}

type rootValidator struct {
	inner Validator
}

func (r rootValidator) Validate(data any) Result {
	res := r.inner.Validate(map[string]any{RootKey: data})

	out := data
	if m, ok := res.Data.(map[string]any); ok {
		out = m[RootKey]
	}

	var errs []Error
	if len(res.Errors) > 0 {
		errs = make([]Error, len(res.Errors))
		for i, e := range res.Errors {
			e.InstancePath = unwrapInstancePath(e.InstancePath)
			e.SchemaPath = unwrapSchemaPath(e.SchemaPath)
			errs[i] = e
		}
	}
	return Result{Valid: res.Valid, Errors: errs, Data: out}
}

func unwrapInstancePath(p string) string {
	const prefix = "/" + RootKey
	if p == prefix {
		return ""
	}
	if strings.HasPrefix(p, prefix+"/") {
		return p[len(prefix):]
	}
	return p
}

func unwrapSchemaPath(p string) string {
	const prefix = "#/properties/" + RootKey
	if p == prefix {
		return "#"
	}
	if strings.HasPrefix(p, prefix+"/") {
		return "#" + p[len(prefix):]
	}
	return p
}
