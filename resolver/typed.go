package resolver

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/alexstrat/executable-openapi/oaserrors"
	"github.com/alexstrat/executable-openapi/parser"
)

// Typed decodes resolved nodes into the parser model. Decoded values are
// cached per reference and must be treated as read-only.
type Typed struct {
	r     Resolver
	cache sync.Map // kind + "\x00" + ref -> any
	group singleflight.Group
}

// NewTyped wraps r. A nil r is an error at resolution time.
func NewTyped(r Resolver) *Typed {
	return &Typed{r: r}
}

// Resolver returns the wrapped resolver.
func (t *Typed) Resolver() Resolver {
	return t.r
}

// PathItem returns item itself when it is not a reference.
func (t *Typed) PathItem(ctx context.Context, item *parser.PathItem) (*parser.PathItem, error) {
	if item == nil || item.Ref == "" {
		return item, nil
	}
	return resolveAs[parser.PathItem](ctx, t, "pathItem", item.Ref)
}

// Parameter returns p itself when it is not a reference.
func (t *Typed) Parameter(ctx context.Context, p *parser.Parameter) (*parser.Parameter, error) {
	if p == nil || p.Ref == "" {
		return p, nil
	}
	return resolveAs[parser.Parameter](ctx, t, "parameter", p.Ref)
}

// RequestBody returns rb itself when it is not a reference.
func (t *Typed) RequestBody(ctx context.Context, rb *parser.RequestBody) (*parser.RequestBody, error) {
	if rb == nil || rb.Ref == "" {
		return rb, nil
	}
	return resolveAs[parser.RequestBody](ctx, t, "requestBody", rb.Ref)
}

// Response returns r itself when it is not a reference.
func (t *Typed) Response(ctx context.Context, r *parser.Response) (*parser.Response, error) {
	if r == nil || r.Ref == "" {
		return r, nil
	}
	return resolveAs[parser.Response](ctx, t, "response", r.Ref)
}

// Schema returns s itself when it is not a reference. Only the top level is
// resolved; nested references are left for the schema engine.
func (t *Typed) Schema(ctx context.Context, s *parser.Schema) (*parser.Schema, error) {
	if s == nil || s.Ref == "" {
		return s, nil
	}
	return resolveAs[parser.Schema](ctx, t, "schema", s.Ref)
}

func resolveAs[T any](ctx context.Context, t *Typed, kind, ref string) (*T, error) {
	if t.r == nil {
		return nil, &oaserrors.ReferenceError{Ref: ref, Message: "no resolver configured"}
	}
	key := kind + "\x00" + ref
	if v, ok := t.cache.Load(key); ok {
		return v.(*T), nil
	}

	v, err, _ := t.group.Do(key, func() (any, error) {
		node, err := t.r.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		out := new(T)
		if err := parser.Decode(node, out); err != nil {
			return nil, &oaserrors.ReferenceError{
				Ref:     ref,
				Message: fmt.Sprintf("target is not a valid %s", kind),
				Cause:   err,
			}
		}
		t.cache.Store(key, out)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}
