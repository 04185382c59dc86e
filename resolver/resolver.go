// Package resolver resolves $ref pointers found in an OpenAPI document.
//
// The default [Local] resolver only handles same-document JSON pointers
// ("#/components/schemas/Pet") and follows chains of references. Callers
// needing remote references plug their own [Resolver].
package resolver

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/alexstrat/executable-openapi/oaserrors"
	"github.com/alexstrat/executable-openapi/parser"
)

// Resolver resolves a $ref to the node it points to. Resolved nodes are
// generic trees (map[string]any, []any and scalars).
type Resolver interface {
	Resolve(ctx context.Context, ref string) (any, error)
}

// Func adapts a function to the Resolver interface.
type Func func(ctx context.Context, ref string) (any, error)

// Resolve implements Resolver.
func (f Func) Resolve(ctx context.Context, ref string) (any, error) {
	return f(ctx, ref)
}

// DefaultMaxRefDepth bounds the length of a reference chain.
const DefaultMaxRefDepth = 100

// Local resolves local JSON pointers against one document.
type Local struct {
	doc      *parser.Document
	maxDepth int
}

// NewLocal returns a resolver for the local references of doc.
func NewLocal(doc *parser.Document) *Local {
	return &Local{doc: doc, maxDepth: DefaultMaxRefDepth}
}

// Resolve implements Resolver. When the target is itself a reference, the
// chain is followed until a non-reference node is found.
func (l *Local) Resolve(ctx context.Context, ref string) (any, error) {
	root, err := l.doc.Raw()
	if err != nil {
		return nil, err
	}

	visited := make(map[string]bool)
	current := ref
	for depth := 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !strings.HasPrefix(current, "#") {
			return nil, &oaserrors.ReferenceError{Ref: current, IsRemote: true}
		}
		if visited[current] {
			return nil, &oaserrors.ReferenceError{Ref: ref, IsCircular: true, Message: "chain loops back to " + current}
		}
		if depth >= l.maxDepth {
			return nil, &oaserrors.ReferenceError{Ref: ref, Message: fmt.Sprintf("reference chain longer than %d", l.maxDepth)}
		}
		visited[current] = true

		node, err := Pointer(root, current)
		if err != nil {
			return nil, &oaserrors.ReferenceError{Ref: current, Message: "reference not found", Cause: err}
		}
		next, ok := refOf(node)
		if !ok {
			return node, nil
		}
		current = next
	}
}

// Pointer evaluates the JSON pointer held in the fragment of ref ("#/a/b")
// against root. Tokens are unescaped per RFC 6901 after URL decoding.
func Pointer(root any, ref string) (any, error) {
	fragment := strings.TrimPrefix(ref, "#")
	if decoded, err := url.PathUnescape(fragment); err == nil {
		fragment = decoded
	}
	if fragment == "" || fragment == "/" {
		return root, nil
	}
	if !strings.HasPrefix(fragment, "/") {
		return nil, fmt.Errorf("invalid JSON pointer %q: must start with '/'", fragment)
	}

	parts := strings.Split(fragment[1:], "/")
	current := root
	for i, part := range parts {
		part = unescapeJSONPointer(part)

		switch v := current.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return nil, fmt.Errorf("missing key %q at #/%s", part, strings.Join(parts[:i], "/"))
			}
			current = next

		case map[any]any:
			next, ok := lookupAnyKey(v, part)
			if !ok {
				return nil, fmt.Errorf("missing key %q at #/%s", part, strings.Join(parts[:i], "/"))
			}
			current = next

		case []any:
			index, err := strconv.Atoi(part)
			if err != nil || index < 0 {
				return nil, fmt.Errorf("invalid array index '%s' at #/%s (must be a non-negative integer)", part, strings.Join(parts[:i], "/"))
			}
			if index >= len(v) {
				return nil, fmt.Errorf("array index %d out of bounds (length %d) at #/%s", index, len(v), strings.Join(parts[:i], "/"))
			}
			current = v[index]

		default:
			return nil, fmt.Errorf("cannot traverse into type %T at #/%s", v, strings.Join(parts[:i], "/"))
		}
	}
	return current, nil
}

func lookupAnyKey(m map[any]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if fmt.Sprint(k) == key {
			return v, true
		}
	}
	return nil, false
}

// refOf returns the $ref of a node when the node is a reference object.
func refOf(node any) (string, bool) {
	switch v := node.(type) {
	case map[string]any:
		ref, ok := v["$ref"].(string)
		return ref, ok
	case map[any]any:
		ref, ok := v["$ref"].(string)
		return ref, ok
	}
	return "", false
}

func unescapeJSONPointer(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	token = strings.ReplaceAll(token, "~0", "~")
	return token
}
