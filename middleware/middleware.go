// Package middleware wraps operation handlers with cross-cutting behavior.
//
// A [Func] receives the handler it wraps as next: it may inspect or rewrite
// the parameters and the body, answer without calling next, or call next and
// post-process its response. [Compose] applies middlewares to every handler
// of a [execution.HandlersMap], the first middleware being the outermost.
//
// The package also provides the middlewares executing the contract of a
// document: [Security], [PathParameters], [QueryParameters] and
// [RequestBody].
package middleware

import (
	"context"

	"github.com/alexstrat/executable-openapi/execution"
)

// Func is a middleware handler. Calling next continues the chain.
type Func func(ctx context.Context, next execution.Handler, params execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error)

type kind int

const (
	kindGlobal kind = iota
	kindMap
)

// Middleware is either a global Func, applied to every handler, or a Map
// of Funcs selected per handler. Build one with Global, ByOperationID,
// ByPathMethod, Default or Mapped.
type Middleware struct {
	kind kind
	fn   Func
	m    Map
}

// Map selects middleware handlers per operation.
type Map struct {
	// Operations is looked up first, by operationId
	Operations map[string]Func
	// Paths is looked up next, by path template and method
	Paths map[string]map[execution.Method]Func
	// Default applies to the default handler only
	Default Func
}

// Global returns a middleware applied to every handler.
func Global(fn Func) Middleware {
	return Middleware{kind: kindGlobal, fn: fn}
}

// Mapped returns a middleware selecting its handler from m.
func Mapped(m Map) Middleware {
	return Middleware{kind: kindMap, m: m}
}

// ByOperationID returns a middleware applied to the operations of m.
func ByOperationID(m map[string]Func) Middleware {
	return Mapped(Map{Operations: m})
}

// ByPathMethod returns a middleware applied to the path templates and
// methods of m.
func ByPathMethod(m map[string]map[execution.Method]Func) Middleware {
	return Mapped(Map{Paths: m})
}

// Default returns a middleware applied to the default handler only.
func Default(fn Func) Middleware {
	return Mapped(Map{Default: fn})
}

// lookup returns the Func wrapping a handler, or nil.
func (mw Middleware) lookup(isDefault bool, info *execution.OperationInfo) Func {
	if mw.kind == kindGlobal {
		return mw.fn
	}
	if isDefault {
		return mw.m.Default
	}
	if info.Operation != nil && info.Operation.OperationID != "" {
		if fn := mw.m.Operations[info.Operation.OperationID]; fn != nil {
			return fn
		}
	}
	return mw.m.Paths[info.Path][info.Method]
}

// Compose returns a copy of handlers where every handler, the default one
// included, is wrapped by mws. With middlewares [A, B] a request runs
// A, then B, then the handler, and the response flows back through B then A.
func Compose(handlers execution.HandlersMap, mws ...Middleware) execution.HandlersMap {
	for i := len(mws) - 1; i >= 0; i-- {
		handlers = wrapAll(handlers, mws[i])
	}
	return handlers
}

func wrapAll(handlers execution.HandlersMap, mw Middleware) execution.HandlersMap {
	var out execution.HandlersMap

	if handlers.Operations != nil {
		out.Operations = make(map[string]execution.Handler, len(handlers.Operations))
		for id, h := range handlers.Operations {
			if h != nil {
				out.Operations[id] = wrap(h, mw, false)
			}
		}
	}
	if handlers.Paths != nil {
		out.Paths = make(map[string]map[execution.Method]execution.Handler, len(handlers.Paths))
		for path, methods := range handlers.Paths {
			wrapped := make(map[execution.Method]execution.Handler, len(methods))
			for method, h := range methods {
				if h != nil {
					wrapped[method] = wrap(h, mw, false)
				}
			}
			out.Paths[path] = wrapped
		}
	}
	if handlers.Default != nil {
		out.Default = wrap(handlers.Default, mw, true)
	}
	return out
}

func wrap(next execution.Handler, mw Middleware, isDefault bool) execution.Handler {
	return func(ctx context.Context, params execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error) {
		fn := mw.lookup(isDefault, info)
		if fn == nil {
			return next(ctx, params, body, info)
		}
		return fn(ctx, next, params, body, info)
	}
}
