package execution

import "context"

type valueKey[T any] struct{}

// WithValue attaches a caller value to ctx. Values are keyed by their type,
// so handlers retrieve them with Value[T].
func WithValue[T any](ctx context.Context, v T) context.Context {
	return context.WithValue(ctx, valueKey[T]{}, v)
}

// Value returns the value of type T attached with WithValue.
func Value[T any](ctx context.Context) (T, bool) {
	v, ok := ctx.Value(valueKey[T]{}).(T)
	return v, ok
}
