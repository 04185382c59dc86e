// Package schema validates and coerces values against OpenAPI schemas.
//
// A [Compiler] turns a [parser.Schema] into a [Validator]. Two compilers are
// provided: the default [Engine], which coerces strings from paths and query
// strings into the declared types and fills defaults, and a strict compiler
// backed by kin-openapi ([NewKinCompiler]).
//
// Engines only coerce values held by an object or an array, since a scalar
// can not be replaced in place. The [Adapter] lifts that restriction by
// validating {"ROOT": value} against a wrapping object schema and unwrapping
// the result, so parameters and scalar bodies get the same treatment as
// object members.
package schema

import (
	"context"
	"strings"

	"github.com/alexstrat/executable-openapi/parser"
)

// Error is a single validation failure.
type Error struct {
	// InstancePath is the JSON pointer of the failing value ("" for the root)
	InstancePath string `json:"instancePath"`
	// SchemaPath is the JSON pointer of the failing keyword in the schema
	SchemaPath string `json:"schemaPath"`
	// Keyword is the failing schema keyword (e.g., "type", "minimum")
	Keyword string `json:"keyword"`
	// Message describes the failure (e.g., "must be integer")
	Message string `json:"message"`
}

// Result is the outcome of a validation.
type Result struct {
	Valid  bool
	Errors []Error
	// Data is the validated value after coercion and default filling.
	Data any
}

// Messages returns the messages of the errors.
func (r Result) Messages() []string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return msgs
}

// Validator validates values against one compiled schema. Implementations
// must be safe for concurrent use and must not modify data.
type Validator interface {
	Validate(data any) Result
}

// Compiler compiles schemas into validators.
type Compiler interface {
	Compile(ctx context.Context, s *parser.Schema) (Validator, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(data any) Result

// Validate implements Validator.
func (f ValidatorFunc) Validate(data any) Result {
	return f(data)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, s *parser.Schema) (Validator, error)

// Compile implements Compiler.
func (f CompilerFunc) Compile(ctx context.Context, s *parser.Schema) (Validator, error) {
	return f(ctx, s)
}

// escapePointer escapes a JSON pointer reference token.
func escapePointer(token string) string {
	if !strings.ContainsAny(token, "~/") {
		return token
	}
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}
