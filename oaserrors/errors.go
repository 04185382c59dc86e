package oaserrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for use with errors.Is().
// These allow quick checks without type assertions.
var (
	// ErrParse indicates a document parsing failure occurred.
	ErrParse = errors.New("parse error")

	// ErrReference indicates a reference resolution failure.
	ErrReference = errors.New("reference error")

	// ErrCircularReference indicates a circular $ref was detected.
	ErrCircularReference = errors.New("circular reference")

	// ErrConfig indicates an invalid configuration.
	ErrConfig = errors.New("configuration error")

	// ErrNoHandler indicates that a matched operation has no handler.
	ErrNoHandler = errors.New("no handler")

	// ErrNotImplemented indicates a document feature this library does not support.
	ErrNotImplemented = errors.New("not implemented")

	// ErrValidation indicates an execution request does not satisfy the document.
	ErrValidation = errors.New("validation error")

	// ErrInvalidParameter indicates a path or query parameter is missing or invalid.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidRequestBody indicates a request body is missing or invalid.
	ErrInvalidRequestBody = errors.New("invalid request body")

	// ErrForbidden indicates the request does not satisfy the security requirements.
	ErrForbidden = errors.New("forbidden")
)

// ParseError represents a failure to parse an OpenAPI document.
type ParseError struct {
	// Path is the file path or source identifier
	Path string
	// Line is the line number where the error occurred (0 if unknown)
	Line int
	// Message describes the parsing failure
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ParseError) Error() string {
	msg := "parse error"
	if e.Path != "" {
		msg += " in " + e.Path
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// ReferenceError represents a failure to resolve a $ref.
type ReferenceError struct {
	// Ref is the reference string that failed to resolve
	Ref string
	// IsRemote is true when the reference points outside the document
	IsRemote bool
	// IsCircular is true if this error is due to a circular reference
	IsCircular bool
	// Message provides additional context about the failure
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ReferenceError) Error() string {
	if e.IsRemote {
		return e.Ref + " is a remote ref and can not be resolved"
	}
	msg := "reference error"
	if e.IsCircular {
		msg = "circular reference"
	}
	if e.Ref != "" {
		msg += ": " + e.Ref
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ReferenceError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
// Matches ErrReference, and also ErrCircularReference when IsCircular is set.
func (e *ReferenceError) Is(target error) bool {
	if target == ErrReference {
		return true
	}
	return target == ErrCircularReference && e.IsCircular
}

// ConfigError represents an invalid configuration or input.
type ConfigError struct {
	// Option is the name of the problematic configuration option
	Option string
	// Value is the invalid value that was provided (may be nil)
	Value any
	// Message describes the configuration error
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Option != "" {
		msg += " for " + e.Option
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// NoHandlerError is returned when an operation matched a request but neither
// a path+method handler, an operationId handler nor a default handler exists.
// It means the document and the handlers map are out of sync.
type NoHandlerError struct {
	// Path is the matched path template
	Path string
	// Method is the requested method
	Method string
	// OperationID is the operationId of the matched operation, if any
	OperationID string
}

// Error returns a human-readable error message.
func (e *NoHandlerError) Error() string {
	return "no handler found for " + e.Path
}

// Is reports whether target matches this error type.
func (e *NoHandlerError) Is(target error) bool {
	return target == ErrNoHandler || target == ErrConfig
}

// NotImplementedError reports a document construct that cannot be executed,
// such as an unsupported parameter serialization style.
type NotImplementedError struct {
	// Feature names the unsupported construct (e.g., "parameter style")
	Feature string
	// Value is the unsupported value (e.g., "form")
	Value string
	// Location identifies where the construct was found (e.g., "path parameter id")
	Location string
}

// Error returns a human-readable error message.
func (e *NotImplementedError) Error() string {
	msg := "not implemented: " + e.Feature
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Location != "" {
		msg += " for " + e.Location
	}
	return msg
}

// Is reports whether target matches this error type.
func (e *NotImplementedError) Is(target error) bool {
	return target == ErrNotImplemented
}

// ParameterError reports a missing or invalid path/query parameter.
// Middlewares convert it to a response; it is never returned by Execute.
type ParameterError struct {
	// In is the parameter location ("path" or "query")
	In string
	// Name is the parameter name
	Name string
	// Reasons holds one message per validation failure
	Reasons []string
}

// Error returns a human-readable error message.
func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s parameter %s is not valid: %s", e.In, e.Name, e.Message())
}

// Message joins the reasons the way they are rendered in responses.
func (e *ParameterError) Message() string {
	return strings.Join(e.Reasons, " and ")
}

// Is reports whether target matches this error type.
func (e *ParameterError) Is(target error) bool {
	return target == ErrInvalidParameter || target == ErrValidation
}

// RequestBodyError reports a missing, unacceptable or invalid request body.
type RequestBodyError struct {
	// Reasons holds one message per validation failure
	Reasons []string
}

// Error returns a human-readable error message.
func (e *RequestBodyError) Error() string {
	return "request body is not valid: " + e.Message()
}

// Message joins the reasons the way they are rendered in responses.
func (e *RequestBodyError) Message() string {
	return strings.Join(e.Reasons, " and ")
}

// Is reports whether target matches this error type.
func (e *RequestBodyError) Is(target error) bool {
	return target == ErrInvalidRequestBody || target == ErrValidation
}

// SecurityError reports that no security requirement set was satisfied.
type SecurityError struct {
	// SchemeResults maps a security scheme name to the reason it failed
	SchemeResults map[string]string
}

// Error returns a human-readable error message.
func (e *SecurityError) Error() string {
	if len(e.SchemeResults) == 0 {
		return "request not authorized"
	}
	names := make([]string, 0, len(e.SchemeResults))
	for name := range e.SchemeResults {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.SchemeResults[name])
	}
	return "request not authorized: " + strings.Join(parts, "; ")
}

// Is reports whether target matches this error type.
func (e *SecurityError) Is(target error) bool {
	return target == ErrForbidden || target == ErrValidation
}
