// Package oaserrors provides structured error types for executable-openapi.
//
// These error types enable programmatic error handling via errors.Is() and
// errors.As(), allowing callers to tell apart the error classes the
// execution pipeline produces.
//
// # Error Categories
//
//   - ParseError: YAML/JSON parsing failures of the document
//   - ReferenceError: $ref resolution failures (remote or circular refs, missing targets)
//   - ConfigError: invalid options or path templates
//   - NoHandlerError: an operation matched but no handler is registered for it
//   - NotImplementedError: a document construct that cannot be executed
//   - ParameterError, RequestBodyError, SecurityError: request validation failures
//
// # Fatal and recoverable errors
//
// ParseError, ReferenceError, ConfigError, NoHandlerError and
// NotImplementedError are returned by Execute. They mean the document and
// the handlers do not agree and should fail fast.
//
// ParameterError, RequestBodyError and SecurityError never leave the
// pipeline: the middleware that owns them renders them as a response
// through a formatter that callers can override.
//
// # Usage with errors.Is
//
//	resp, err := exe.Execute(ctx, req)
//	if errors.Is(err, oaserrors.ErrNoHandler) {
//	    // the handlers map misses an operation
//	}
//
// # Usage with errors.As
//
//	var refErr *oaserrors.ReferenceError
//	if errors.As(err, &refErr) && refErr.IsRemote {
//	    // plug a resolver able to fetch remote documents
//	}
package oaserrors
