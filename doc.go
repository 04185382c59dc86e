// Package executableopenapi executes OpenAPI 3 documents.
//
// An executable document is an OpenAPI document paired with handlers: given
// a transport-independent request, it finds the operation the request
// targets, enforces the contract the document declares for it (security
// requirements, path and query parameters, request body) and hands the
// validated, coerced values to the handler of the operation.
//
// # Overview
//
// The library consists of the following packages:
//
//   - parser: Parse OpenAPI 3.x documents in YAML or JSON
//   - resolver: Resolve local JSON references within a document
//   - schema: Validate and coerce values against schemas
//   - router: Route requests to operations and their handlers
//   - middleware: Compose handlers with middlewares, and the built-in
//     security, parameters and request body middlewares
//   - execution: Request, response and handler records
//
// Transports and integrations live in their own packages: httpadapter
// (net/http), natsadapter (NATS request/reply), mcpadapter (Model Context
// Protocol tools), telemetry (OpenTelemetry and Prometheus middlewares) and
// mock (example-based default handler). executiontest helps testing
// handlers through the whole pipeline.
//
// # Quick Start
//
// Load a document and register handlers:
//
//	import (
//		executableopenapi "github.com/alexstrat/executable-openapi"
//		"github.com/alexstrat/executable-openapi/execution"
//	)
//
//	exe, err := executableopenapi.Load("openapi.yaml", execution.HandlersMap{
//		Operations: map[string]execution.Handler{
//			"getUser": func(ctx context.Context, params execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error) {
//				id := params.Path["id"].(int64) // coerced from the path
//				return execution.JSON(200, map[string]any{"id": id}), nil
//			},
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Execute a request:
//
//	resp, err := exe.Execute(ctx, &execution.Request{
//		Path:   "/users/42",
//		Method: execution.MethodGet,
//	})
//	switch {
//	case err != nil:
//		// configuration error: missing handler, unresolvable reference...
//	case resp == nil:
//		// the request does not target an operation of the document
//	default:
//		fmt.Println(resp.Status, resp.Content["application/json"])
//	}
//
// # Routing
//
// Request paths are matched against the path templates of the document. When
// several templates match, the most concrete one wins: /users/me is preferred
// over /users/{id} whatever their declaration order. Handlers are looked up
// by path template and method, then by operationId, then the default handler
// is used.
//
// # Middlewares
//
// Every handler is wrapped by the built-in middlewares, in this order:
//
//  1. security: the request must satisfy one of the security requirement
//     sets of the operation, else 403
//  2. path parameters: coerced to and validated against their schemas,
//     else 400 {in, name, message}
//  3. query parameters: idem, with required and allowEmptyValue support
//  4. request body: matched by media type, coerced and validated, else 400
//     {type: "invalid-requestBody", message}
//
// Additional middlewares are given with [WithMiddleware]. A middleware may
// apply globally, or per operationId, per path and method, or to the default
// handler only; see the middleware package.
//
// # Errors
//
// Validation failures are responses. Errors returned by Execute denote
// configuration problems and can be checked with errors.Is against the
// oaserrors sentinels (oaserrors.ErrNoHandler, oaserrors.ErrReference,
// oaserrors.ErrNotImplemented).
package executableopenapi
