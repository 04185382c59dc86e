// Package parser loads OpenAPI 3.x documents and exposes the typed model the
// execution pipeline works on.
//
// Documents are decoded with go.yaml.in/yaml/v4, so both YAML and JSON
// sources are accepted. Besides the typed model, a parsed Document keeps:
//
//   - the declaration order of its path templates ([Document.PathTemplates]),
//     which the router uses to break ties between equally concrete templates;
//   - the generic tree of the source ([Document.Raw]), against which local
//     JSON pointers are resolved.
//
// # Parsing
//
//	doc, err := parser.ParseWithOptions(parser.WithFilePath("openapi.yaml"))
//	if err != nil {
//	    var perr *oaserrors.ParseError
//	    if errors.As(err, &perr) { ... }
//	}
//
// Documents can also be built in code. Call [Document.SetPathOrder] to fix
// the declaration order; otherwise templates are ordered lexically.
//
// # References
//
// Fields named Ref hold the "$ref" of an object. The parser does not resolve
// references; see the resolver package.
package parser
