// Package httpadapter serves an executable OpenAPI document over net/http.
//
// The [Handler] turns incoming HTTP requests into execution requests:
//
//   - the method is mapped to the operation method; other methods fall through
//   - query parameters and headers keep their first value, header names are
//     lower-cased
//   - the body is decoded by media type (JSON, URL-encoded form, text) when
//     a Content-Type is set and the body is not empty
//   - registered security scheme functions run concurrently and their
//     outcome is handed over as the request securities
//
// Execution responses carry their content once per media type; the handler
// negotiates the one to send against the Accept header and renders it with
// the formatter registered for it. Built-in formatters exist for
// application/json and text/plain.
//
// Requests not targeting an operation of the document are passed to the
// next handler (see [WithNext]), which makes the handler usable as a
// catch-all route:
//
//	exe, err := executableopenapi.Load("openapi.yaml", handlers)
//	if err != nil {
//		log.Fatal(err)
//	}
//	h := httpadapter.New(exe,
//		httpadapter.WithSecurityScheme("apiKey", func(ctx context.Context, r *http.Request) (execution.Security, error) {
//			return execution.Security{Granted: r.Header.Get("X-Api-Key") == secret}, nil
//		}),
//	)
//	log.Fatal(http.ListenAndServe(":8080", h))
package httpadapter
