package telemetry

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	executableopenapi "github.com/alexstrat/executable-openapi"
	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/middleware"
)

// Tracing returns a middleware starting one span per operation execution.
// The span is named after the method and the path template, and ends with
// an error status when the execution fails or answers with a 5xx status.
// A nil tp uses the global tracer provider.
func Tracing(tp trace.TracerProvider) middleware.Func {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(executableopenapi.Version()))

	return func(ctx context.Context, next execution.Handler, params execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error) {
		attrs := operationAttributes(info)
		if info.Request != nil && info.Request.ID != "" {
			attrs = append(attrs, RequestIDKey.String(info.Request.ID))
		}
		ctx, span := tracer.Start(ctx, strings.ToUpper(info.Method.String())+" "+info.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		resp, err := next(ctx, params, body, info)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(ErrorTypeKey.String(errorTypeFatal))
			span.SetStatus(codes.Error, err.Error())
			return resp, err
		}
		if resp != nil {
			span.SetAttributes(StatusKey.Int(resp.Status))
			if resp.Status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(resp.Status))
			}
		}
		return resp, nil
	}
}
