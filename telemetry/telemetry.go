// Package telemetry instruments operation execution with OpenTelemetry
// traces and metrics, or with Prometheus collectors.
//
// Every constructor returns a middleware.Func. Register them as outer
// middlewares to also observe the requests rejected by security and
// validation:
//
//	tracing := telemetry.Tracing(otel.GetTracerProvider())
//	metrics, err := telemetry.Metrics(otel.GetMeterProvider())
//	if err != nil {
//		return err
//	}
//	exe, err := executableopenapi.New(doc, handlers,
//		executableopenapi.WithOuterMiddleware(
//			middleware.Global(tracing),
//			middleware.Global(metrics),
//		),
//	)
//
// Requests that do not target an operation never reach a middleware and
// are not observed.
package telemetry

import (
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alexstrat/executable-openapi/execution"
)

const instrumentationName = "github.com/alexstrat/executable-openapi/telemetry"

// Attribute keys set on spans and metrics.
const (
	MethodKey      = attribute.Key("http.request.method")
	RouteKey       = attribute.Key("http.route")
	OperationIDKey = attribute.Key("openapi.operation.id")
	StatusKey      = attribute.Key("http.response.status_code")
	RequestIDKey   = attribute.Key("openapi.request.id")
	ErrorTypeKey   = attribute.Key("error.type")
)

// errorTypeFatal marks executions that ended with an error rather than a
// response.
const errorTypeFatal = "fatal"

func operationAttributes(info *execution.OperationInfo) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		MethodKey.String(strings.ToUpper(info.Method.String())),
		RouteKey.String(info.Path),
	}
	if info.Operation != nil && info.Operation.OperationID != "" {
		attrs = append(attrs, OperationIDKey.String(info.Operation.OperationID))
	}
	return attrs
}

// outcome returns the status of an execution as a label value: the status
// code, or "error" for fatal errors.
func outcome(resp *execution.Response, err error) string {
	if err != nil || resp == nil {
		return "error"
	}
	return strconv.Itoa(resp.Status)
}

func operationID(info *execution.OperationInfo) string {
	if info.Operation == nil {
		return ""
	}
	return info.Operation.OperationID
}
