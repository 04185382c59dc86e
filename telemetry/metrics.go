package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	executableopenapi "github.com/alexstrat/executable-openapi"
	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/middleware"
)

// Instrument names of Metrics.
const (
	RequestsMetric = "openapi.server.requests"
	DurationMetric = "openapi.server.duration"
)

// Metrics returns a middleware counting operation executions and recording
// their duration. A nil mp uses the global meter provider.
func Metrics(mp metric.MeterProvider) (middleware.Func, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(executableopenapi.Version()))

	requests, err := meter.Int64Counter(RequestsMetric,
		metric.WithDescription("Number of operation executions"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating %s: %w", RequestsMetric, err)
	}
	duration, err := meter.Float64Histogram(DurationMetric,
		metric.WithDescription("Duration of operation executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating %s: %w", DurationMetric, err)
	}

	return func(ctx context.Context, next execution.Handler, params execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error) {
		start := time.Now()
		resp, err := next(ctx, params, body, info)

		attrs := operationAttributes(info)
		switch {
		case err != nil:
			attrs = append(attrs, ErrorTypeKey.String(errorTypeFatal))
		case resp != nil:
			attrs = append(attrs, StatusKey.Int(resp.Status))
		}
		set := metric.WithAttributeSet(attribute.NewSet(attrs...))
		requests.Add(ctx, 1, set)
		duration.Record(ctx, time.Since(start).Seconds(), set)
		return resp, err
	}, nil
}
