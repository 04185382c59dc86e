package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alexstrat/executable-openapi/execution"
	"github.com/alexstrat/executable-openapi/middleware"
)

// PrometheusNamespace prefixes the names of the Prometheus collectors.
const PrometheusNamespace = "executable_openapi"

var prometheusLabels = []string{"method", "route", "operation", "status"}

// PrometheusCollectors are the collectors updated by the Prometheus
// middleware.
type PrometheusCollectors struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewPrometheusCollectors returns unregistered collectors.
func NewPrometheusCollectors() *PrometheusCollectors {
	return &PrometheusCollectors{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: PrometheusNamespace,
			Name:      "requests_total",
			Help:      "Total number of operation executions",
		}, prometheusLabels),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: PrometheusNamespace,
			Name:      "request_duration_seconds",
			Help:      "Operation execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, prometheusLabels),
	}
}

// Prometheus returns a middleware updating collectors registered with reg.
// Collectors already registered by an earlier call are reused, so several
// executables can share one registry. A nil reg uses
// prometheus.DefaultRegisterer.
func Prometheus(reg prometheus.Registerer) (middleware.Func, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := NewPrometheusCollectors()

	var err error
	if c.Requests, err = register(reg, c.Requests); err != nil {
		return nil, err
	}
	if c.Duration, err = register(reg, c.Duration); err != nil {
		return nil, err
	}
	return c.Middleware(), nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			if existing, ok := alreadyRegErr.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("telemetry: registering prometheus collector: %w", err)
	}
	return c, nil
}

// Middleware returns a middleware updating c.
func (c *PrometheusCollectors) Middleware() middleware.Func {
	return func(ctx context.Context, next execution.Handler, params execution.Parameters, body any, info *execution.OperationInfo) (*execution.Response, error) {
		start := time.Now()
		resp, err := next(ctx, params, body, info)

		labels := prometheus.Labels{
			"method":    strings.ToUpper(info.Method.String()),
			"route":     info.Path,
			"operation": operationID(info),
			"status":    outcome(resp, err),
		}
		c.Requests.With(labels).Inc()
		c.Duration.With(labels).Observe(time.Since(start).Seconds())
		return resp, err
	}
}
