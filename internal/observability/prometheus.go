package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports operation outcomes as Prometheus metrics:
// a duration histogram per operation and a counter per operation/status pair.
type PrometheusMetricsRecorder struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder builds a recorder under the given namespace
// (default "linkreview") and registers its collectors with reg.
func NewPrometheusMetricsRecorder(namespace string, reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if namespace == "" {
		namespace = "linkreview"
	}
	rec := &PrometheusMetricsRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of review and registry operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_results_total",
			Help:      "Operation outcomes by status.",
		}, []string{"operation", "status"}),
	}
	if reg != nil {
		if err := reg.Register(rec.durations); err != nil {
			return nil, err
		}
		if err := reg.Register(rec.results); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}
