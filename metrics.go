package triage

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for pipeline outcomes.
type Metrics struct {
	RecordsRejectedTotal prometheus.Counter
	GroupsHandledTotal   prometheus.Counter
	GroupsFailedTotal    prometheus.Counter
	GroupsUnroutedTotal  prometheus.Counter
	HandlerDuration      prometheus.Histogram
}

// NewMetrics creates collectors registered with the Prometheus default
// registry.
func NewMetrics(serviceName string) *Metrics {
	return newMetrics(promauto.With(prometheus.DefaultRegisterer), serviceName)
}

// NewMetricsWith creates collectors registered with a caller-supplied
// registry. Use this in tests to avoid duplicate registration panics.
func NewMetricsWith(reg prometheus.Registerer, serviceName string) *Metrics {
	return newMetrics(promauto.With(reg), serviceName)
}

func newMetrics(factory promauto.Factory, serviceName string) *Metrics {
	labels := prometheus.Labels{"service": serviceName}
	return &Metrics{
		RecordsRejectedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "triage_records_rejected_total",
			Help:        "Total number of records rejected by validation or classification",
			ConstLabels: labels,
		}),
		GroupsHandledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "triage_groups_handled_total",
			Help:        "Total number of groups whose handler ran to completion",
			ConstLabels: labels,
		}),
		GroupsFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "triage_groups_failed_total",
			Help:        "Total number of groups whose handler returned an error or panicked",
			ConstLabels: labels,
		}),
		GroupsUnroutedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "triage_groups_unrouted_total",
			Help:        "Total number of groups with no registered handler",
			ConstLabels: labels,
		}),
		HandlerDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "triage_handler_duration_seconds",
			Help:        "Handler execution time per group",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
}

// WithMetrics wires the pipeline's hooks to the given collectors.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) error {
		p.hooks.onReject = append(p.hooks.onReject, func(ctx context.Context, rej Rejection) {
			m.RecordsRejectedTotal.Inc()
		})
		p.hooks.onHandled = append(p.hooks.onHandled, func(ctx context.Context, category string, size int, d time.Duration) {
			m.GroupsHandledTotal.Inc()
			m.HandlerDuration.Observe(d.Seconds())
		})
		p.hooks.onFailed = append(p.hooks.onFailed, func(ctx context.Context, category string, size int, err error, d time.Duration) {
			m.GroupsFailedTotal.Inc()
			m.HandlerDuration.Observe(d.Seconds())
		})
		p.hooks.onUnrouted = append(p.hooks.onUnrouted, func(ctx context.Context, category string, size int) {
			m.GroupsUnroutedTotal.Inc()
		})
		return nil
	}
}
