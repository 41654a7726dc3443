package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	InferenceCalls  *prometheus.CounterVec
	EventsAppended  *prometheus.CounterVec
	EventsDeleted   prometheus.Counter
	ReportsTotal    *prometheus.CounterVec
	AlertsTotal     *prometheus.CounterVec
}

// NewCollector registers the service metrics. Pass nil to use the
// default registerer; tests pass a fresh prometheus.NewRegistry().
func NewCollector(serviceName string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		InferenceCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "inference",
			Name:      "calls_total",
			Help:      "Inference calls by stage and outcome (ok, fallback, error).",
		}, []string{"stage", "outcome"}),

		EventsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "store",
			Name:      "events_appended_total",
			Help:      "Events appended to the clinical log by type.",
		}, []string{"type"}),

		EventsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "store",
			Name:      "events_deleted_total",
			Help:      "Events removed from the clinical log.",
		}),

		ReportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "report",
			Name:      "soap_total",
			Help:      "SOAP report syntheses by outcome.",
		}, []string{"outcome"}),

		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "alert",
			Name:      "sent_total",
			Help:      "High-priority triage alerts by outcome.",
		}, []string{"outcome"}),
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
