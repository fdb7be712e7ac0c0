package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects request-level counters for the auth surface.
type Metrics struct {
	Requests     *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	LoginsOK     prometheus.Counter
	LoginsFailed prometheus.Counter
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "planvault",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "planvault",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		LoginsOK: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "planvault",
			Name:      "logins_success_total",
			Help:      "Successful logins.",
		}),
		LoginsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "planvault",
			Name:      "logins_failed_total",
			Help:      "Rejected logins (invalid credentials or rate limited).",
		}),
	}
}
