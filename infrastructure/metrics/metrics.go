package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "punchinout_http_requests_total",
		Help: "The total number of HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "punchinout_http_request_duration_seconds",
		Help:    "The request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// PunchTransitions counts punch-in/out attempts by outcome label.
	PunchTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "punchinout_punch_transitions_total",
		Help: "The total number of punch transitions",
	}, []string{"transition", "result"})

	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "punchinout_auth_failures_total",
		Help: "The total number of rejected credentials and tokens",
	}, []string{"subject", "reason"})

	FaceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "punchinout_face_requests_total",
		Help: "The total number of face service calls",
	}, []string{"operation", "result"})
)

// Result reduces an error to a metric label.
func Result(label string, err error) string {
	if err == nil {
		return "ok"
	}
	if label == "" {
		return "error"
	}
	return label
}
