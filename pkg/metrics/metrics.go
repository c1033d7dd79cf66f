package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/uhyunpark/leaftrade/pkg/tracker"
)

var (
	// Submission attempts by contract method and outcome (accepted, invalid, rejected).
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaftrade_submissions_total",
			Help: "Contract write attempts by method and result.",
		},
		[]string{"method", "result"},
	)

	TrackerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaftrade_tracker_transitions_total",
			Help: "Transaction status transitions by resulting status.",
		},
		[]string{"method", "status"},
	)

	// Time from Pending to a terminal status.
	ConfirmationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leaftrade_confirmation_seconds",
			Help:    "Seconds between submission and final receipt.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s -> ~4m
		},
		[]string{"method", "status"},
	)
)

func IncSubmission(method, result string) {
	SubmissionsTotal.WithLabelValues(method, result).Inc()
}

// TrackerObserver records every transition; terminal ones also feed the
// confirmation histogram.
func TrackerObserver() tracker.Observer {
	return func(prev, next tracker.Snapshot) {
		status := next.Status.String()
		TrackerTransitions.WithLabelValues(next.Method, status).Inc()
		if prev.Status == tracker.Pending && next.Status.IsTerminal() {
			ConfirmationSeconds.WithLabelValues(next.Method, status).
				Observe(next.UpdatedAt.Sub(prev.UpdatedAt).Seconds())
		}
	}
}
