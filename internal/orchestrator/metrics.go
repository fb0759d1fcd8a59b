package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutord_requests_total",
		Help: "Orchestrated requests by capability and result status.",
	}, []string{"capability", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tutord_request_duration_seconds",
		Help:    "Request latency by capability.",
		Buckets: prometheus.DefBuckets,
	}, []string{"capability"})

	conflictsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutord_conflicts_detected_total",
		Help: "Conflicts recorded by the gate, by category and severity.",
	}, []string{"category", "severity"})

	overridesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutord_gate_overrides_total",
		Help: "Mutations applied despite blocking conflicts.",
	})
)

func observeConflicts(conflicts []domain.ConflictInfo) {
	for _, c := range conflicts {
		conflictsDetected.WithLabelValues(c.Category, string(c.Severity)).Inc()
	}
}
