package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the approval guard.
type Metrics struct {
	ApprovalOutcomes *prometheus.CounterVec
	ApprovalLatency  prometheus.Histogram
	Rejections       *prometheus.CounterVec
}

// New creates and registers the approval metrics.
func New() *Metrics {
	return &Metrics{
		ApprovalOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouch_approval_outcomes_total",
			Help: "Approval attempts by outcome (approved, not_found, evidence_required, evidence_stale, invalid_state, conflict, error)",
		}, []string{"outcome"}),
		ApprovalLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vouch_approval_duration_seconds",
			Help:    "Duration of approval guard evaluation including persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouch_rejection_outcomes_total",
			Help: "Rejection attempts by outcome (rejected, conflict, error)",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncApprovalOutcome(outcome string) {
	if m != nil {
		m.ApprovalOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveApprovalLatency(d time.Duration) {
	if m != nil {
		m.ApprovalLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncRejectionOutcome(outcome string) {
	if m != nil {
		m.Rejections.WithLabelValues(outcome).Inc()
	}
}
