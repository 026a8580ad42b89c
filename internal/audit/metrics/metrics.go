package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit trail and its outbox relay.
type Metrics struct {
	EventsAppended  *prometheus.CounterVec
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
	RelayPublished  prometheus.Counter
	RelayFailures   prometheus.Counter
}

// New creates and registers the audit metrics.
func New() *Metrics {
	return &Metrics{
		EventsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouch_audit_events_appended_total",
			Help: "Total audit entries durably appended, by event name",
		}, []string{"event"}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_audit_persist_failures_total",
			Help: "Total audit appends rejected by the store",
		}),
		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vouch_audit_persist_duration_seconds",
			Help:    "Duration of audit append writes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		RelayPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_audit_outbox_published_total",
			Help: "Total outbox entries published to the audit stream",
		}),
		RelayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_audit_outbox_failures_total",
			Help: "Total outbox relay batches that failed to publish",
		}),
	}
}

func (m *Metrics) IncAppended(event string) {
	if m != nil {
		m.EventsAppended.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) IncPersistFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) ObservePersistDuration(d time.Duration) {
	if m != nil {
		m.PersistDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) AddRelayPublished(n int) {
	if m != nil {
		m.RelayPublished.Add(float64(n))
	}
}

func (m *Metrics) IncRelayFailures() {
	if m != nil {
		m.RelayFailures.Inc()
	}
}
