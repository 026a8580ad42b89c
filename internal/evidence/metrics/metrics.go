package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for evidence ingestion and linking.
type Metrics struct {
	UploadsTotal    *prometheus.CounterVec
	UploadBytes     prometheus.Histogram
	UploadDuration  prometheus.Histogram
	ConversionJobs  prometheus.Counter
	LinksCreated    prometheus.Counter
	LinkConflicts   prometheus.Counter
	FreshnessChecks *prometheus.CounterVec
}

// New creates and registers the evidence metrics.
func New() *Metrics {
	return &Metrics{
		UploadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouch_evidence_uploads_total",
			Help: "Total evidence uploads by outcome (ready, convert_pending, unsupported, invalid, error)",
		}, []string{"outcome"}),
		UploadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vouch_evidence_upload_bytes",
			Help:    "Size of accepted evidence uploads",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 9),
		}),
		UploadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vouch_evidence_upload_duration_seconds",
			Help:    "Duration of the upload pipeline",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		ConversionJobs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_evidence_conversion_jobs_total",
			Help: "Total files.convert_to_pdf jobs enqueued",
		}),
		LinksCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_evidence_links_created_total",
			Help: "Total evidence links created",
		}),
		LinkConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouch_evidence_link_conflicts_total",
			Help: "Total link attempts rejected as duplicates",
		}),
		FreshnessChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouch_evidence_freshness_checks_total",
			Help: "Total freshness evaluations by result (none, fresh, stale)",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncUpload(outcome string) {
	if m != nil {
		m.UploadsTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveUploadBytes(n int64) {
	if m != nil {
		m.UploadBytes.Observe(float64(n))
	}
}

func (m *Metrics) ObserveUploadDuration(d time.Duration) {
	if m != nil {
		m.UploadDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IncConversionJobs() {
	if m != nil {
		m.ConversionJobs.Inc()
	}
}

func (m *Metrics) IncLinksCreated() {
	if m != nil {
		m.LinksCreated.Inc()
	}
}

func (m *Metrics) IncLinkConflicts() {
	if m != nil {
		m.LinkConflicts.Inc()
	}
}

func (m *Metrics) IncFreshnessCheck(result string) {
	if m != nil {
		m.FreshnessChecks.WithLabelValues(result).Inc()
	}
}
