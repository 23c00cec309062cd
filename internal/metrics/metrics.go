package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	DocumentsProcessed  *prometheus.CounterVec
	StageOutcomes       *prometheus.CounterVec
	CollaboratorRetries *prometheus.CounterVec
	ProcessingDuration  prometheus.Histogram
	FieldConfidence     prometheus.Histogram
	ArchiveFailures     *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// production and prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DocumentsProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docextract_documents_processed_total",
				Help: "Documents processed, by detected doc type",
			},
			[]string{"doc_type"},
		),
		StageOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docextract_stage_outcomes_total",
				Help: "Pipeline stage results, by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		CollaboratorRetries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docextract_collaborator_retries_total",
				Help: "Retried collaborator calls",
			},
			[]string{"collaborator"},
		),
		ProcessingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docextract_processing_duration_seconds",
			Help:    "Wall-clock time to process one document",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		FieldConfidence: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docextract_field_confidence",
			Help:    "Distribution of final field confidences",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		ArchiveFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docextract_archive_failures_total",
				Help: "Best-effort archive or persistence failures",
			},
			[]string{"target"},
		),
	}
}

func (m *Metrics) ObserveDocument(docType string, seconds float64) {
	if m == nil {
		return
	}
	m.DocumentsProcessed.WithLabelValues(docType).Inc()
	m.ProcessingDuration.Observe(seconds)
}

func (m *Metrics) ObserveStage(stage, outcome string) {
	if m == nil {
		return
	}
	m.StageOutcomes.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) ObserveRetry(collaborator string) {
	if m == nil {
		return
	}
	m.CollaboratorRetries.WithLabelValues(collaborator).Inc()
}

func (m *Metrics) ObserveFieldConfidence(c float64) {
	if m == nil {
		return
	}
	m.FieldConfidence.Observe(c)
}

func (m *Metrics) ObserveArchiveFailure(target string) {
	if m == nil {
		return
	}
	m.ArchiveFailures.WithLabelValues(target).Inc()
}
