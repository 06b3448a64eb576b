// Package metrics provides observability for the document custodian.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts custodian operations. A nil receiver disables recording.
type Metrics struct {
	// Upload outcomes (stored, rejected_type, rejected_size, rejected_content)
	Uploads *prometheus.CounterVec

	// Bytes of plaintext accepted per document type
	UploadBytes *prometheus.CounterVec

	// Live capture outcomes (stored, rejected_liveness, rejected_stale, rejected_size)
	Captures *prometheus.CounterVec

	// Documents removed by the retention sweep
	Purged prometheus.Counter

	// Downloads whose plaintext hash no longer matched the stored hash
	IntegrityMismatches prometheus.Counter
}

// New creates a Metrics instance with all custodian metrics registered.
func New() *Metrics {
	return &Metrics{
		Uploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_document_uploads_total",
			Help: "Total document uploads by outcome",
		}, []string{"outcome"}),

		UploadBytes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_document_upload_bytes_total",
			Help: "Total plaintext bytes accepted by document type",
		}, []string{"type"}),

		Captures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_live_captures_total",
			Help: "Total live capture submissions by outcome",
		}, []string{"outcome"}),

		Purged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kyc_documents_purged_total",
			Help: "Total documents removed by the retention sweep",
		}),

		IntegrityMismatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kyc_document_integrity_mismatches_total",
			Help: "Total downloads whose content hash did not match",
		}),
	}
}

// IncrementUpload records an upload outcome.
func (m *Metrics) IncrementUpload(outcome string) {
	if m != nil {
		m.Uploads.WithLabelValues(outcome).Inc()
	}
}

// AddUploadBytes records accepted plaintext volume.
func (m *Metrics) AddUploadBytes(docType string, n int64) {
	if m != nil {
		m.UploadBytes.WithLabelValues(docType).Add(float64(n))
	}
}

// IncrementCapture records a live capture outcome.
func (m *Metrics) IncrementCapture(outcome string) {
	if m != nil {
		m.Captures.WithLabelValues(outcome).Inc()
	}
}

// IncrementPurged records documents removed by the sweep.
func (m *Metrics) IncrementPurged(n int) {
	if m != nil {
		m.Purged.Add(float64(n))
	}
}

// IncrementIntegrityMismatch records a failed download hash check.
func (m *Metrics) IncrementIntegrityMismatch() {
	if m != nil {
		m.IntegrityMismatches.Inc()
	}
}
