package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
type Metrics struct {
	// Vendor call latencies by adapter and operation
	AdapterLatency *prometheus.HistogramVec

	// Status transitions applied by the orchestrator
	Transitions *prometheus.CounterVec

	// Callback handling outcomes (applied, duplicate, rejected_signature, unknown_reference)
	CallbackOutcome *prometheus.CounterVec

	// AML screening outcomes by adapter and status
	AMLOutcome *prometheus.CounterVec
}

// New creates a new Metrics instance with all verification module metrics registered.
func New() *Metrics {
	return &Metrics{
		AdapterLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kyc_verification_adapter_duration_seconds",
			Help:    "Duration of vendor adapter calls by adapter and operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"adapter", "operation"}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_verification_transitions_total",
			Help: "Total verification status transitions by source and target status",
		}, []string{"from", "to"}),

		CallbackOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_verification_callbacks_total",
			Help: "Total vendor callbacks by adapter and handling outcome",
		}, []string{"adapter", "outcome"}),

		AMLOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_verification_aml_checks_total",
			Help: "Total AML screenings by adapter and resulting status",
		}, []string{"adapter", "status"}),
	}
}

// ObserveAdapterLatency records the duration of one vendor adapter call.
func (m *Metrics) ObserveAdapterLatency(adapter, operation string, d time.Duration) {
	if m != nil {
		m.AdapterLatency.WithLabelValues(adapter, operation).Observe(d.Seconds())
	}
}

// IncrementTransition records a status transition.
func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

// IncrementCallback records a callback handling outcome.
func (m *Metrics) IncrementCallback(adapter, outcome string) {
	if m != nil {
		m.CallbackOutcome.WithLabelValues(adapter, outcome).Inc()
	}
}

// IncrementAML records an AML screening outcome.
func (m *Metrics) IncrementAML(adapter, status string) {
	if m != nil {
		m.AMLOutcome.WithLabelValues(adapter, status).Inc()
	}
}
