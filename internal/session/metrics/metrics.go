// Package metrics provides observability for the session module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts session lifecycle events. A nil receiver disables recording.
type Metrics struct {
	// Lifecycle outcomes (created, extended, expired, invalidated)
	Lifecycle *prometheus.CounterVec

	// Validation outcomes (ok, not_found, expired, wrong_owner)
	Validations *prometheus.CounterVec
}

// New creates a Metrics instance with all session module metrics registered.
func New() *Metrics {
	return &Metrics{
		Lifecycle: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_session_lifecycle_total",
			Help: "Total session lifecycle events by outcome",
		}, []string{"outcome"}),

		Validations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_session_validations_total",
			Help: "Total session validations by outcome",
		}, []string{"outcome"}),
	}
}

// IncrementLifecycle records a session lifecycle event.
func (m *Metrics) IncrementLifecycle(outcome string) {
	if m != nil {
		m.Lifecycle.WithLabelValues(outcome).Inc()
	}
}

// IncrementValidation records a session validation outcome.
func (m *Metrics) IncrementValidation(outcome string) {
	if m != nil {
		m.Validations.WithLabelValues(outcome).Inc()
	}
}
