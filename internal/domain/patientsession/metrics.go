package patientsession

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ehr/vaccinations/internal/domain/outcome"
)

// Metrics records what the engine derived. A nil *Metrics is a no-op.
type Metrics struct {
	outcomes  *prometheus.CounterVec
	anomalies *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// NewMetrics registers the outcome collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaccinations_patient_session_outcomes_total",
			Help: "Derived patient session outcomes by axis, value and programme",
		}, []string{"axis", "value", "programme"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaccinations_patient_session_anomalies_total",
			Help: "Evidence problems found while deriving patient sessions, by axis",
		}, []string{"axis"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vaccinations_patient_session_duration_seconds",
			Help:    "Time to load evidence and derive outcomes",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"scope"}),
	}
	reg.MustRegister(m.outcomes, m.anomalies, m.latency)
	return m
}

// Observe counts the headline axes of ps.
func (m *Metrics) Observe(ps *outcome.PatientSession) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(outcome.AxisConsent), string(ps.Consent), ps.ProgrammeID).Inc()
	if ps.Report != "" {
		m.outcomes.WithLabelValues(string(outcome.AxisReport), string(ps.Report), ps.ProgrammeID).Inc()
	}
	m.outcomes.WithLabelValues("next_activity", string(ps.NextActivity), ps.ProgrammeID).Inc()
	for _, a := range ps.Anomalies {
		m.anomalies.WithLabelValues(string(a.Axis)).Inc()
	}
}

// ObserveDuration records how long one request took; scope is "patient" or
// "session".
func (m *Metrics) ObserveDuration(scope string, d time.Duration) {
	if m != nil {
		m.latency.WithLabelValues(scope).Observe(d.Seconds())
	}
}
