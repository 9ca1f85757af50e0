// AngelaMos | 2026
// metrics.go

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics counts auth events by operation and outcome.
type Metrics struct {
	EventsTotal   *prometheus.CounterVec
	SessionsTotal *prometheus.CounterVec
}

// NewMetrics creates the auth metrics and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_auth_events_total",
				Help: "Total number of auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_sessions_issued_total",
				Help: "Total number of sessions issued at login, by whether the token was reused",
			},
			[]string{"mode"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.EventsTotal)
		reg.MustRegister(m.SessionsTotal)
	}

	return m
}

func (m *Metrics) record(operation string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.EventsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) recordSession(rotated bool) {
	if m == nil {
		return
	}
	mode := "reused"
	if rotated {
		mode = "rotated"
	}
	m.SessionsTotal.WithLabelValues(mode).Inc()
}
