package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Login outcomes reported on therapy_login_attempts_total.
const (
	LoginOutcomeSuccess = "success"
	LoginOutcomeInvalid = "invalid_credentials"
	LoginOutcomeUnknown = "unknown_account"
	LoginOutcomeLocked  = "locked"
	LoginOutcomeError   = "error"
)

// Metrics holds the service counters. A nil *Metrics records nothing.
type Metrics struct {
	LoginAttempts   *prometheus.CounterVec
	RecordMutations *prometheus.CounterVec
	SnapshotExports *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "therapy_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		RecordMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "therapy_record_mutations_total",
			Help: "Successful record mutations by operation.",
		}, []string{"op"}),
		SnapshotExports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "therapy_snapshot_exports_total",
			Help: "Snapshot exports by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.LoginAttempts, m.RecordMutations, m.SnapshotExports)
	return m
}

func (m *Metrics) loginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordMutation(op string) {
	if m == nil {
		return
	}
	m.RecordMutations.WithLabelValues(op).Inc()
}

func (m *Metrics) snapshotExport(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SnapshotExports.WithLabelValues(result).Inc()
}
