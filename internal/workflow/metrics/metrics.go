package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records workflow activity. A nil *Metrics is a no-op so tests can
// construct controllers without a registry.
type Metrics struct {
	Transitions        *prometheus.CounterVec
	SubmissionsCreated prometheus.Counter
	DuplicateRedirects prometheus.Counter
	ApprovalUpdates    *prometheus.CounterVec
	Resumes            *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regflow_workflow_transitions_total",
			Help: "Workflow transition attempts by source step and outcome",
		}, []string{"step", "outcome"}),
		SubmissionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "regflow_workflow_submissions_created_total",
			Help: "Document records created for review",
		}),
		DuplicateRedirects: f.NewCounter(prometheus.CounterOpts{
			Name: "regflow_workflow_duplicate_redirects_total",
			Help: "Submissions redirected to an already active request",
		}),
		ApprovalUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regflow_workflow_approval_updates_total",
			Help: "Approval notifications by mapped status",
		}, []string{"status"}),
		Resumes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regflow_workflow_resumes_total",
			Help: "Session starts by resume outcome",
		}, []string{"outcome"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "regflow_workflow_active_sessions",
			Help: "Controllers currently held by the registry",
		}),
	}
}

func (m *Metrics) IncTransition(step, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) IncSubmissionCreated() {
	if m == nil {
		return
	}
	m.SubmissionsCreated.Inc()
}

func (m *Metrics) IncDuplicateRedirect() {
	if m == nil {
		return
	}
	m.DuplicateRedirects.Inc()
}

func (m *Metrics) IncApprovalUpdate(status string) {
	if m == nil {
		return
	}
	m.ApprovalUpdates.WithLabelValues(status).Inc()
}

func (m *Metrics) IncResume(outcome string) {
	if m == nil {
		return
	}
	m.Resumes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
