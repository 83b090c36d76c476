package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the workflow counters.
const (
	OutcomeCreated           = "created"
	OutcomeDuplicate         = "duplicate"
	OutcomeAccepted          = "accepted"
	OutcomeRejected          = "rejected"
	OutcomeInvalidTransition = "invalid_transition"
	OutcomeApplied           = "applied"
	OutcomeInvalid           = "invalid"
	OutcomeAlreadyApplied    = "already_applied"
	OutcomeSucceeded         = "succeeded"
	OutcomeDeclined          = "declined"
	OutcomeRecovered         = "recovered"
	OutcomeWaived            = "waived"
)

// WorkflowMetrics counts agreement, coupon, and payment outcomes. A nil
// receiver is a no-op so services can run without a registry.
type WorkflowMetrics struct {
	submissions    *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	coupons        *prometheus.CounterVec
	payments       *prometheus.CounterVec
	persistFailure prometheus.Counter
	requests       *prometheus.HistogramVec
}

// NewWorkflowMetrics registers the workflow metrics on the provided registerer.
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return &WorkflowMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agreement_submissions_total",
		Help: "Agreement requests submitted, by outcome.",
	}, []string{"outcome"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agreement_decisions_total",
		Help: "Admin agreement decisions, by outcome.",
	}, []string{"outcome"})
	coupons := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_applications_total",
		Help: "Coupon applications within payment sessions, by outcome.",
	}, []string{"outcome"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_total",
		Help: "Payment confirmations, by outcome.",
	}, []string{"outcome"})
	persistFailure := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_persist_after_capture_failures_total",
		Help: "Payments captured by the processor that could not be recorded.",
	})
	requests := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	reg.MustRegister(submissions, decisions, coupons, payments, persistFailure, requests)
	return &WorkflowMetrics{
		submissions:    submissions,
		decisions:      decisions,
		coupons:        coupons,
		payments:       payments,
		persistFailure: persistFailure,
		requests:       requests,
	}
}

func (m *WorkflowMetrics) IncSubmission(outcome string) {
	if m == nil || m.submissions == nil {
		return
	}
	m.submissions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *WorkflowMetrics) IncDecision(outcome string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *WorkflowMetrics) IncCoupon(outcome string) {
	if m == nil || m.coupons == nil {
		return
	}
	m.coupons.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *WorkflowMetrics) IncPayment(outcome string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncPersistAfterCapture counts money that moved without a Payment Record.
func (m *WorkflowMetrics) IncPersistAfterCapture() {
	if m == nil || m.persistFailure == nil {
		return
	}
	m.persistFailure.Inc()
}

// ObserveRequest records one HTTP request.
func (m *WorkflowMetrics) ObserveRequest(method, route, status string, duration time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(method, normalizeLabel(route), status).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
