package metrics

import (
	libmetrics "github.com/md-rashed-zaman/carejournal/libs/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics counts wizard activity. A nil *BookingMetrics is a no-op.
type BookingMetrics struct {
	sessions      prometheus.Counter
	actions       *prometheus.CounterVec
	paymentReject *prometheus.CounterVec
	confirmed     *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: libmetrics.Namespace,
			Subsystem: "booking",
			Name:      "sessions_started_total",
			Help:      "Booking wizard sessions started",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: libmetrics.Namespace,
			Subsystem: "booking",
			Name:      "actions_total",
			Help:      "Wizard actions by name and outcome",
		}, []string{"action", "outcome"}),
		paymentReject: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: libmetrics.Namespace,
			Subsystem: "booking",
			Name:      "payment_rejected_total",
			Help:      "Payment submissions rejected for missing fields",
		}, []string{"method"}),
		confirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: libmetrics.Namespace,
			Subsystem: "booking",
			Name:      "confirmed_total",
			Help:      "Bookings confirmed",
		}, []string{"method"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sessions, m.actions, m.paymentReject, m.confirmed)
	return m
}

func (m *BookingMetrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// Action records the outcome ("ok", "rejected", "error") of a wizard action.
func (m *BookingMetrics) Action(action, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}

func (m *BookingMetrics) PaymentRejected(method string) {
	if m == nil {
		return
	}
	m.paymentReject.WithLabelValues(method).Inc()
}

func (m *BookingMetrics) Confirmed(method string) {
	if m == nil {
		return
	}
	m.confirmed.WithLabelValues(method).Inc()
}
