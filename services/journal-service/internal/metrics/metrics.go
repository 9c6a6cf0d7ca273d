package metrics

import (
	libmetrics "github.com/md-rashed-zaman/carejournal/libs/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// JournalMetrics counts journal writes. A nil *JournalMetrics is a no-op.
type JournalMetrics struct {
	recorded *prometheus.CounterVec
	rejected *prometheus.CounterVec
	cleared  prometheus.Counter
}

// NewJournalMetrics registers the counters on reg. entries, when non-nil,
// backs a gauge of the current entry count.
func NewJournalMetrics(reg prometheus.Registerer, entries func() int) *JournalMetrics {
	m := &JournalMetrics{
		recorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: libmetrics.Namespace,
			Subsystem: "journal",
			Name:      "moods_recorded_total",
			Help:      "Mood entries saved, by mood label",
		}, []string{"mood"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: libmetrics.Namespace,
			Subsystem: "journal",
			Name:      "moods_rejected_total",
			Help:      "Mood saves rejected, by reason",
		}, []string{"reason"}),
		cleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: libmetrics.Namespace,
			Subsystem: "journal",
			Name:      "clears_total",
			Help:      "Times the journal was cleared",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.recorded, m.rejected, m.cleared)
	if entries != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: libmetrics.Namespace,
			Subsystem: "journal",
			Name:      "entries",
			Help:      "Entries currently in the journal",
		}, func() float64 { return float64(entries()) }))
	}
	return m
}

func (m *JournalMetrics) Recorded(label string) {
	if m == nil {
		return
	}
	m.recorded.WithLabelValues(label).Inc()
}

func (m *JournalMetrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *JournalMetrics) Cleared() {
	if m == nil {
		return
	}
	m.cleared.Inc()
}
