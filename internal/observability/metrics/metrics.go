package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters/histograms for the booking call flow.
type CallMetrics struct {
	toolCallsTotal    *prometheus.CounterVec
	toolCallLatency   *prometheus.HistogramVec
	bookingsConfirmed prometheus.Counter
	bookingConflicts  prometheus.Counter
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "calls",
			Name:      "tool_calls_total",
			Help:      "Total tool calls processed, by tool and outcome class",
		}, []string{"tool", "outcome"}),
		toolCallLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dental",
			Subsystem: "calls",
			Name:      "tool_call_latency_seconds",
			Help:      "Latency of tool call handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		bookingsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "calls",
			Name:      "bookings_confirmed_total",
			Help:      "Total appointments booked",
		}),
		bookingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "calls",
			Name:      "booking_conflicts_total",
			Help:      "Total commit attempts that lost the slot race",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.toolCallsTotal, m.toolCallLatency, m.bookingsConfirmed, m.bookingConflicts)
	return m
}

func (m *CallMetrics) ObserveToolCall(tool, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	m.toolCallLatency.WithLabelValues(tool).Observe(seconds)
}

func (m *CallMetrics) ObserveBookingConfirmed() {
	if m == nil {
		return
	}
	m.bookingsConfirmed.Inc()
}

func (m *CallMetrics) ObserveBookingConflict() {
	if m == nil {
		return
	}
	m.bookingConflicts.Inc()
}
