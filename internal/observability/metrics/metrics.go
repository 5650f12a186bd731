package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for slot queries and
// reservations.
type SchedulingMetrics struct {
	reservations  *prometheus.CounterVec
	retries       *prometheus.CounterVec
	slotQuery     *prometheus.HistogramVec
	slotsReturned prometheus.Histogram
	holdsExpired  prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetsched",
			Subsystem: "scheduling",
			Name:      "reservations_total",
			Help:      "Reserve, move and check attempts by outcome",
		}, []string{"operation", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetsched",
			Subsystem: "scheduling",
			Name:      "reserve_retries_total",
			Help:      "Retries after transient ledger contention",
		}, []string{"operation"}),
		slotQuery: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vetsched",
			Subsystem: "scheduling",
			Name:      "slot_query_seconds",
			Help:      "Latency of candidate slot computation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scope"}),
		slotsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vetsched",
			Subsystem: "scheduling",
			Name:      "slots_returned",
			Help:      "Number of candidate slots returned per query",
			Buckets:   []float64{0, 1, 4, 8, 16, 32, 64, 128},
		}),
		holdsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vetsched",
			Subsystem: "scheduling",
			Name:      "holds_expired_total",
			Help:      "Pending holds canceled by the expiry worker",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reservations, m.retries, m.slotQuery, m.slotsReturned, m.holdsExpired)
	return m
}

func (m *SchedulingMetrics) ObserveReservation(operation, outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(operation, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveRetry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

// ObserveSlotQuery records one allocator run. scope is "staff", "resource",
// "clinic" or "by_staff".
func (m *SchedulingMetrics) ObserveSlotQuery(scope string, seconds float64, slots int) {
	if m == nil {
		return
	}
	m.slotQuery.WithLabelValues(scope).Observe(seconds)
	m.slotsReturned.Observe(float64(slots))
}

func (m *SchedulingMetrics) ObserveHoldsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.holdsExpired.Add(float64(n))
}
