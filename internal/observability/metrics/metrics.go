package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulerMetrics exposes counters/histograms for reconciliation flows.
type SchedulerMetrics struct {
	syncOpsTotal    *prometheus.CounterVec
	decrementsTotal *prometheus.CounterVec
	quotaBlocked    prometheus.Counter
	runDuration     *prometheus.HistogramVec
}

func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		syncOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "sync",
			Name:      "calendar_ops_total",
			Help:      "Calendar mutations applied by the sync service",
		}, []string{"kind", "action"}),
		decrementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "ledger",
			Name:      "decrements_total",
			Help:      "Cross-category slot decrements by outcome",
		}, []string{"outcome"}),
		quotaBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "quota",
			Name:      "blocked_total",
			Help:      "Calendar mutations skipped because a quota ceiling was hit",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "runs",
			Name:      "duration_seconds",
			Help:      "Duration of orchestrated passes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pass"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.syncOpsTotal, m.decrementsTotal, m.quotaBlocked, m.runDuration)
	return m
}

func (m *SchedulerMetrics) ObserveSyncOp(kind, action string) {
	if m == nil {
		return
	}
	m.syncOpsTotal.WithLabelValues(kind, action).Inc()
}

func (m *SchedulerMetrics) ObserveDecrement(outcome string) {
	if m == nil {
		return
	}
	m.decrementsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulerMetrics) ObserveQuotaBlocked() {
	if m == nil {
		return
	}
	m.quotaBlocked.Inc()
}

func (m *SchedulerMetrics) ObserveRunDuration(pass string, seconds float64) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(pass).Observe(seconds)
}
