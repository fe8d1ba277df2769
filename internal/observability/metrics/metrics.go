package metrics

import "github.com/prometheus/client_golang/prometheus"

// FollowUpMetrics exposes counters/histograms for the follow-up pipeline.
type FollowUpMetrics struct {
	runsTotal     *prometheus.CounterVec
	messagesTotal *prometheus.CounterVec
	dedupedTotal  prometheus.Counter
	runDuration   prometheus.Histogram
}

func NewFollowUpMetrics(reg prometheus.Registerer) *FollowUpMetrics {
	m := &FollowUpMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "followup",
			Name:      "runs_total",
			Help:      "Total follow-up evaluation runs",
		}, []string{"status"}),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "followup",
			Name:      "messages_total",
			Help:      "Total follow-up delivery attempts",
		}, []string{"channel", "status"}),
		dedupedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "followup",
			Name:      "deduped_total",
			Help:      "Leads skipped because they were already contacted today",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crm",
			Subsystem: "followup",
			Name:      "run_duration_seconds",
			Help:      "Duration of one evaluate+dispatch cycle",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.messagesTotal, m.dedupedTotal, m.runDuration)
	return m
}

func (m *FollowUpMetrics) ObserveRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(seconds)
}

func (m *FollowUpMetrics) ObserveMessage(channel, status string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(channel, status).Inc()
}

func (m *FollowUpMetrics) AddMessages(channel, status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.messagesTotal.WithLabelValues(channel, status).Add(float64(n))
}

func (m *FollowUpMetrics) AddDeduped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dedupedTotal.Add(float64(n))
}
