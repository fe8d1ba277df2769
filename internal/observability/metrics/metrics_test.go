package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchesLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchesLabels(metric *dto.Metric, labels map[string]string) bool {
	got := map[string]string{}
	for _, pair := range metric.GetLabel() {
		got[pair.GetName()] = pair.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestFollowUpMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFollowUpMetrics(reg)

	m.ObserveRun("ok", 1.5)
	m.ObserveRun("ok", 0.2)
	m.ObserveRun("error", 3.0)
	m.AddMessages("whatsapp", "sent", 9)
	m.ObserveMessage("whatsapp", "failed")
	m.AddDeduped(4)

	if got := counterValue(t, reg, "crm_followup_runs_total", map[string]string{"status": "ok"}); got != 2 {
		t.Fatalf("runs ok = %v", got)
	}
	if got := counterValue(t, reg, "crm_followup_messages_total", map[string]string{"channel": "whatsapp", "status": "sent"}); got != 9 {
		t.Fatalf("sent = %v", got)
	}
	if got := counterValue(t, reg, "crm_followup_messages_total", map[string]string{"channel": "whatsapp", "status": "failed"}); got != 1 {
		t.Fatalf("failed = %v", got)
	}
	if got := counterValue(t, reg, "crm_followup_deduped_total", nil); got != 4 {
		t.Fatalf("deduped = %v", got)
	}
}

func TestFollowUpMetricsNilSafe(t *testing.T) {
	var m *FollowUpMetrics
	m.ObserveRun("ok", 0.1)
	m.ObserveMessage("whatsapp", "sent")
	m.AddMessages("in_app", "sent", 2)
	m.AddDeduped(1)
}
