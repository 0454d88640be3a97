package monitoring

import (
	"strings"
	"sync"
	"testing"
)

func TestCountersAndGauges(t *testing.T) {
	mc := NewMetricsCollector()
	mc.IncrCounter("predictions_total", map[string]string{"prediction": "Y"})
	mc.IncrCounter("predictions_total", map[string]string{"prediction": "Y"})
	mc.IncrCounter("predictions_total", map[string]string{"prediction": "N"})
	mc.AddCounter("predictions_total", -5, map[string]string{"prediction": "N"})
	mc.SetGauge("cache_entries", 3, nil)
	mc.SetGauge("cache_entries", 2, nil)

	if got := mc.Value("predictions_total", map[string]string{"prediction": "Y"}); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
	if got := mc.Value("predictions_total", map[string]string{"prediction": "N"}); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
	if got := mc.Value("cache_entries", nil); got != 2 {
		t.Fatalf("expected gauge 2, got %v", got)
	}
	if got := mc.Value("missing", nil); got != 0 {
		t.Fatalf("expected 0 for unknown series, got %v", got)
	}

	snapshot := mc.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 series, got %d", len(snapshot))
	}
	if snapshot[0].Name != "cache_entries" || snapshot[0].Type != MetricTypeGauge {
		t.Fatalf("unexpected first metric: %+v", snapshot[0])
	}
}

func TestExportPrometheus(t *testing.T) {
	mc := NewMetricsCollector()
	mc.Describe("predict_duration_seconds", MetricTypeHistogram, "Prediction latency")
	mc.Observe("predict_duration_seconds", 0.002, nil)
	mc.Observe("predict_duration_seconds", 0.2, nil)
	mc.Observe("predict_duration_seconds", 5, nil)
	mc.IncrCounter("predictions_total", map[string]string{"prediction": "Y"})

	var sb strings.Builder
	if err := mc.ExportPrometheus(&sb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := sb.String()
	for _, want := range []string{
		"# HELP predict_duration_seconds Prediction latency\n",
		"# TYPE predict_duration_seconds histogram\n",
		`predict_duration_seconds_bucket{le="0.0025"} 1` + "\n",
		`predict_duration_seconds_bucket{le="0.25"} 2` + "\n",
		`predict_duration_seconds_bucket{le="+Inf"} 3` + "\n",
		"predict_duration_seconds_count 3\n",
		"# TYPE predictions_total counter\n",
		`predictions_total{prediction="Y"} 1` + "\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestConcurrentUpdates(t *testing.T) {
	mc := NewMetricsCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				mc.IncrCounter("requests_total", nil)
				mc.Observe("latency", 0.01, nil)
			}
		}()
	}
	wg.Wait()
	if got := mc.Value("requests_total", nil); got != 800 {
		t.Fatalf("expected 800, got %v", got)
	}
}

func TestSystemStats(t *testing.T) {
	stats := NewMetricsCollector().GetSystemStats()
	if _, ok := stats["goroutines"]; !ok {
		t.Fatal("expected goroutine count")
	}
}
