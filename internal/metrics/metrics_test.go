// SPDX-License-Identifier: MIT
package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dronewatch/internal/detect"
	"dronewatch/internal/engine"
)

// value returns the first sample of the named family whose labels include
// every pair in labels.
func value(t *testing.T, m *Metrics, name string, labels ...string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, metric := range mf.GetMetric() {
			for i := 0; i+1 < len(labels); i += 2 {
				found := false
				for _, lp := range metric.GetLabel() {
					if lp.GetName() == labels[i] && lp.GetValue() == labels[i+1] {
						found = true
					}
				}
				if !found {
					continue next
				}
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				return float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestBlockProcessed(t *testing.T) {
	m := New()
	ts := time.Unix(1700000000, 0)

	m.BlockProcessed(detect.Status{Strategy: detect.StrategyPeak, PeakFreq: 200, Timestamp: ts, Latency: time.Millisecond})
	m.BlockProcessed(detect.Status{Strategy: detect.StrategyPeak, PeakFreq: 264, Confidence: 0.9, State: detect.Detected, Timestamp: ts})

	tests := []struct {
		name   string
		labels []string
		want   float64
	}{
		{"dronewatch_blocks_processed_total", []string{"strategy", "peak"}, 2},
		{"dronewatch_detections_total", []string{"strategy", "peak"}, 1},
		{"dronewatch_peak_frequency_hz", nil, 264},
		{"dronewatch_confidence_ratio", nil, 0.9},
		{"dronewatch_detected", nil, 1},
		{"dronewatch_block_latency_seconds", nil, 2},
		{"dronewatch_last_status_timestamp_seconds", nil, 1700000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := value(t, m, tt.name, tt.labels...); got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}

	m.BlockProcessed(detect.Status{Strategy: detect.StrategySpike, MaxDiff: 1234})
	if got := value(t, m, "dronewatch_max_band_diff"); got != 1234 {
		t.Errorf("max_band_diff = %v", got)
	}
	if got := value(t, m, "dronewatch_detected"); got != 0 {
		t.Errorf("detected = %v after a scanning status", got)
	}
}

func TestLoopTelemetry(t *testing.T) {
	m := New()
	m.IterationSkipped(engine.SkipAcquisition)
	m.IterationSkipped(engine.SkipAcquisition)
	m.IterationSkipped(engine.SkipPanic)
	m.SinkFailed()
	m.QueueDepth(3)

	if got := value(t, m, "dronewatch_iterations_skipped_total", "reason", "acquisition"); got != 2 {
		t.Errorf("acquisition skips = %v", got)
	}
	if got := value(t, m, "dronewatch_iterations_skipped_total", "reason", "panic"); got != 1 {
		t.Errorf("panic skips = %v", got)
	}
	if got := value(t, m, "dronewatch_sink_failures_total"); got != 1 {
		t.Errorf("sink failures = %v", got)
	}
	if got := value(t, m, "dronewatch_queue_depth_blocks"); got != 3 {
		t.Errorf("queue depth = %v", got)
	}
}

func TestHandlerExposition(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/status", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`dronewatch_http_requests_total{code="200",method="GET",route="/status"} 1`,
		"dronewatch_sink_failures_total 0",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNewIsIsolated(t *testing.T) {
	a, b := New(), New()
	a.SinkFailed()
	if got := value(t, b, "dronewatch_sink_failures_total"); got != 0 {
		t.Errorf("registries share state: %v", got)
	}
}
