// SPDX-License-Identifier: MIT
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dronewatch/internal/detect"
	"dronewatch/internal/metrics"
	"dronewatch/internal/transport"

	"github.com/gorilla/websocket"
)

type observed struct {
	mu    sync.Mutex
	calls []string
}

func (o *observed) ObserveRequest(method, route string, code int, took time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, fmt.Sprintf("%s %s %d", method, route, code))
}

func (o *observed) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

func TestHealth(t *testing.T) {
	latest := transport.NewLatest()
	latest.Report(detect.Status{Sequence: 5, State: detect.Detected})
	s := New(Options{Version: "1.2.3", Status: latest})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var got healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "healthy" || got.Version != "1.2.3" || got.LastSeq != 5 || got.Detections != 1 {
		t.Errorf("health = %+v", got)
	}
}

func TestStatus(t *testing.T) {
	latest := transport.NewLatest()
	s := New(Options{Status: latest})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("empty status code = %d, want 503", rec.Code)
	}

	latest.Report(detect.Status{Sequence: 2, Strategy: detect.StrategyPeak, PeakFreq: 264})
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got map[string]any
	json.NewDecoder(rec.Body).Decode(&got)
	if got["seq"] != float64(2) || got["state"] != "SCANNING" || got["peak_freq"] != float64(264) {
		t.Errorf("status = %v", got)
	}
}

func TestRoutesAreOptional(t *testing.T) {
	s := New(Options{})
	for _, path := range []string{"/status", "/metrics", "/ws"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s code = %d, want 404", path, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health code = %d, want 405", rec.Code)
	}
}

func TestMetricsAndInstrumentation(t *testing.T) {
	m := metrics.New()
	obs := &observed{}
	s := New(Options{Metrics: m.Handler(), Observer: obs, Status: transport.NewLatest()})

	for _, path := range []string{"/health", "/status", "/metrics"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if path == "/metrics" && !strings.Contains(rec.Body.String(), "dronewatch_sink_failures_total") {
			t.Error("/metrics did not expose the dronewatch collectors")
		}
	}

	want := []string{"GET /health 200", "GET /status 503", "GET /metrics 200"}
	got := obs.snapshot()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("observed %v, want %v", got, want)
	}
}

func TestStartServesWebSocket(t *testing.T) {
	hub := transport.NewWebSocketHub()
	defer hub.Close()
	obs := &observed{}
	s := New(Options{Address: "127.0.0.1:0", WebSocket: hub, Observer: obs})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("second Start succeeded")
	}

	url := fmt.Sprintf("ws://%s/ws", s.Addr())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial through instrumented router: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	hub.Report(detect.Status{Sequence: 11})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got["seq"] != float64(11) {
		t.Errorf("seq = %v", got["seq"])
	}

	hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if calls := obs.snapshot(); len(calls) != 1 || calls[0] != "GET /ws 101" {
		t.Errorf("observed %v", calls)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	if err := New(Options{}).Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown = %v", err)
	}
}
