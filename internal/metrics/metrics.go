// SPDX-License-Identifier: MIT

// Package metrics exposes detection loop telemetry as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"dronewatch/internal/detect"
	"dronewatch/internal/engine"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dronewatch"

// Latency buckets from 50µs to ~100ms; a block is analysed well inside its
// own duration.
var latencyBuckets = prometheus.ExponentialBuckets(0.00005, 2, 12)

// Metrics owns a private registry so tests and multiple loops never collide
// on the global one.
type Metrics struct {
	registry *prometheus.Registry

	blocks      *prometheus.CounterVec
	detections  *prometheus.CounterVec
	skipped     *prometheus.CounterVec
	sinkErrors  prometheus.Counter
	queueDepth  prometheus.Gauge
	latency     prometheus.Histogram
	peakFreq    prometheus.Gauge
	maxDiff     prometheus.Gauge
	confidence  prometheus.Gauge
	detected    prometheus.Gauge
	lastStatus  prometheus.Gauge
	requests    *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
}

// New registers all collectors plus the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		blocks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_processed_total",
			Help:      "Blocks analysed by the detector.",
		}, []string{"strategy"}),
		detections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Iterations that raised a detection.",
		}, []string{"strategy"}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_skipped_total",
			Help:      "Iterations that produced no status, by reason.",
		}, []string{"reason"}),
		sinkErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Status reports that a sink rejected.",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth_blocks",
			Help:      "Blocks waiting between capture and the loop.",
		}),
		latency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_latency_seconds",
			Help:      "Detector processing time per block.",
			Buckets:   latencyBuckets,
		}),
		peakFreq: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peak_frequency_hz",
			Help:      "Dominant frequency of the last block (peak strategy).",
		}),
		maxDiff: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_band_diff",
			Help:      "Largest band magnitude change of the last comparison (spike strategy).",
		}),
		confidence: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "confidence_ratio",
			Help:      "Match ratio of the peak history.",
		}),
		detected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "detected",
			Help:      "1 while the last status is DETECTED.",
		}),
		lastStatus: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_status_timestamp_seconds",
			Help:      "Unix time of the last emitted status.",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the status server.",
		}, []string{"method", "route", "code"}),
		reqDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// BlockProcessed implements engine.Recorder.
func (m *Metrics) BlockProcessed(status detect.Status) {
	m.blocks.WithLabelValues(status.Strategy).Inc()
	m.latency.Observe(status.Latency.Seconds())
	m.confidence.Set(status.Confidence)
	m.lastStatus.Set(float64(status.Timestamp.UnixNano()) / 1e9)

	switch status.Strategy {
	case detect.StrategySpike:
		m.maxDiff.Set(status.MaxDiff)
	default:
		m.peakFreq.Set(status.PeakFreq)
	}

	if status.Detected() {
		m.detections.WithLabelValues(status.Strategy).Inc()
		m.detected.Set(1)
	} else {
		m.detected.Set(0)
	}
}

// IterationSkipped implements engine.Recorder.
func (m *Metrics) IterationSkipped(reason engine.SkipReason) {
	m.skipped.WithLabelValues(string(reason)).Inc()
}

// SinkFailed implements engine.Recorder.
func (m *Metrics) SinkFailed() {
	m.sinkErrors.Inc()
}

// QueueDepth implements engine.Recorder.
func (m *Metrics) QueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int, took time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.reqDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

var _ engine.Recorder = (*Metrics)(nil)
