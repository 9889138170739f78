// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/citation-engine/internal/pipeline"
)

// Metrics holds the service's Prometheus collectors on a private
// registry. It doubles as a pipeline.Observer.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
}

var _ pipeline.Observer = (*Metrics)(nil)

// NewMetrics registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citation_engine",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "citation_engine",
			Name:      "phase_duration_seconds",
			Help:      "Pipeline phase duration by phase and result.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"phase", "result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citation_engine",
			Name:      "runs_total",
			Help:      "Pipeline runs by final state.",
		}, []string{"state"}),
	}
	m.registry.MustRegister(
		m.requests, m.phaseDuration, m.runs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// PhaseStarted implements pipeline.Observer.
func (m *Metrics) PhaseStarted(string, pipeline.Phase) {}

// PhaseFinished implements pipeline.Observer.
func (m *Metrics) PhaseFinished(_ string, phase pipeline.Phase, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.phaseDuration.WithLabelValues(string(phase), result).Observe(elapsed.Seconds())
}

// RunFinished counts a run by its final state.
func (m *Metrics) RunFinished(state pipeline.Status) {
	m.runs.WithLabelValues(string(state)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observeRequest(route string, code int) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
