// Package metrics exposes Prometheus instrumentation for the scanner, the
// oracle and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records service metrics into its own registry.
type Recorder struct {
	registry *prometheus.Registry

	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	consults        *prometheus.CounterVec
	consultLatency  prometheus.Histogram
	scanCycles      *prometheus.CounterVec
	scanMarkets     prometheus.Gauge
	scanDropped     prometheus.Counter
	edgeScores      prometheus.Histogram
	topEdges        prometheus.Gauge
	errorsTotal     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// New creates a Recorder with Go runtime and process collectors attached.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		providerCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyedge_provider_calls_total",
				Help: "Judgment provider calls by outcome",
			},
			[]string{"provider", "outcome"},
		),
		providerLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polyedge_provider_duration_seconds",
				Help:    "Judgment provider call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		consults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyedge_consults_total",
				Help: "Oracle consultations, split by whether the local fallback was used",
			},
			[]string{"fallback"},
		),
		consultLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "polyedge_consult_duration_seconds",
			Help:    "End-to-end oracle consultation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		scanCycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyedge_scan_cycles_total",
				Help: "Scanner cycles by feed source and result",
			},
			[]string{"source", "result"},
		),
		scanMarkets: f.NewGauge(prometheus.GaugeOpts{
			Name: "polyedge_scan_markets",
			Help: "Markets scored in the last scan cycle",
		}),
		scanDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "polyedge_scan_dropped_total",
			Help: "Markets rejected at the ingestion boundary",
		}),
		edgeScores: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "polyedge_edge_score",
			Help:    "Distribution of edge scores",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),
		topEdges: f.NewGauge(prometheus.GaugeOpts{
			Name: "polyedge_top_edges",
			Help: "Markets on the current edge board",
		}),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyedge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyedge_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polyedge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveProvider records one provider call.
func (r *Recorder) ObserveProvider(provider, outcome string, elapsed time.Duration) {
	r.providerCalls.WithLabelValues(provider, outcome).Inc()
	r.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveConsult records one oracle consultation.
func (r *Recorder) ObserveConsult(fallback bool, elapsed time.Duration) {
	r.consults.WithLabelValues(strconv.FormatBool(fallback)).Inc()
	r.consultLatency.Observe(elapsed.Seconds())
}

// ObserveScan records a finished scan cycle.
func (r *Recorder) ObserveScan(source string, ok bool, scored, dropped int) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.scanCycles.WithLabelValues(source, result).Inc()
	if ok {
		r.scanMarkets.Set(float64(scored))
	}
	r.scanDropped.Add(float64(dropped))
}

// ObserveEdge records one edge score.
func (r *Recorder) ObserveEdge(score float64) {
	r.edgeScores.Observe(score)
}

// SetTopEdges records the size of the current edge board.
func (r *Recorder) SetTopEdges(n int) {
	r.topEdges.Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// ObserveHTTP records one served request.
func (r *Recorder) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
