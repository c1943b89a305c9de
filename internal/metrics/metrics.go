// Package metrics holds the Prometheus collectors for slot generation,
// calendar fetches and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "timely"

// Metrics is a set of collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	SlotsGenerated   prometheus.Counter
	SlotsUnavailable prometheus.Counter
	Proposals        *prometheus.CounterVec // by outcome
	BusyFetchErrors  *prometheus.CounterVec // by source
	EventsConfirmed  prometheus.Counter

	RequestsTotal   *prometheus.CounterVec   // by method, route, status
	RequestDuration *prometheus.HistogramVec // by method, route, status
	ActiveRequests  prometheus.Gauge
}

// New creates and registers the collectors on a fresh registry, which also
// carries the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		SlotsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_generated_total",
			Help:      "Candidate slots produced by the time grid.",
		}),
		SlotsUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_unavailable_total",
			Help:      "Candidate slots marked unavailable by busy time.",
		}),
		Proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_total",
			Help:      "Slot proposals by outcome.",
		}, []string{"outcome"}),
		BusyFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "busy_fetch_errors_total",
			Help:      "Calendar source fetch or parse failures.",
		}, []string{"source"}),
		EventsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_confirmed_total",
			Help:      "Events written to the calendar.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "active_requests",
			Help:      "Requests currently being served.",
		}),
	}

	reg.MustRegister(
		m.SlotsGenerated,
		m.SlotsUnavailable,
		m.Proposals,
		m.BusyFetchErrors,
		m.EventsConfirmed,
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveProposal records one Generate+Resolve pass.
func (m *Metrics) ObserveProposal(generated, unavailable int) {
	m.SlotsGenerated.Add(float64(generated))
	m.SlotsUnavailable.Add(float64(unavailable))
	m.Proposals.WithLabelValues("ok").Inc()
}

// ObserveProposalError records a proposal that failed.
func (m *Metrics) ObserveProposalError() {
	m.Proposals.WithLabelValues("error").Inc()
}

// ObserveConfirmed counts an event written to the calendar.
func (m *Metrics) ObserveConfirmed() {
	m.EventsConfirmed.Inc()
}

// statusWriter captures the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush lets streaming handlers work through the middleware.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Middleware records request count, latency and in-flight requests. The
// route label is the ServeMux pattern, so path parameters do not explode
// cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.ActiveRequests.Inc()
		defer m.ActiveRequests.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(sw.status)
		m.RequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.RequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}
