package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/flemzord/chatmem/internal/memory"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports memory events and HTTP traffic to Prometheus. It
// implements memory.Observer.
type Metrics struct {
	registry *prometheus.Registry

	events          *prometheus.CounterVec
	messageTokens   prometheus.Histogram
	droppedMessages prometheus.Counter
	persistFailures *prometheus.CounterVec
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// Compile-time interface check.
var _ memory.Observer = (*Metrics)(nil)

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatmem",
			Name:      "memory_events_total",
			Help:      "Memory manager events by type.",
		}, []string{"type"}),
		messageTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatmem",
			Name:      "conversation_tokens",
			Help:      "Conversation token count after each appended message.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 8),
		}),
		droppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatmem",
			Name:      "compressed_messages_total",
			Help:      "Messages folded into summaries by compression.",
		}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatmem",
			Name:      "persist_failures_total",
			Help:      "Persistence writes that failed and were swallowed.",
		}, []string{"op"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatmem",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatmem",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events, m.messageTokens, m.droppedMessages, m.persistFailures,
		m.requests, m.latency,
	)
	return m
}

// Observe implements memory.Observer.
func (m *Metrics) Observe(e memory.Event) {
	m.events.WithLabelValues(string(e.Type)).Inc()
	switch e.Type {
	case memory.EventMessageAdded:
		m.messageTokens.Observe(float64(e.TokenCount))
	case memory.EventCompressed:
		m.droppedMessages.Add(float64(e.Dropped))
	case memory.EventPersistFailed:
		m.persistFailures.WithLabelValues(e.Op).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// middleware records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
