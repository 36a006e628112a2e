package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	accessChecks    *prometheus.CounterVec
	cascadeBatches  *prometheus.CounterVec
	inconsistencies *prometheus.CounterVec
}

// NewMetrics initialises the registry and base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "depot_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "depot_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	accessChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "depot_rbac_access_checks_total",
		Help: "Page access decisions by outcome.",
	}, []string{"outcome"})
	cascadeBatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "depot_rbac_cascade_batches_total",
		Help: "Cascade batches by action and result.",
	}, []string{"action", "result"})
	inconsistencies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "depot_rbac_data_inconsistencies_total",
		Help: "Stale references and cycles detected while building the role tree.",
	}, []string{"kind"})
	registry.MustRegister(requests, duration, accessChecks, cascadeBatches, inconsistencies)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		accessChecks:    accessChecks,
		cascadeBatches:  cascadeBatches,
		inconsistencies: inconsistencies,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveAccessCheck counts a page access decision. Outcome is one of
// "allowed", "denied" or "bypassed" (system user short-circuit).
func (m *Metrics) ObserveAccessCheck(outcome string) {
	if m == nil {
		return
	}
	m.accessChecks.WithLabelValues(outcome).Inc()
}

// ObserveCascade counts a cascade batch with its terminal result.
func (m *Metrics) ObserveCascade(action, result string) {
	if m == nil {
		return
	}
	m.cascadeBatches.WithLabelValues(action, result).Inc()
}

// ObserveInconsistency counts a data integrity warning by kind
// ("missing_parent", "cycle", "dangling_assignment").
func (m *Metrics) ObserveInconsistency(kind string) {
	if m == nil {
		return
	}
	m.inconsistencies.WithLabelValues(kind).Inc()
}

// Registerer exposes the registry for registering custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
