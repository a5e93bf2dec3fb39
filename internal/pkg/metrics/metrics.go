package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GatewayCalls counts persistence gateway calls by entity kind, operation and outcome.
	GatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_calls_total",
			Help: "Total number of persistence gateway calls",
		},
		[]string{"kind", "op", "outcome"},
	)

	// GatewayDuration records persistence gateway call latency.
	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Duration of persistence gateway calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "op"},
	)

	// CacheLoads counts entity cache loads by outcome.
	CacheLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_loads_total",
			Help: "Total number of entity cache loads",
		},
		[]string{"outcome"},
	)

	requestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveGateway records one gateway call.
func ObserveGateway(kind, op, outcome string, started time.Time) {
	GatewayCalls.WithLabelValues(kind, op, outcome).Inc()
	GatewayDuration.WithLabelValues(kind, op).Observe(time.Since(started).Seconds())
}

// Middleware records request counts and latency labelled by route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := strconv.Itoa(ww.Status())
		requestCounter.WithLabelValues(r.Method, path, status).Inc()
		requestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
