package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	plans    *prometheus.CounterVec
	cache    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lats",
			Name:      "http_requests_total",
			Help:      "Number of http requests by route and status code.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lats",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of http requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lats",
			Name:      "route_plans_total",
			Help:      "Route planning results by outcome.",
		}, []string{"outcome"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lats",
			Name:      "route_cache_lookups_total",
			Help:      "Route cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.requests, m.latency, m.plans, m.cache)
	return m
}

func (m *Metrics) ObservePlan(outcome string) {
	m.plans.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}

// PromeHttpMiddleware records request count and latency labelled with the chi route pattern, so
// path parameters do not blow up the label cardinality.
func PromeHttpMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			m.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
