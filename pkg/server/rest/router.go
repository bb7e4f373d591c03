package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/server/rest/service"
	mymiddleware "github.com/lihanning0817/low-altitude-traffic-system/pkg/server/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Services struct {
	Planning PlanningService
	Traffic  TrafficService
	Weather  service.WeatherService
}

type RouterConfig struct {
	EnableProfiler bool
}

// NewRouter mounts every api route under /api/v1 plus /metrics and, when enabled, /debug.
func NewRouter(svcs Services, reg *prometheus.Registry, m *Metrics, cfg RouterConfig, log *zap.Logger) *chi.Mux {
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(mymiddleware.Logger(log, "/metrics"))
	r.Use(PromeHttpMiddleware(m)) // prometheus http middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.EnableProfiler {
		r.Mount("/debug", middleware.Profiler())
	}
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		RoutesRouter(r, svcs.Planning, log)
		TrafficRouter(r, svcs.Traffic, log)
		WeatherRouter(r, svcs.Weather, log)
	})
	return r
}
