package rest

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/geo"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/server"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/server/rest/service"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/weather"
	"go.uber.org/zap"
)

type WeatherHandler struct {
	base
	svc service.WeatherService
}

func WeatherRouter(r chi.Router, svc service.WeatherService, log *zap.Logger) {
	handler := &WeatherHandler{base: newBase(log), svc: svc}

	r.Route("/weather", func(r chi.Router) {
		r.Get("/", handler.Current)
		r.Get("/forecast", handler.Forecast)
		r.Get("/risk", handler.Risk)
		r.Post("/area", handler.AreaOverview)
		r.Put("/thresholds", handler.SetThresholds)
		r.Get("/cache", handler.CacheStats)
		r.Delete("/cache", handler.ClearExpiredCache)
	})
}

func weatherError(err error) error {
	switch {
	case errors.Is(err, weather.ErrInvalidLocation),
		errors.Is(err, weather.ErrInvalidHours),
		errors.Is(err, weather.ErrInvalidThresholds),
		errors.Is(err, weather.ErrIncompleteRoute):
		return server.WrapErrorf(err, server.ErrBadParamInput, "invalid weather query")
	}
	return server.WrapErrorf(err, server.ErrInternalServerError, "weather unavailable")
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, server.NewErrorf(server.ErrBadParamInput, "query parameter %s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, server.WrapErrorf(err, server.ErrBadParamInput, "query parameter %s must be a number", name)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, server.NewErrorf(server.ErrBadParamInput, "query parameter %s must be finite", name)
	}
	return v, nil
}

func queryLocation(r *http.Request) (float64, float64, error) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		return 0, 0, err
	}
	lng, err := queryFloat(r, "lng")
	if err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

func (h *WeatherHandler) Current(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := queryLocation(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	wx, err := h.svc.CurrentWeather(r.Context(), lat, lng)
	if err != nil {
		h.fail(w, r, weatherError(err))
		return
	}
	ok(w, r, http.StatusOK, wx)
}

func (h *WeatherHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := queryLocation(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	hours := 0
	if raw := r.URL.Query().Get("hours"); raw != "" {
		hours, err = strconv.Atoi(raw)
		if err != nil {
			h.fail(w, r, server.WrapErrorf(err, server.ErrBadParamInput, "query parameter hours must be an integer"))
			return
		}
	}

	f, err := h.svc.Forecast(r.Context(), lat, lng, hours)
	if err != nil {
		h.fail(w, r, weatherError(err))
		return
	}
	ok(w, r, http.StatusOK, f)
}

type RiskResponse struct {
	Weather        weather.Weather    `json:"weather"`
	RiskAssessment weather.Assessment `json:"riskAssessment"`
}

func (h *WeatherHandler) Risk(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := queryLocation(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	wx, a, err := h.svc.Risk(r.Context(), lat, lng)
	if err != nil {
		h.fail(w, r, weatherError(err))
		return
	}
	ok(w, r, http.StatusOK, &RiskResponse{Weather: wx, RiskAssessment: a})
}

type AreaRequest struct {
	MinLat float64 `json:"minLat" validate:"gte=-90,lte=90"`
	MaxLat float64 `json:"maxLat" validate:"gte=-90,lte=90,gtefield=MinLat"`
	MinLng float64 `json:"minLng" validate:"gte=-180,lte=180"`
	MaxLng float64 `json:"maxLng" validate:"gte=-180,lte=180,gtefield=MinLng"`
}

func (a *AreaRequest) Bind(r *http.Request) error {
	return nil
}

func (h *WeatherHandler) AreaOverview(w http.ResponseWriter, r *http.Request) {
	data := &AreaRequest{}
	if !h.bind(w, r, data) {
		return
	}

	ov, err := h.svc.AreaOverview(r.Context(), geo.NewBoundingBox(data.MinLat, data.MaxLat, data.MinLng, data.MaxLng))
	if err != nil {
		h.fail(w, r, weatherError(err))
		return
	}
	ok(w, r, http.StatusOK, ov)
}

type ThresholdsRequest struct {
	weather.ThresholdsPatch
}

func (t *ThresholdsRequest) Bind(r *http.Request) error {
	p := t.ThresholdsPatch
	if p.WindSpeed == nil && p.Visibility == nil && p.Precipitation == nil &&
		p.TemperatureMin == nil && p.TemperatureMax == nil {
		return errors.New("at least one threshold is required")
	}
	return nil
}

func (h *WeatherHandler) SetThresholds(w http.ResponseWriter, r *http.Request) {
	data := &ThresholdsRequest{}
	if !h.bind(w, r, data) {
		return
	}

	th, err := h.svc.SetRiskThresholds(data.ThresholdsPatch)
	if err != nil {
		h.fail(w, r, weatherError(err))
		return
	}
	ok(w, r, http.StatusOK, th)
}

func (h *WeatherHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	ok(w, r, http.StatusOK, h.svc.CacheStats())
}

type ClearCacheResponse struct {
	Removed int                `json:"removed"`
	Cache   weather.CacheStats `json:"cache"`
}

func (h *WeatherHandler) ClearExpiredCache(w http.ResponseWriter, r *http.Request) {
	removed := h.svc.ClearExpiredCache()
	ok(w, r, http.StatusOK, &ClearCacheResponse{Removed: removed, Cache: h.svc.CacheStats()})
}
