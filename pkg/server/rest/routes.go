package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/cache"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/engine/routingalgorithm"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/network"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/server/rest/service"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/snap"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/weather"
	geojson "github.com/paulmach/go.geojson"
	"go.uber.org/zap"
)

type PlanningService interface {
	Plan(ctx context.Context, start, goal, heuristic string) (service.PlanResult, error)
	PlanBatch(ctx context.Context, requests []routingalgorithm.RouteRequest, heuristic string) ([]routingalgorithm.BatchResult, uint64, error)
	SaveRoute(ctx context.Context, in service.SaveRouteInput) (datastructure.RouteRecord, error)
	GetRoute(ctx context.Context, id string) (datastructure.RouteRecord, error)
	ListRoutes(ctx context.Context, creatorID, flightTaskID string) ([]datastructure.RouteRecord, error)
	UpdateRoute(ctx context.Context, id string, in service.UpdateRouteInput) (datastructure.RouteRecord, error)
	DeleteRoute(ctx context.Context, id string) error
	RouteGeoJSON(ctx context.Context, id string) (*geojson.FeatureCollection, error)
	RouteWeather(ctx context.Context, id string) ([]weather.NodeWeather, error)
	NetworkStats() (network.Stats, error)
	NearestNode(lat, lng float64) (snap.Snapped, uint64, error)
	ReloadNetwork(ctx context.Context) (network.Stats, error)
	CacheStats() cache.Stats
}

type RoutesHandler struct {
	base
	svc PlanningService
}

func RoutesRouter(r chi.Router, svc PlanningService, log *zap.Logger) {
	handler := &RoutesHandler{base: newBase(log), svc: svc}

	r.Route("/routes", func(r chi.Router) {
		r.Post("/plan", handler.Plan)
		r.Post("/batch", handler.PlanBatch)
		r.Post("/", handler.SaveRoute)
		r.Get("/", handler.ListRoutes)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handler.GetRoute)
			r.Patch("/", handler.UpdateRoute)
			r.Delete("/", handler.DeleteRoute)
			r.Get("/geojson", handler.RouteGeoJSON)
			r.Get("/weather", handler.RouteWeather)
		})
	})
	r.Route("/network", func(r chi.Router) {
		r.Get("/", handler.NetworkStats)
		r.Get("/nearest", handler.NearestNode)
		r.Post("/reload", handler.ReloadNetwork)
	})
}

type PlanRequest struct {
	Start     string `json:"start" validate:"required"`
	Goal      string `json:"goal" validate:"required"`
	Heuristic string `json:"heuristic" validate:"omitempty,oneof=haversine euclidean none dijkstra"`
}

func (p *PlanRequest) Bind(r *http.Request) error {
	return nil
}

type PlanResponse struct {
	Found          bool                           `json:"found"`
	Path           datastructure.Path             `json:"path"`
	Polyline       string                         `json:"polyline,omitempty"`
	Heuristic      routingalgorithm.HeuristicMode `json:"heuristic"`
	NetworkVersion uint64                         `json:"networkVersion"`
	Cached         bool                           `json:"cached"`
}

func RenderPlanResponse(res service.PlanResult) *PlanResponse {
	resp := &PlanResponse{
		Found:          res.Found,
		Path:           res.Path,
		Heuristic:      res.Heuristic,
		NetworkVersion: res.NetworkVersion,
		Cached:         res.Cached,
	}
	if res.Found {
		resp.Polyline = res.Path.Polyline()
	}
	return resp
}

func (h *RoutesHandler) Plan(w http.ResponseWriter, r *http.Request) {
	data := &PlanRequest{}
	if !h.bind(w, r, data) {
		return
	}

	res, err := h.svc.Plan(r.Context(), data.Start, data.Goal, data.Heuristic)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, r, http.StatusOK, RenderPlanResponse(res))
}

type BatchItem struct {
	ID    string `json:"id"`
	Start string `json:"start" validate:"required"`
	Goal  string `json:"goal" validate:"required"`
}

type BatchRequest struct {
	Requests  []BatchItem `json:"requests" validate:"required,min=1,dive"`
	Heuristic string      `json:"heuristic" validate:"omitempty,oneof=haversine euclidean none dijkstra"`
}

func (b *BatchRequest) Bind(r *http.Request) error {
	return nil
}

type BatchResponse struct {
	NetworkVersion uint64                         `json:"networkVersion"`
	Total          int                            `json:"total"`
	Succeeded      int                            `json:"succeeded"`
	Failed         int                            `json:"failed"`
	Results        []routingalgorithm.BatchResult `json:"results"`
}

func (h *RoutesHandler) PlanBatch(w http.ResponseWriter, r *http.Request) {
	data := &BatchRequest{}
	if !h.bind(w, r, data) {
		return
	}

	reqs := make([]routingalgorithm.RouteRequest, len(data.Requests))
	for i, it := range data.Requests {
		reqs[i] = routingalgorithm.RouteRequest{ID: it.ID, Start: it.Start, Goal: it.Goal}
	}
	results, version, err := h.svc.PlanBatch(r.Context(), reqs, data.Heuristic)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := &BatchResponse{NetworkVersion: version, Total: len(results), Results: results}
	for _, res := range results {
		if res.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	ok(w, r, http.StatusOK, resp)
}

type SaveRouteRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	CreatorID    string `json:"creatorId" validate:"required"`
	FlightTaskID string `json:"flightTaskId"`
	Start        string `json:"start" validate:"required"`
	Goal         string `json:"goal" validate:"required"`
	Heuristic    string `json:"heuristic" validate:"omitempty,oneof=haversine euclidean none dijkstra"`
}

func (s *SaveRouteRequest) Bind(r *http.Request) error {
	return nil
}

func (h *RoutesHandler) SaveRoute(w http.ResponseWriter, r *http.Request) {
	data := &SaveRouteRequest{}
	if !h.bind(w, r, data) {
		return
	}

	rec, err := h.svc.SaveRoute(r.Context(), service.SaveRouteInput{
		Name:         data.Name,
		CreatorID:    data.CreatorID,
		FlightTaskID: data.FlightTaskID,
		Start:        data.Start,
		Goal:         data.Goal,
		Heuristic:    data.Heuristic,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, r, http.StatusCreated, rec)
}

type ListRoutesResponse struct {
	Total  int                         `json:"total"`
	Routes []datastructure.RouteRecord `json:"routes"`
}

func (h *RoutesHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	routes, err := h.svc.ListRoutes(r.Context(), q.Get("creatorId"), q.Get("flightTaskId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, r, http.StatusOK, &ListRoutesResponse{Total: len(routes), Routes: routes})
}

func (h *RoutesHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetRoute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, r, http.StatusOK, rec)
}

type UpdateRouteRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=200"`
	FlightTaskID *string `json:"flightTaskId"`
	Start        *string `json:"start" validate:"omitempty,min=1"`
	Goal         *string `json:"goal" validate:"omitempty,min=1"`
	Heuristic    *string `json:"heuristic" validate:"omitempty,oneof=haversine euclidean none dijkstra"`
}

func (u *UpdateRouteRequest) Bind(r *http.Request) error {
	if u.Name == nil && u.FlightTaskID == nil && u.Start == nil && u.Goal == nil && u.Heuristic == nil {
		return errors.New("nothing to update")
	}
	return nil
}

func (h *RoutesHandler) UpdateRoute(w http.ResponseWriter, r *http.Request) {
	data := &UpdateRouteRequest{}
	if !h.bind(w, r, data) {
		return
	}

	rec, err := h.svc.UpdateRoute(r.Context(), chi.URLParam(r, "id"), service.UpdateRouteInput{
		Name:         data.Name,
		FlightTaskID: data.FlightTaskID,
		Start:        data.Start,
		Goal:         data.Goal,
		Heuristic:    data.Heuristic,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, r, http.StatusOK, rec)
}

func (h *RoutesHandler) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteRoute(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (h *RoutesHandler) RouteGeoJSON(w http.ResponseWriter, r *http.Request) {
	fc, err := h.svc.RouteGeoJSON(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, r, http.StatusOK, fc)
}

type RouteWeatherResponse struct {
	RouteID string                `json:"routeId"`
	Nodes   []weather.NodeWeather `json:"nodes"`
}

func (h *RoutesHandler) RouteWeather(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	nodes, err := h.svc.RouteWeather(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, r, http.StatusOK, &RouteWeatherResponse{RouteID: id, Nodes: nodes})
}

type NetworkResponse struct {
	Network network.Stats `json:"network"`
	Cache   cache.Stats   `json:"cache"`
}

func (h *RoutesHandler) NetworkStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.NetworkStats()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, r, http.StatusOK, &NetworkResponse{Network: stats, Cache: h.svc.CacheStats()})
}

func (h *RoutesHandler) ReloadNetwork(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.ReloadNetwork(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.Info("road network reloaded", zap.Uint64("version", stats.Version))
	ok(w, r, http.StatusOK, &NetworkResponse{Network: stats, Cache: h.svc.CacheStats()})
}

type NearestNodeResponse struct {
	snap.Snapped
	NetworkVersion uint64 `json:"networkVersion"`
}

func (h *RoutesHandler) NearestNode(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := queryLocation(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	nearest, version, err := h.svc.NearestNode(lat, lng)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, r, http.StatusOK, &NearestNodeResponse{Snapped: nearest, NetworkVersion: version})
}
