package rest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/geo"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/server/rest/service"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/traffic"
	"go.uber.org/zap"
)

type TrafficService interface {
	SetAirspaces(airspaces []traffic.Airspace) ([]traffic.AirspaceStats, error)
	AirspaceStatistics() []traffic.AirspaceStats
	RegisterFlight(ctx context.Context, in service.RegisterFlightInput) (traffic.FlightStatus, error)
	UpdateFlightPosition(id string, pos traffic.Position) (traffic.FlightStatus, error)
	FlightStatus(id string) (traffic.FlightStatus, error)
	RemoveFlight(id string) error
	DetectConflicts() []traffic.Conflict
	ResolveConflicts() []traffic.Resolution
}

type TrafficHandler struct {
	base
	svc TrafficService
}

func TrafficRouter(r chi.Router, svc TrafficService, log *zap.Logger) {
	handler := &TrafficHandler{base: newBase(log), svc: svc}

	r.Route("/airspaces", func(r chi.Router) {
		r.Put("/", handler.SetAirspaces)
		r.Get("/statistics", handler.AirspaceStatistics)
	})
	r.Route("/flights", func(r chi.Router) {
		r.Post("/", handler.RegisterFlight)
		r.Get("/{id}", handler.FlightStatus)
		r.Put("/{id}/position", handler.UpdateFlightPosition)
		r.Delete("/{id}", handler.RemoveFlight)
	})
	r.Route("/traffic/conflicts", func(r chi.Router) {
		r.Get("/", handler.DetectConflicts)
		r.Post("/resolve", handler.ResolveConflicts)
	})
}

type AirspaceItem struct {
	ID          string          `json:"id" validate:"required"`
	Name        string          `json:"name"`
	Boundaries  geo.BoundingBox `json:"boundaries"`
	MinAltitude float64         `json:"minAltitude" validate:"gte=0"`
	MaxAltitude float64         `json:"maxAltitude" validate:"gtefield=MinAltitude"`
	Capacity    int             `json:"capacity" validate:"gte=0"`
	Restricted  bool            `json:"restricted"`
}

type AirspacesRequest struct {
	Airspaces []AirspaceItem `json:"airspaces" validate:"required,dive"`
}

func (a *AirspacesRequest) Bind(r *http.Request) error {
	return nil
}

type AirspacesResponse struct {
	Airspaces []traffic.AirspaceStats `json:"airspaces"`
}

func (h *TrafficHandler) SetAirspaces(w http.ResponseWriter, r *http.Request) {
	data := &AirspacesRequest{}
	if !h.bind(w, r, data) {
		return
	}

	airspaces := make([]traffic.Airspace, len(data.Airspaces))
	for i, a := range data.Airspaces {
		airspaces[i] = traffic.Airspace{
			ID:            a.ID,
			Name:          a.Name,
			Boundaries:    a.Boundaries,
			AltitudeRange: traffic.AltitudeRange{Min: a.MinAltitude, Max: a.MaxAltitude},
			Capacity:      a.Capacity,
			Restricted:    a.Restricted,
		}
	}
	stats, err := h.svc.SetAirspaces(airspaces)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, r, http.StatusOK, &AirspacesResponse{Airspaces: stats})
}

func (h *TrafficHandler) AirspaceStatistics(w http.ResponseWriter, r *http.Request) {
	ok(w, r, http.StatusOK, &AirspacesResponse{Airspaces: h.svc.AirspaceStatistics()})
}

type RegisterFlightRequest struct {
	ID           string  `json:"id"`
	RouteID      string  `json:"routeId" validate:"required_without_all=Start Goal"`
	Start        string  `json:"start" validate:"required_with=Goal"`
	Goal         string  `json:"goal" validate:"required_with=Start"`
	Heuristic    string  `json:"heuristic" validate:"omitempty,oneof=haversine euclidean none dijkstra"`
	AverageSpeed float64 `json:"averageSpeed" validate:"gte=0"`
	Altitude     float64 `json:"altitude" validate:"gte=0"`
}

func (f *RegisterFlightRequest) Bind(r *http.Request) error {
	return nil
}

func (h *TrafficHandler) RegisterFlight(w http.ResponseWriter, r *http.Request) {
	data := &RegisterFlightRequest{}
	if !h.bind(w, r, data) {
		return
	}

	st, err := h.svc.RegisterFlight(r.Context(), service.RegisterFlightInput{
		ID:           data.ID,
		RouteID:      data.RouteID,
		Start:        data.Start,
		Goal:         data.Goal,
		Heuristic:    data.Heuristic,
		AverageSpeed: data.AverageSpeed,
		Altitude:     data.Altitude,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, r, http.StatusCreated, st)
}

func (h *TrafficHandler) FlightStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.FlightStatus(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, r, http.StatusOK, st)
}

type PositionRequest struct {
	Lat      float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng      float64 `json:"lng" validate:"gte=-180,lte=180"`
	Altitude float64 `json:"altitude" validate:"gte=0"`
}

func (p *PositionRequest) Bind(r *http.Request) error {
	return nil
}

func (h *TrafficHandler) UpdateFlightPosition(w http.ResponseWriter, r *http.Request) {
	data := &PositionRequest{}
	if !h.bind(w, r, data) {
		return
	}

	st, err := h.svc.UpdateFlightPosition(chi.URLParam(r, "id"), traffic.Position{
		Lat:      data.Lat,
		Lng:      data.Lng,
		Altitude: data.Altitude,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, r, http.StatusOK, st)
}

func (h *TrafficHandler) RemoveFlight(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveFlight(chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	render.NoContent(w, r)
}

type ConflictsResponse struct {
	Total     int                `json:"total"`
	Conflicts []traffic.Conflict `json:"conflicts"`
}

func (h *TrafficHandler) DetectConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts := h.svc.DetectConflicts()
	if conflicts == nil {
		conflicts = []traffic.Conflict{}
	}
	ok(w, r, http.StatusOK, &ConflictsResponse{Total: len(conflicts), Conflicts: conflicts})
}

type ResolutionsResponse struct {
	Total       int                  `json:"total"`
	Resolutions []traffic.Resolution `json:"resolutions"`
}

func (h *TrafficHandler) ResolveConflicts(w http.ResponseWriter, r *http.Request) {
	resolutions := h.svc.ResolveConflicts()
	if resolutions == nil {
		resolutions = []traffic.Resolution{}
	}
	ok(w, r, http.StatusOK, &ResolutionsResponse{Total: len(resolutions), Resolutions: resolutions})
}
