package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/server"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/traffic"
	"go.uber.org/zap"
)

// RegisterFlightInput takes the route either from a saved RouteID or by planning Start to Goal.
type RegisterFlightInput struct {
	ID           string
	RouteID      string
	Start        string
	Goal         string
	Heuristic    string
	AverageSpeed float64
	Altitude     float64
}

type TrafficService struct {
	manager  TrafficManager
	planning *PlanningService
	log      *zap.Logger
}

func NewTrafficService(manager TrafficManager, planning *PlanningService, log *zap.Logger) *TrafficService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TrafficService{manager: manager, planning: planning, log: log}
}

func trafficError(err error) error {
	switch {
	case errors.Is(err, traffic.ErrFlightNotRegistered):
		return server.WrapErrorf(err, server.ErrNotFound, "flight not registered")
	case errors.Is(err, traffic.ErrFlightExists),
		errors.Is(err, traffic.ErrAirspaceFull),
		errors.Is(err, traffic.ErrAirspaceRestricted):
		return server.WrapErrorf(err, server.ErrConflict, "flight rejected")
	case errors.Is(err, traffic.ErrIncompleteFlight),
		errors.Is(err, traffic.ErrInvalidAirspace):
		return server.WrapErrorf(err, server.ErrBadParamInput, "invalid traffic input")
	}
	return server.WrapErrorf(err, server.ErrInternalServerError, "traffic management")
}

func (s *TrafficService) SetAirspaces(airspaces []traffic.Airspace) ([]traffic.AirspaceStats, error) {
	if err := s.manager.InitializeAirspaces(airspaces); err != nil {
		return nil, trafficError(err)
	}
	return s.manager.AirspaceStatistics(), nil
}

func (s *TrafficService) AirspaceStatistics() []traffic.AirspaceStats {
	return s.manager.AirspaceStatistics()
}

func (s *TrafficService) route(ctx context.Context, in RegisterFlightInput) (datastructure.Path, error) {
	if in.RouteID != "" {
		rec, err := s.planning.GetRoute(ctx, in.RouteID)
		if err != nil {
			return datastructure.Path{}, err
		}
		return rec.Path(), nil
	}
	if in.Start == "" || in.Goal == "" {
		return datastructure.Path{}, server.NewErrorf(server.ErrBadParamInput, "either routeId or start and goal are required")
	}
	res, err := s.planning.planForRecord(ctx, in.Start, in.Goal, in.Heuristic)
	if err != nil {
		return datastructure.Path{}, err
	}
	return res.Path, nil
}

func (s *TrafficService) RegisterFlight(ctx context.Context, in RegisterFlightInput) (traffic.FlightStatus, error) {
	path, err := s.route(ctx, in)
	if err != nil {
		return traffic.FlightStatus{}, err
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	st, err := s.manager.RegisterFlight(traffic.FlightPlan{
		ID:           in.ID,
		Route:        path,
		AverageSpeed: in.AverageSpeed,
		Altitude:     in.Altitude,
	})
	if err != nil {
		return traffic.FlightStatus{}, trafficError(err)
	}
	s.log.Info("flight registered", zap.String("flight", st.ID), zap.Int("waypoints", len(path.Nodes)))
	return st, nil
}

func (s *TrafficService) UpdateFlightPosition(id string, pos traffic.Position) (traffic.FlightStatus, error) {
	st, err := s.manager.UpdateFlightPosition(id, pos)
	if err != nil {
		return traffic.FlightStatus{}, trafficError(err)
	}
	return st, nil
}

func (s *TrafficService) FlightStatus(id string) (traffic.FlightStatus, error) {
	st, err := s.manager.FlightStatus(id)
	if err != nil {
		return traffic.FlightStatus{}, trafficError(err)
	}
	return st, nil
}

func (s *TrafficService) RemoveFlight(id string) error {
	if !s.manager.RemoveCompletedFlight(id) {
		return server.WrapErrorf(traffic.ErrFlightNotRegistered, server.ErrNotFound, "flight %s not registered", id)
	}
	return nil
}

func (s *TrafficService) DetectConflicts() []traffic.Conflict {
	return s.manager.DetectConflicts()
}

// ResolveConflicts detects the current conflicts and applies their resolutions.
func (s *TrafficService) ResolveConflicts() []traffic.Resolution {
	conflicts := s.manager.DetectConflicts()
	resolutions := s.manager.ResolveConflicts(conflicts)
	if len(resolutions) > 0 {
		s.log.Info("traffic conflicts resolved", zap.Int("conflicts", len(conflicts)))
	}
	return resolutions
}
