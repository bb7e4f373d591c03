package service

import (
	"context"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/geo"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/network"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/traffic"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/weather"
)

type NetworkProvider interface {
	Current() *network.Snapshot
	Reload(ctx context.Context) (*network.Snapshot, error)
}

// RouteStore is implemented by kv.RouteStore and postgres.RouteStore.
type RouteStore interface {
	Save(ctx context.Context, r datastructure.RouteRecord) error
	Get(ctx context.Context, id string) (datastructure.RouteRecord, error)
	Update(ctx context.Context, r datastructure.RouteRecord) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]datastructure.RouteRecord, error)
	ListByCreator(ctx context.Context, creatorID string) ([]datastructure.RouteRecord, error)
	ListByFlightTask(ctx context.Context, flightTaskID string) ([]datastructure.RouteRecord, error)
}

type WeatherService interface {
	CurrentWeather(ctx context.Context, lat, lng float64) (weather.Weather, error)
	Forecast(ctx context.Context, lat, lng float64, hours int) (weather.Forecast, error)
	Risk(ctx context.Context, lat, lng float64) (weather.Weather, weather.Assessment, error)
	RouteWeather(ctx context.Context, path datastructure.Path) ([]weather.NodeWeather, error)
	AreaOverview(ctx context.Context, bbox geo.BoundingBox) (weather.AreaOverview, error)
	SetRiskThresholds(p weather.ThresholdsPatch) (weather.Thresholds, error)
	ClearExpiredCache() int
	CacheStats() weather.CacheStats
}

type TrafficManager interface {
	InitializeAirspaces(airspaces []traffic.Airspace) error
	RegisterFlight(plan traffic.FlightPlan) (traffic.FlightStatus, error)
	UpdateFlightPosition(id string, pos traffic.Position) (traffic.FlightStatus, error)
	FlightStatus(id string) (traffic.FlightStatus, error)
	RemoveCompletedFlight(id string) bool
	AirspaceStatistics() []traffic.AirspaceStats
	DetectConflicts() []traffic.Conflict
	ResolveConflicts(conflicts []traffic.Conflict) []traffic.Resolution
}

// PlanObserver receives planner outcomes, rest.Metrics implements it.
type PlanObserver interface {
	ObservePlan(outcome string)
	ObserveCache(hit bool)
}

type nopObserver struct{}

func (nopObserver) ObservePlan(string) {}
func (nopObserver) ObserveCache(bool)  {}

const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)
