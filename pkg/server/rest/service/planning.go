package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/cache"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/engine/routingalgorithm"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/network"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/server"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/snap"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/weather"
	geojson "github.com/paulmach/go.geojson"
	"go.uber.org/zap"
)

type PlanningConfig struct {
	Heuristic       routingalgorithm.HeuristicMode
	HeuristicWeight float64 // 0 means 1, negative is rejected
	BatchWorkers    int
	MaxBatchSize    int
	CacheCapacity   int64
	CacheTTL        time.Duration
}

// PlanResult is a planning answer for one node pair. Path is empty when Found is false.
type PlanResult struct {
	Found          bool                           `json:"found"`
	Path           datastructure.Path             `json:"path"`
	Heuristic      routingalgorithm.HeuristicMode `json:"heuristic"`
	NetworkVersion uint64                         `json:"networkVersion"`
	Cached         bool                           `json:"cached"`
}

type SaveRouteInput struct {
	Name         string
	CreatorID    string
	FlightTaskID string
	Start        string
	Goal         string
	Heuristic    string
}

// UpdateRouteInput changes the non nil fields. A new Start or Goal plans the route again on the
// current network.
type UpdateRouteInput struct {
	Name         *string
	FlightTaskID *string
	Start        *string
	Goal         *string
	Heuristic    *string
}

type PlanningOption func(*PlanningService)

func WithPlanObserver(o PlanObserver) PlanningOption {
	return func(s *PlanningService) {
		s.observer = o
	}
}

func WithPlanningClock(now func() time.Time) PlanningOption {
	return func(s *PlanningService) {
		s.now = now
	}
}

func WithIDGenerator(gen func() string) PlanningOption {
	return func(s *PlanningService) {
		s.newID = gen
	}
}

type PlanningService struct {
	networks NetworkProvider
	store    RouteStore
	weather  WeatherService
	cache    *cache.TTLCache[PlanResult]
	observer PlanObserver

	cfg   PlanningConfig
	now   func() time.Time
	newID func() string
	log   *zap.Logger
}

func NewPlanningService(networks NetworkProvider, store RouteStore, wx WeatherService, cfg PlanningConfig,
	log *zap.Logger, opts ...PlanningOption) (*PlanningService, error) {
	if cfg.Heuristic == "" {
		cfg.Heuristic = routingalgorithm.HeuristicHaversine
	}
	if cfg.HeuristicWeight < 0 || math.IsNaN(cfg.HeuristicWeight) {
		return nil, fmt.Errorf("heuristic weight must not be negative: %v", cfg.HeuristicWeight)
	}
	if cfg.HeuristicWeight == 0 {
		cfg.HeuristicWeight = 1
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1000
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = 10000
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}

	c, err := cache.NewTTLCache[PlanResult](cfg.CacheCapacity, cfg.CacheTTL)
	if err != nil {
		return nil, err
	}

	s := &PlanningService{
		networks: networks,
		store:    store,
		weather:  wx,
		cache:    c,
		observer: nopObserver{},
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *PlanningService) snapshot() (*network.Snapshot, error) {
	snap := s.networks.Current()
	if snap == nil {
		return nil, server.NewErrorf(server.ErrInternalServerError, "road network is not loaded")
	}
	return snap, nil
}

func (s *PlanningService) heuristic(name string) (routingalgorithm.HeuristicMode, error) {
	if name == "" {
		return s.cfg.Heuristic, nil
	}
	mode, err := routingalgorithm.ParseHeuristicMode(name)
	if err != nil {
		return "", server.WrapErrorf(err, server.ErrBadParamInput, "invalid heuristic %q", name)
	}
	return mode, nil
}

func (s *PlanningService) router(snap *network.Snapshot, mode routingalgorithm.HeuristicMode) *routingalgorithm.RouteAlgorithm {
	return routingalgorithm.NewRouteAlgorithm(snap.Graph,
		routingalgorithm.WithHeuristic(mode),
		routingalgorithm.WithHeuristicWeight(s.cfg.HeuristicWeight))
}

// Plan finds the shortest main-road path from start to goal on the current network snapshot.
func (s *PlanningService) Plan(ctx context.Context, start, goal, heuristic string) (PlanResult, error) {
	if err := ctx.Err(); err != nil {
		return PlanResult{}, err
	}
	mode, err := s.heuristic(heuristic)
	if err != nil {
		return PlanResult{}, err
	}
	snap, err := s.snapshot()
	if err != nil {
		return PlanResult{}, err
	}

	key := cache.RouteKey(snap.Version, start, goal, mode.String())
	if res, ok := s.cache.Get(key); ok {
		s.observer.ObserveCache(true)
		res.Cached = true
		return res, nil
	}
	s.observer.ObserveCache(false)

	path, found, err := s.router(snap, mode).ShortestPathAStar(start, goal)
	if err != nil {
		s.observer.ObservePlan(OutcomeError)
		if errors.Is(err, routingalgorithm.ErrUnknownNode) {
			return PlanResult{}, server.WrapErrorf(err, server.ErrBadParamInput, "cannot plan from %q to %q", start, goal)
		}
		return PlanResult{}, server.WrapErrorf(err, server.ErrInternalServerError, "planning failed")
	}

	res := PlanResult{Found: found, Path: path, Heuristic: mode, NetworkVersion: snap.Version}
	if found {
		s.observer.ObservePlan(OutcomeFound)
	} else {
		s.observer.ObservePlan(OutcomeNotFound)
	}
	s.cache.Set(key, res)
	s.cache.Wait()

	s.log.Debug("route planned",
		zap.String("start", start),
		zap.String("goal", goal),
		zap.Bool("found", found),
		zap.Float64("distance", path.TotalDistance),
		zap.Uint64("network_version", snap.Version),
	)
	return res, nil
}

// PlanBatch plans every request against a single snapshot, results are in request order.
func (s *PlanningService) PlanBatch(ctx context.Context, requests []routingalgorithm.RouteRequest,
	heuristic string) ([]routingalgorithm.BatchResult, uint64, error) {
	if len(requests) > s.cfg.MaxBatchSize {
		return nil, 0, server.NewErrorf(server.ErrBadParamInput, "batch of %d requests exceeds the limit of %d",
			len(requests), s.cfg.MaxBatchSize)
	}
	mode, err := s.heuristic(heuristic)
	if err != nil {
		return nil, 0, err
	}
	snap, err := s.snapshot()
	if err != nil {
		return nil, 0, err
	}

	results := s.router(snap, mode).PlanMultipleRoutes(ctx, requests, s.cfg.BatchWorkers)
	for _, r := range results {
		switch {
		case !r.Success:
			s.observer.ObservePlan(OutcomeError)
		case r.Found:
			s.observer.ObservePlan(OutcomeFound)
		default:
			s.observer.ObservePlan(OutcomeNotFound)
		}
	}
	return results, snap.Version, nil
}

func (s *PlanningService) planForRecord(ctx context.Context, start, goal, heuristic string) (PlanResult, error) {
	res, err := s.Plan(ctx, start, goal, heuristic)
	if err != nil {
		return PlanResult{}, err
	}
	if !res.Found {
		return PlanResult{}, server.NewErrorf(server.ErrBadParamInput, "no main-road route from %q to %q", start, goal)
	}
	return res, nil
}

func storeError(err error, id string) error {
	if errors.Is(err, datastructure.ErrRouteNotFound) {
		return server.WrapErrorf(err, server.ErrNotFound, "route %s not found", id)
	}
	return server.WrapErrorf(err, server.ErrInternalServerError, "route store")
}

// SaveRoute plans a route and keeps it in the route store.
func (s *PlanningService) SaveRoute(ctx context.Context, in SaveRouteInput) (datastructure.RouteRecord, error) {
	res, err := s.planForRecord(ctx, in.Start, in.Goal, in.Heuristic)
	if err != nil {
		return datastructure.RouteRecord{}, err
	}

	rec := datastructure.NewRouteRecord(s.newID(), in.Name, in.CreatorID, in.FlightTaskID, res.Path,
		res.Heuristic.String(), res.NetworkVersion, s.now())
	if err := s.store.Save(ctx, rec); err != nil {
		return datastructure.RouteRecord{}, storeError(err, rec.ID)
	}
	s.log.Info("route saved", zap.String("id", rec.ID), zap.String("creator", rec.CreatorID))
	return rec, nil
}

func (s *PlanningService) GetRoute(ctx context.Context, id string) (datastructure.RouteRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return datastructure.RouteRecord{}, storeError(err, id)
	}
	return rec, nil
}

// ListRoutes filters by creator when creatorID is set, else by flight task when flightTaskID is
// set, else returns every route.
func (s *PlanningService) ListRoutes(ctx context.Context, creatorID, flightTaskID string) ([]datastructure.RouteRecord, error) {
	var (
		routes []datastructure.RouteRecord
		err    error
	)
	switch {
	case creatorID != "":
		routes, err = s.store.ListByCreator(ctx, creatorID)
	case flightTaskID != "":
		routes, err = s.store.ListByFlightTask(ctx, flightTaskID)
	default:
		routes, err = s.store.List(ctx)
	}
	if err != nil {
		return nil, storeError(err, "")
	}
	return routes, nil
}

func (s *PlanningService) UpdateRoute(ctx context.Context, id string, in UpdateRouteInput) (datastructure.RouteRecord, error) {
	rec, err := s.GetRoute(ctx, id)
	if err != nil {
		return datastructure.RouteRecord{}, err
	}

	if in.Name != nil {
		rec.Name = *in.Name
	}
	if in.FlightTaskID != nil {
		rec.FlightTaskID = *in.FlightTaskID
	}

	start, goal, heuristic := rec.StartNodeID, rec.GoalNodeID, rec.Heuristic
	if in.Start != nil {
		start = *in.Start
	}
	if in.Goal != nil {
		goal = *in.Goal
	}
	if in.Heuristic != nil {
		heuristic = *in.Heuristic
	}
	if start != rec.StartNodeID || goal != rec.GoalNodeID || heuristic != rec.Heuristic {
		res, err := s.planForRecord(ctx, start, goal, heuristic)
		if err != nil {
			return datastructure.RouteRecord{}, err
		}
		replanned := datastructure.NewRouteRecord(rec.ID, rec.Name, rec.CreatorID, rec.FlightTaskID, res.Path,
			res.Heuristic.String(), res.NetworkVersion, s.now())
		replanned.CreatedAt = rec.CreatedAt
		rec = replanned
	}
	rec.UpdatedAt = s.now().UnixNano()

	if err := s.store.Update(ctx, rec); err != nil {
		return datastructure.RouteRecord{}, storeError(err, id)
	}
	return rec, nil
}

func (s *PlanningService) DeleteRoute(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return storeError(err, id)
	}
	s.log.Info("route deleted", zap.String("id", id))
	return nil
}

func (s *PlanningService) RouteGeoJSON(ctx context.Context, id string) (*geojson.FeatureCollection, error) {
	rec, err := s.GetRoute(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Path().GeoJSON(), nil
}

func (s *PlanningService) RouteWeather(ctx context.Context, id string) ([]weather.NodeWeather, error) {
	rec, err := s.GetRoute(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := s.weather.RouteWeather(ctx, rec.Path())
	if err != nil {
		if errors.Is(err, weather.ErrIncompleteRoute) {
			return nil, server.WrapErrorf(err, server.ErrBadParamInput, "route %s has no nodes", id)
		}
		return nil, server.WrapErrorf(err, server.ErrInternalServerError, "route weather")
	}
	return out, nil
}

func (s *PlanningService) NetworkStats() (network.Stats, error) {
	snap, err := s.snapshot()
	if err != nil {
		return network.Stats{}, err
	}
	return snap.Stats(), nil
}

// NearestNode snaps a coordinate to the closest main-road node of the current snapshot.
func (s *PlanningService) NearestNode(lat, lng float64) (snap.Snapped, uint64, error) {
	// negated so NaN is rejected
	if !(lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180) {
		return snap.Snapped{}, 0, server.NewErrorf(server.ErrBadParamInput, "invalid location %v,%v", lat, lng)
	}
	current, err := s.snapshot()
	if err != nil {
		return snap.Snapped{}, 0, err
	}
	nearest, err := current.Snapper.SnapToRoad(lat, lng)
	if errors.Is(err, snap.ErrNoRoadNearby) {
		return snap.Snapped{}, current.Version, server.WrapErrorf(err, server.ErrNotFound, "no main road near %v,%v", lat, lng)
	}
	if err != nil {
		return snap.Snapped{}, current.Version, server.WrapErrorf(err, server.ErrInternalServerError, "snap to road")
	}
	return nearest, current.Version, nil
}

// ReloadNetwork publishes a freshly loaded snapshot. Cached plans are keyed by snapshot version
// and die with the old snapshot.
func (s *PlanningService) ReloadNetwork(ctx context.Context) (network.Stats, error) {
	snap, err := s.networks.Reload(ctx)
	if err != nil {
		return network.Stats{}, server.WrapErrorf(err, server.ErrInternalServerError, "reload road network")
	}
	s.cache.Clear()
	return snap.Stats(), nil
}

func (s *PlanningService) CacheStats() cache.Stats {
	return s.cache.Stats()
}

func (s *PlanningService) Close() {
	s.cache.Close()
}
