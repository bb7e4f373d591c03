package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/cache"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/geo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultCacheTTL = 30 * time.Minute

	cacheCapacity     = 10000
	routeWeatherLimit = 8
)

type cachedWeather struct {
	weather   Weather
	fetchedAt time.Time
}

type NodeWeather struct {
	Node       datastructure.RoadNode `json:"node"`
	Weather    *Weather               `json:"weather"`
	Assessment *Assessment            `json:"riskAssessment"`
	Error      string                 `json:"error,omitempty"`
}

type AreaOverview struct {
	Center     datastructure.Coordinate `json:"center"`
	Weather    Weather                  `json:"weather"`
	Assessment Assessment               `json:"riskAssessment"`
	Boundaries geo.BoundingBox          `json:"boundaries"`
}

// CacheStats describes the observation cache. Size counts admitted entries younger than Expiry
// on the service clock. Added and Evicted come from ristretto and include entries it expired or
// evicted on its own.
type CacheStats struct {
	Size    int           `json:"size"`
	Expiry  time.Duration `json:"expiry"`
	Hits    uint64        `json:"hits"`
	Misses  uint64        `json:"misses"`
	Added   uint64        `json:"added"`
	Evicted uint64        `json:"evicted"`
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// Service answers weather queries for flight planning. Current observations are cached per
// location rounded to 2 decimals.
type Service struct {
	provider Provider
	cache    *cache.TTLCache[cachedWeather]
	ttl      time.Duration

	mu         sync.RWMutex
	fetched    map[string]time.Time
	thresholds Thresholds

	now func() time.Time
	log *zap.Logger
}

func NewService(provider Provider, ttl time.Duration, log *zap.Logger, opts ...ServiceOption) (*Service, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	c, err := cache.NewTTLCache[cachedWeather](cacheCapacity, ttl)
	if err != nil {
		return nil, err
	}
	s := &Service{
		provider:   provider,
		cache:      c,
		ttl:        ttl,
		fetched:    make(map[string]time.Time),
		thresholds: DefaultThresholds(),
		now:        time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func cacheKey(lat, lng float64) string {
	return fmt.Sprintf("%.2f,%.2f", lat, lng)
}

func (s *Service) CurrentWeather(ctx context.Context, lat, lng float64) (Weather, error) {
	key := cacheKey(lat, lng)
	if c, ok := s.cache.Get(key); ok && s.now().Sub(c.fetchedAt) < s.ttl {
		return c.weather, nil
	}

	w, err := s.provider.Current(ctx, lat, lng)
	if err != nil {
		return Weather{}, fmt.Errorf("fetch weather at %s: %w", key, err)
	}

	now := s.now()
	admitted := s.cache.Set(key, cachedWeather{weather: w, fetchedAt: now})
	s.cache.Wait()

	s.mu.Lock()
	if admitted {
		s.fetched[key] = now
	} else {
		delete(s.fetched, key)
	}
	s.mu.Unlock()

	s.log.Debug("weather fetched", zap.String("location", key))
	return w, nil
}

func (s *Service) Forecast(ctx context.Context, lat, lng float64, hours int) (Forecast, error) {
	return s.provider.Forecast(ctx, lat, lng, hours)
}

func (s *Service) AssessFlightRisk(w Weather) Assessment {
	return Assess(w, s.Thresholds())
}

// Risk fetches the current weather at a location and rates it.
func (s *Service) Risk(ctx context.Context, lat, lng float64) (Weather, Assessment, error) {
	w, err := s.CurrentWeather(ctx, lat, lng)
	if err != nil {
		return Weather{}, Assessment{}, err
	}
	return w, s.AssessFlightRisk(w), nil
}

// RouteWeather reports the weather at every node of path. A node whose lookup fails carries the
// error instead of failing the whole route.
func (s *Service) RouteWeather(ctx context.Context, path datastructure.Path) ([]NodeWeather, error) {
	if len(path.Nodes) == 0 {
		return nil, ErrIncompleteRoute
	}

	out := make([]NodeWeather, len(path.Nodes))
	var g errgroup.Group
	g.SetLimit(routeWeatherLimit)
	for i, node := range path.Nodes {
		g.Go(func() error {
			out[i].Node = node
			w, err := s.CurrentWeather(ctx, node.Lat, node.Lon)
			if err != nil {
				s.log.Warn("route node weather unavailable", zap.String("node", node.ID), zap.Error(err))
				out[i].Error = err.Error()
				return nil
			}
			a := s.AssessFlightRisk(w)
			out[i].Weather = &w
			out[i].Assessment = &a
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) AreaOverview(ctx context.Context, bbox geo.BoundingBox) (AreaOverview, error) {
	if err := bbox.Validate(); err != nil {
		return AreaOverview{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	lat, lng := bbox.Center()
	w, err := s.CurrentWeather(ctx, lat, lng)
	if err != nil {
		return AreaOverview{}, fmt.Errorf("area weather: %w", err)
	}
	return AreaOverview{
		Center:     datastructure.NewCoordinate(lat, lng),
		Weather:    w,
		Assessment: s.AssessFlightRisk(w),
		Boundaries: bbox,
	}, nil
}

func (s *Service) Thresholds() Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds
}

// SetRiskThresholds merges the non nil fields of p into the current thresholds.
func (s *Service) SetRiskThresholds(p ThresholdsPatch) (Thresholds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.thresholds.merge(p)
	if err := next.Validate(); err != nil {
		return s.thresholds, err
	}
	s.thresholds = next
	s.log.Info("weather risk thresholds updated", zap.Any("thresholds", next))
	return next, nil
}

// ClearExpiredCache drops every entry older than the cache ttl and returns how many went.
func (s *Service) ClearExpiredCache() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, at := range s.fetched {
		if now.Sub(at) >= s.ttl {
			s.cache.Del(key)
			delete(s.fetched, key)
			removed++
		}
	}
	return removed
}

func (s *Service) CacheStats() CacheStats {
	now := s.now()
	size := 0
	s.mu.RLock()
	for _, at := range s.fetched {
		if now.Sub(at) < s.ttl {
			size++
		}
	}
	s.mu.RUnlock()

	st := s.cache.Stats()
	return CacheStats{
		Size:    size,
		Expiry:  s.ttl,
		Hits:    st.Hits,
		Misses:  st.Misses,
		Added:   st.Added,
		Evicted: st.Evicted,
	}
}

func (s *Service) Close() {
	s.cache.Close()
}
