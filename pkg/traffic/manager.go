package traffic

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrInvalidAirspace     = errors.New("invalid airspace")
	ErrIncompleteFlight    = errors.New("flight information is incomplete")
	ErrFlightExists        = errors.New("flight already registered")
	ErrFlightNotRegistered = errors.New("flight not registered")
	ErrAirspaceFull        = errors.New("airspace reached its capacity")
	ErrAirspaceRestricted  = errors.New("airspace is restricted")
)

const (
	DefaultSafeDistance     = 50.0 // meters
	DefaultPredictionWindow = 30 * time.Second
	DefaultSpeed            = 10.0 // m/s

	// a drone within this distance of a route node has reached it
	waypointRadiusMeters = 15.0
)

type Config struct {
	SafeDistance     float64       // meters
	PredictionWindow time.Duration // look-ahead of DetectConflicts
	DefaultSpeed     float64       // m/s, used when a plan has none
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager tracks airspaces and active flights. It is safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	airspaces *airspaceIndex
	flights   map[string]*Flight

	cfg Config
	now func() time.Time
	log *zap.Logger
}

func NewManager(cfg Config, log *zap.Logger, opts ...Option) *Manager {
	if cfg.SafeDistance <= 0 {
		cfg.SafeDistance = DefaultSafeDistance
	}
	if cfg.PredictionWindow <= 0 {
		cfg.PredictionWindow = DefaultPredictionWindow
	}
	if cfg.DefaultSpeed <= 0 {
		cfg.DefaultSpeed = DefaultSpeed
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		flights: make(map[string]*Flight),
		cfg:     cfg,
		now:     time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InitializeAirspaces replaces every airspace. Flight counts are rebuilt from the registered
// flights' start positions.
func (m *Manager) InitializeAirspaces(airspaces []Airspace) error {
	idx, err := newAirspaceIndex(airspaces)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.flights {
		f.AirspaceID = ""
		if len(f.Route.Nodes) == 0 {
			continue
		}
		start := f.Route.Nodes[0]
		if a := idx.locate(start.Lat, start.Lon); a != nil {
			a.CurrentFlights++
			f.AirspaceID = a.ID
		}
	}
	m.airspaces = idx

	m.log.Info("airspaces initialized", zap.Int("airspaces", len(airspaces)), zap.Int("activeFlights", len(m.flights)))
	return nil
}

// RegisterFlight adds a flight at the first node of its route. The airspace containing that node
// must not be restricted or full.
func (m *Manager) RegisterFlight(plan FlightPlan) (FlightStatus, error) {
	if plan.ID == "" || plan.Route.IsEmpty() {
		return FlightStatus{}, ErrIncompleteFlight
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.flights[plan.ID]; ok {
		return FlightStatus{}, fmt.Errorf("flight %s: %w", plan.ID, ErrFlightExists)
	}

	start := plan.Route.Nodes[0]
	airspace := m.airspaces.locate(start.Lat, start.Lon)
	if airspace != nil {
		if airspace.Restricted {
			return FlightStatus{}, fmt.Errorf("airspace %s: %w", airspace.Name, ErrAirspaceRestricted)
		}
		if airspace.CurrentFlights >= airspace.Capacity {
			return FlightStatus{}, fmt.Errorf("airspace %s: %w", airspace.Name, ErrAirspaceFull)
		}
	}

	speed := plan.AverageSpeed
	if speed <= 0 {
		speed = m.cfg.DefaultSpeed
	}

	now := m.now()
	f := &Flight{
		ID:               plan.ID,
		Route:            plan.Route,
		AverageSpeed:     speed,
		SpeedFactor:      1,
		Status:           StatusRegistered,
		Position:         nodePosition(start, plan.Altitude),
		RegisteredAt:     now,
		LastUpdate:       now,
		EstimatedArrival: eta(now, plan.Route.TotalDistance, speed),
	}
	if airspace != nil {
		airspace.CurrentFlights++
		f.AirspaceID = airspace.ID
	}
	m.flights[f.ID] = f

	m.log.Debug("flight registered", zap.String("flight", f.ID), zap.String("airspace", f.AirspaceID),
		zap.Time("eta", f.EstimatedArrival))
	return f.status(), nil
}

// UpdateFlightPosition records a new position and advances the current segment when the drone
// reached the next route node.
func (m *Manager) UpdateFlightPosition(id string, pos Position) (FlightStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flights[id]
	if !ok {
		return FlightStatus{}, fmt.Errorf("flight %s: %w", id, ErrFlightNotRegistered)
	}

	now := m.now()
	f.Position = pos
	f.LastUpdate = now
	if !f.holding(now) && f.Status == StatusRegistered {
		f.Status = StatusActive
	}
	f.advance(waypointRadiusMeters)
	return f.status(), nil
}

func (m *Manager) FlightStatus(id string) (FlightStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flights[id]
	if !ok {
		return FlightStatus{}, fmt.Errorf("flight %s: %w", id, ErrFlightNotRegistered)
	}
	f.holding(m.now())
	return f.status(), nil
}

// Flights returns a copy of every registered flight ordered by id.
func (m *Manager) Flights() []Flight {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Flight, 0, len(m.flights))
	for _, f := range m.flights {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveCompletedFlight drops a flight and frees its slot in the start airspace. It reports
// whether the flight existed.
func (m *Manager) RemoveCompletedFlight(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flights[id]
	if !ok {
		return false
	}
	if m.airspaces != nil {
		if a, ok := m.airspaces.byID[f.AirspaceID]; ok && a.CurrentFlights > 0 {
			a.CurrentFlights--
		}
	}
	delete(m.flights, id)
	return true
}

func (m *Manager) AirspaceStatistics() []AirspaceStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.airspaces.stats()
}

// DetectConflicts reports flight pairs inside the same airspace whose current or predicted
// separation is below the safe distance. Severity grades the separation that triggered the
// conflict.
func (m *Manager) DetectConflicts() []Conflict {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	positions := make(map[string][2]Position, len(m.flights))
	for id, f := range m.flights {
		if f.Status == StatusCompleted {
			continue
		}
		positions[id] = [2]Position{f.Position, f.predict(m.cfg.PredictionWindow, now)}
	}

	conflicts := []Conflict{}
	for _, pair := range candidatePairs(positions, m.cfg.SafeDistance) {
		p1, p2 := positions[pair.a], positions[pair.b]

		a1 := m.airspaces.locate(p1[0].Lat, p1[0].Lng)
		a2 := m.airspaces.locate(p2[0].Lat, p2[0].Lng)
		if a1 == nil || a2 == nil || a1.ID != a2.ID {
			continue
		}

		predicted := false
		dist := distanceMeters(p1[0], p2[0])
		if dist >= m.cfg.SafeDistance {
			dist = distanceMeters(p1[1], p2[1])
			predicted = true
		}
		if dist >= m.cfg.SafeDistance {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Flight1:    pair.a,
			Flight2:    pair.b,
			AirspaceID: a1.ID,
			Distance:   dist,
			Predicted:  predicted,
			Time:       now,
			Severity:   severityFor(dist, m.cfg.SafeDistance),
		})
	}

	if len(conflicts) > 0 {
		m.log.Warn("flight conflicts detected", zap.Int("conflicts", len(conflicts)))
	}
	return conflicts
}

// ResolveConflicts builds a resolution per conflict and applies its actions to the flights that
// are still registered: hold for the given seconds, climb by the given meters or cut speed by
// the given percentage.
func (m *Manager) ResolveConflicts(conflicts []Conflict) []Resolution {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]Resolution, 0, len(conflicts))
	for _, c := range conflicts {
		r := resolutionFor(c)
		for i := range r.Actions {
			r.Actions[i].Applied = m.apply(r.Actions[i], now)
		}
		out = append(out, r)
	}
	return out
}

func (m *Manager) apply(a Action, now time.Time) bool {
	f, ok := m.flights[a.Flight]
	if !ok {
		return false
	}
	switch a.Action {
	case ActionHoldPosition:
		f.Status = StatusHolding
		f.HoldUntil = now.Add(time.Duration(a.Duration) * time.Second)
	case ActionAdjustAltitude:
		f.Position.Altitude += a.Meters
	case ActionSpeedReduction:
		f.SpeedFactor *= 1 - a.Percentage/100
	case ActionContinueMonitoring:
	default:
		return false
	}
	m.log.Info("conflict resolution applied", zap.String("flight", a.Flight), zap.String("action", a.Action))
	return true
}

func (m *Manager) Config() Config {
	return m.cfg
}
