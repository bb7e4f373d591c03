package traffic

import (
	"math"
	"time"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/geo"
)

type FlightState string

const (
	StatusRegistered FlightState = "registered"
	StatusActive     FlightState = "active"
	StatusHolding    FlightState = "holding"
	StatusCompleted  FlightState = "completed"
)

type Position struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Altitude float64 `json:"altitude"`
}

// FlightPlan is what a drone operator registers. AverageSpeed is m/s, zero uses the manager
// default.
type FlightPlan struct {
	ID           string             `json:"id"`
	Route        datastructure.Path `json:"route"`
	AverageSpeed float64            `json:"averageSpeed"`
	Altitude     float64            `json:"altitude"`
}

type Flight struct {
	ID               string             `json:"id"`
	Route            datastructure.Path `json:"route"`
	AverageSpeed     float64            `json:"averageSpeed"`
	SpeedFactor      float64            `json:"speedFactor"`
	Status           FlightState        `json:"status"`
	Position         Position           `json:"currentPosition"`
	CurrentSegment   int                `json:"currentSegment"`
	AirspaceID       string             `json:"airspaceId,omitempty"`
	RegisteredAt     time.Time          `json:"registrationTime"`
	LastUpdate       time.Time          `json:"lastUpdate"`
	EstimatedArrival time.Time          `json:"estimatedArrival"`
	HoldUntil        time.Time          `json:"holdUntil,omitempty"`
}

type FlightStatus struct {
	ID               string      `json:"id"`
	Status           FlightState `json:"status"`
	Position         Position    `json:"currentPosition"`
	AirspaceID       string      `json:"airspaceId,omitempty"`
	CurrentSegment   int         `json:"currentSegment"`
	EstimatedArrival time.Time   `json:"estimatedArrival"`
	Progress         float64     `json:"progress"`
}

// distanceMeters is the 3d separation of two positions.
func distanceMeters(a, b Position) float64 {
	horizontal := geo.HaversineMeters(a.Lat, a.Lng, b.Lat, b.Lng)
	dz := a.Altitude - b.Altitude
	return math.Sqrt(horizontal*horizontal + dz*dz)
}

func nodePosition(n datastructure.RoadNode, altitude float64) Position {
	return Position{Lat: n.Lat, Lng: n.Lon, Altitude: altitude}
}

// eta assumes the whole route at the average speed. Route distance is km.
func eta(start time.Time, totalDistanceKm, speedMps float64) time.Time {
	if speedMps <= 0 {
		return start
	}
	seconds := totalDistanceKm * 1000 / speedMps
	return start.Add(time.Duration(seconds * float64(time.Second)))
}

func (f *Flight) progress() float64 {
	legs := len(f.Route.Nodes) - 1
	if legs <= 0 {
		return 100
	}
	return math.Min(100, float64(f.CurrentSegment)/float64(legs)*100)
}

func (f *Flight) status() FlightStatus {
	return FlightStatus{
		ID:               f.ID,
		Status:           f.Status,
		Position:         f.Position,
		AirspaceID:       f.AirspaceID,
		CurrentSegment:   f.CurrentSegment,
		EstimatedArrival: f.EstimatedArrival,
		Progress:         f.progress(),
	}
}

// holding reports whether the flight is held at now. An expired hold turns the flight active.
func (f *Flight) holding(now time.Time) bool {
	if f.Status != StatusHolding {
		return false
	}
	if now.Before(f.HoldUntil) {
		return true
	}
	f.Status = StatusActive
	return false
}

// advance moves CurrentSegment to the furthest later route node within radius of the position.
func (f *Flight) advance(radiusMeters float64) {
	last := len(f.Route.Nodes) - 1
	for i := f.CurrentSegment + 1; i <= last; i++ {
		n := f.Route.Nodes[i]
		if geo.HaversineMeters(f.Position.Lat, f.Position.Lng, n.Lat, n.Lon) <= radiusMeters {
			f.CurrentSegment = i
		}
	}
	if f.CurrentSegment >= last && f.Status != StatusHolding {
		f.Status = StatusCompleted
	}
}

// predict walks the route forward from the current position for window at the effective speed
// and returns the reached point. Altitude is kept.
func (f *Flight) predict(window time.Duration, now time.Time) Position {
	if f.Status == StatusCompleted || f.holding(now) {
		return f.Position
	}
	remaining := f.AverageSpeed * f.SpeedFactor * window.Seconds()
	pos := f.Position

	for next := f.CurrentSegment + 1; next < len(f.Route.Nodes) && remaining > 0; next++ {
		target := nodePosition(f.Route.Nodes[next], pos.Altitude)
		leg := geo.HaversineMeters(pos.Lat, pos.Lng, target.Lat, target.Lng)
		if leg >= remaining {
			lat, lng := geo.Interpolate(pos.Lat, pos.Lng, target.Lat, target.Lng, remaining/leg)
			return Position{Lat: lat, Lng: lng, Altitude: pos.Altitude}
		}
		remaining -= leg
		pos = target
	}
	return pos
}
