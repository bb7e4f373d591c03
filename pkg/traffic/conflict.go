package traffic

import (
	"math"
	"sort"
	"time"

	"github.com/uber/h3-go/v4"
)

const (
	h3Resolution = 9
	// average hexagon edge length at resolution 9
	h3EdgeMeters = 174.38
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

type Conflict struct {
	Flight1    string    `json:"flight1"`
	Flight2    string    `json:"flight2"`
	AirspaceID string    `json:"airspaceId"`
	Distance   float64   `json:"distance"` // meters
	Predicted  bool      `json:"predicted"`
	Time       time.Time `json:"time"`
	Severity   Severity  `json:"severity"`
}

type ResolutionType string

const (
	ResolutionImmediateSeparation ResolutionType = "immediate_separation"
	ResolutionRouteAdjustment     ResolutionType = "route_adjustment"
	ResolutionMonitoring          ResolutionType = "monitoring"
)

const (
	ActionHoldPosition       = "hold_position"
	ActionAdjustAltitude     = "adjust_altitude"
	ActionSpeedReduction     = "speed_reduction"
	ActionContinueMonitoring = "continue_monitoring"
)

type Action struct {
	Flight     string  `json:"flight"`
	Action     string  `json:"action"`
	Duration   int     `json:"duration,omitempty"` // seconds
	Meters     float64 `json:"meters,omitempty"`
	Percentage float64 `json:"percentage,omitempty"`
	Applied    bool    `json:"applied"`
}

type Resolution struct {
	Conflict Conflict       `json:"conflict"`
	Type     ResolutionType `json:"type"`
	Actions  []Action       `json:"actions"`
}

func severityFor(distance, safeDistance float64) Severity {
	switch {
	case distance < safeDistance/3:
		return SeverityHigh
	case distance < safeDistance*2/3:
		return SeverityMedium
	}
	return SeverityLow
}

func resolutionFor(c Conflict) Resolution {
	switch c.Severity {
	case SeverityHigh:
		return Resolution{
			Conflict: c,
			Type:     ResolutionImmediateSeparation,
			Actions: []Action{
				{Flight: c.Flight1, Action: ActionHoldPosition, Duration: 10},
				{Flight: c.Flight2, Action: ActionAdjustAltitude, Meters: 10},
			},
		}
	case SeverityMedium:
		return Resolution{
			Conflict: c,
			Type:     ResolutionRouteAdjustment,
			Actions: []Action{
				{Flight: c.Flight1, Action: ActionSpeedReduction, Percentage: 20},
			},
		}
	}
	return Resolution{
		Conflict: c,
		Type:     ResolutionMonitoring,
		Actions: []Action{
			{Flight: c.Flight1, Action: ActionContinueMonitoring},
			{Flight: c.Flight2, Action: ActionContinueMonitoring},
		},
	}
}

type flightPair struct {
	a, b string
}

func newFlightPair(x, y string) flightPair {
	if x > y {
		x, y = y, x
	}
	return flightPair{a: x, b: y}
}

// candidatePairs buckets every flight into the h3 cells of its current and predicted position
// and pairs flights whose cells lie within k rings of each other, k covering safeDistance.
func candidatePairs(positions map[string][2]Position, safeDistance float64) []flightPair {
	k := int(math.Ceil(safeDistance/h3EdgeMeters)) + 1

	buckets := make(map[h3.Cell][]string)
	home := make(map[string][]h3.Cell, len(positions))
	for id, pp := range positions {
		seen := map[h3.Cell]struct{}{}
		for _, p := range pp {
			cell := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), h3Resolution)
			if _, ok := seen[cell]; ok {
				continue
			}
			seen[cell] = struct{}{}
			buckets[cell] = append(buckets[cell], id)
			home[id] = append(home[id], cell)
		}
	}

	pairs := make(map[flightPair]struct{})
	for id, cells := range home {
		for _, cell := range cells {
			for _, near := range h3.GridDisk(cell, k) {
				for _, other := range buckets[near] {
					if other == id {
						continue
					}
					pairs[newFlightPair(id, other)] = struct{}{}
				}
			}
		}
	}

	out := make([]flightPair, 0, len(pairs))
	for p := range pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].a != out[j].a {
			return out[i].a < out[j].a
		}
		return out[i].b < out[j].b
	})
	return out
}
