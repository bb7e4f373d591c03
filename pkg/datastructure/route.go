package datastructure

import (
	"errors"
	"time"
)

var (
	ErrRouteNotFound = errors.New("route not found")
)

// RouteRecord is a planned route kept by a route store. Timestamps are unix nanoseconds so the
// record encodes with kelindar/binary without custom marshalers.
type RouteRecord struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	CreatorID      string     `json:"creator_id"`
	FlightTaskID   string     `json:"flight_task_id,omitempty"`
	StartNodeID    string     `json:"start_node_id"`
	GoalNodeID     string     `json:"goal_node_id"`
	Nodes          []RoadNode `json:"nodes"`
	Segments       []Segment  `json:"segments"`
	TotalDistance  float64    `json:"total_distance"`
	Heuristic      string     `json:"heuristic"`
	NetworkVersion uint64     `json:"network_version"`
	Polyline       string     `json:"polyline"`
	CreatedAt      int64      `json:"created_at"`
	UpdatedAt      int64      `json:"updated_at"`
}

func NewRouteRecord(id, name, creatorID, flightTaskID string, path Path, heuristic string,
	networkVersion uint64, now time.Time) RouteRecord {
	start, goal := "", ""
	if !path.IsEmpty() {
		start = path.Nodes[0].ID
		goal = path.Nodes[len(path.Nodes)-1].ID
	}
	return RouteRecord{
		ID:             id,
		Name:           name,
		CreatorID:      creatorID,
		FlightTaskID:   flightTaskID,
		StartNodeID:    start,
		GoalNodeID:     goal,
		Nodes:          path.Nodes,
		Segments:       path.Segments,
		TotalDistance:  path.TotalDistance,
		Heuristic:      heuristic,
		NetworkVersion: networkVersion,
		Polyline:       path.Polyline(),
		CreatedAt:      now.UnixNano(),
		UpdatedAt:      now.UnixNano(),
	}
}

func (r RouteRecord) Path() Path {
	return Path{
		Nodes:         r.Nodes,
		Segments:      r.Segments,
		TotalDistance: r.TotalDistance,
	}
}

func (r RouteRecord) CreatedTime() time.Time {
	return time.Unix(0, r.CreatedAt)
}

func (r RouteRecord) UpdatedTime() time.Time {
	return time.Unix(0, r.UpdatedAt)
}
