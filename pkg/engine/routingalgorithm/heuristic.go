package routingalgorithm

import (
	"fmt"
	"strings"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/geo"
)

type HeuristicMode string

const (
	// HeuristicHaversine estimates the remaining cost with the great-circle distance in km.
	// It is admissible when edge distances are km and never shorter than the straight line.
	HeuristicHaversine HeuristicMode = "haversine"
	// HeuristicEuclidean is planar distance over raw lat/lon degrees. It is an approximation
	// mode kept for networks whose weights were tuned against it.
	HeuristicEuclidean HeuristicMode = "euclidean"
	// HeuristicNone turns the search into plain dijkstra.
	HeuristicNone HeuristicMode = "none"
)

func ParseHeuristicMode(s string) (HeuristicMode, error) {
	switch HeuristicMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", HeuristicHaversine:
		return HeuristicHaversine, nil
	case HeuristicEuclidean:
		return HeuristicEuclidean, nil
	case HeuristicNone, "dijkstra":
		return HeuristicNone, nil
	}
	return "", fmt.Errorf("unknown heuristic mode %q", s)
}

func (m HeuristicMode) String() string {
	return string(m)
}

func (m HeuristicMode) estimate(from, to datastructure.RoadNode) float64 {
	switch m {
	case HeuristicEuclidean:
		return geo.PlanarDistance(from.Lat, from.Lon, to.Lat, to.Lon)
	case HeuristicNone:
		return 0
	default:
		return geo.CalculateHaversineDistance(from.Lat, from.Lon, to.Lat, to.Lon)
	}
}
