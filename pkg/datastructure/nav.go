package datastructure

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidNetwork = errors.New("invalid road network")
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{
		Lat: lat,
		Lon: lon,
	}
}

func NewCoordinates(lat, lon []float64) []Coordinate {
	coords := make([]Coordinate, len(lat))
	for i := range lat {
		coords[i] = NewCoordinate(lat[i], lon[i])
	}
	return coords
}

// RoadNode is a road network vertex. Only nodes flagged IsMainRoad take part in planning.
type RoadNode struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lng"`
	IsMainRoad bool    `json:"isMainRoad"`
}

func NewRoadNode(id, name string, lat, lon float64, isMainRoad bool) RoadNode {
	return RoadNode{
		ID:         id,
		Name:       name,
		Lat:        lat,
		Lon:        lon,
		IsMainRoad: isMainRoad,
	}
}

func (n RoadNode) Coordinate() Coordinate {
	return NewCoordinate(n.Lat, n.Lon)
}

// RoadEdge is an undirected road between two nodes.
type RoadEdge struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Distance   float64 `json:"distance"`
	IsMainRoad bool    `json:"isMainRoad"`
}

func NewRoadEdge(from, to string, distance float64, isMainRoad bool) RoadEdge {
	return RoadEdge{
		From:       from,
		To:         to,
		Distance:   distance,
		IsMainRoad: isMainRoad,
	}
}

type RoadNetwork struct {
	Nodes []RoadNode `json:"nodes"`
	Edges []RoadEdge `json:"edges"`
}

// Validate checks node id uniqueness and edge distances. Edges naming a node that is not in the
// list are not an error; NewMainRoadGraph drops them like any other edge outside the main-road
// graph.
func (rn RoadNetwork) Validate() error {
	ids := make(map[string]struct{}, len(rn.Nodes))
	for _, n := range rn.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node with empty id", ErrInvalidNetwork)
		}
		if _, ok := ids[n.ID]; ok {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidNetwork, n.ID)
		}
		ids[n.ID] = struct{}{}
	}

	for i, e := range rn.Edges {
		if math.IsNaN(e.Distance) || math.IsInf(e.Distance, 0) || e.Distance < 0 {
			return fmt.Errorf("%w: edge %d (%s-%s) has invalid distance %v", ErrInvalidNetwork, i, e.From, e.To, e.Distance)
		}
	}
	return nil
}

// MainRoadCounts returns how many nodes and edges carry the main-road flag.
func (rn RoadNetwork) MainRoadCounts() (int, int) {
	nodes, edges := 0, 0
	for _, n := range rn.Nodes {
		if n.IsMainRoad {
			nodes++
		}
	}
	for _, e := range rn.Edges {
		if e.IsMainRoad {
			edges++
		}
	}
	return nodes, edges
}
