package datastructure

import (
	geojson "github.com/paulmach/go.geojson"
	"github.com/twpayne/go-polyline"
)

type Segment struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Distance float64 `json:"distance"`
}

// Path is an ordered node sequence from start to goal. Segments[i] links Nodes[i] and Nodes[i+1].
type Path struct {
	Nodes         []RoadNode `json:"nodes"`
	Segments      []Segment  `json:"segments"`
	TotalDistance float64    `json:"totalDistance"`
}

func NewSingleNodePath(n RoadNode) Path {
	return Path{
		Nodes:         []RoadNode{n},
		Segments:      []Segment{},
		TotalDistance: 0,
	}
}

func (p Path) IsEmpty() bool {
	return len(p.Nodes) == 0
}

func (p Path) NodeIDs() []string {
	ids := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func (p Path) Coordinates() []Coordinate {
	coords := make([]Coordinate, len(p.Nodes))
	for i, n := range p.Nodes {
		coords[i] = n.Coordinate()
	}
	return coords
}

func (p Path) Polyline() string {
	return CreatePolyline(p.Coordinates())
}

func CreatePolyline(path []Coordinate) string {
	coords := make([][]float64, 0, len(path))
	for _, p := range path {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}

// GeoJSON renders the path as a LineString feature followed by one Point feature per node.
func (p Path) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if p.IsEmpty() {
		return fc
	}

	line := make([][]float64, len(p.Nodes))
	for i, n := range p.Nodes {
		line[i] = []float64{n.Lon, n.Lat}
	}
	// a LineString needs at least two positions
	if len(line) == 1 {
		line = append(line, line[0])
	}
	lineFeature := geojson.NewLineStringFeature(line)
	lineFeature.SetProperty("totalDistance", p.TotalDistance)
	lineFeature.SetProperty("nodes", p.NodeIDs())
	fc.AddFeature(lineFeature)

	for i, n := range p.Nodes {
		pt := geojson.NewPointFeature([]float64{n.Lon, n.Lat})
		pt.SetProperty("id", n.ID)
		pt.SetProperty("name", n.Name)
		pt.SetProperty("order", i)
		fc.AddFeature(pt)
	}
	return fc
}
