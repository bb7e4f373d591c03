package snap

import (
	"errors"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/geo"
)

var ErrNoRoadNearby = errors.New("no main road node within search radius")

const (
	minRadius = 0.3 // km
	maxRadius = 5.0 // km

	pointTolerance = 1e-9
)

// Snapped is a graph node matched to a query point.
type Snapped struct {
	Node           datastructure.RoadNode `json:"node"`
	DistanceMeters float64                `json:"distanceMeters"`
}

type nodeItem struct {
	idx  int32
	rect rtreego.Rect
}

func (n *nodeItem) Bounds() rtreego.Rect {
	return n.rect
}

// RoadSnapper finds the main-road graph nodes closest to arbitrary coordinates. It is immutable once
// built and safe for concurrent use.
type RoadSnapper struct {
	graph *datastructure.Graph
	tree  *rtreego.Rtree
}

func NewRoadSnapper(g *datastructure.Graph) *RoadSnapper {
	items := make([]rtreego.Spatial, 0, g.GetNodesLen())
	for i := int32(0); i < g.GetNodesLen(); i++ {
		n := g.GetNode(i)
		items = append(items, &nodeItem{idx: i, rect: rtreego.Point{n.Lon, n.Lat}.ToRect(pointTolerance)})
	}
	return &RoadSnapper{graph: g, tree: rtreego.NewTree(2, 25, 50, items...)}
}

func (rs *RoadSnapper) Size() int {
	return rs.tree.Size()
}

// searchBox returns the degree-space box that encloses the circle of radius km around (lat, lon).
func searchBox(lat, lon, radius float64) (rtreego.Rect, error) {
	upperLat, upperLon := geo.GetDestinationPoint(lat, lon, 45, radius*math.Sqrt2)
	lowerLat, lowerLon := geo.GetDestinationPoint(lat, lon, 225, radius*math.Sqrt2)
	return rtreego.NewRectFromPoints(rtreego.Point{lowerLon, lowerLat}, rtreego.Point{upperLon, upperLat})
}

func (rs *RoadSnapper) candidates(lat, lon, radius float64) ([]Snapped, error) {
	box, err := searchBox(lat, lon, radius)
	if err != nil {
		return nil, err
	}

	found := rs.tree.SearchIntersect(box)
	out := make([]Snapped, 0, len(found))
	for _, s := range found {
		n := rs.graph.GetNode(s.(*nodeItem).idx)
		d := geo.HaversineMeters(lat, lon, n.Lat, n.Lon)
		if !(d <= radius*1000) {
			continue
		}
		out = append(out, Snapped{Node: n, DistanceMeters: d})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].Node.ID < out[j].Node.ID
	})
	return out, nil
}

// SnapToRoad returns the nearest main-road node. The search window starts at 300 m and doubles
// until a node is inside it or the 5 km limit is reached.
func (rs *RoadSnapper) SnapToRoad(lat, lon float64) (Snapped, error) {
	for radius := minRadius; ; radius *= 2 {
		if radius > maxRadius {
			radius = maxRadius
		}
		nearest, err := rs.candidates(lat, lon, radius)
		if err != nil {
			return Snapped{}, err
		}
		if len(nearest) > 0 {
			return nearest[0], nil
		}
		if radius == maxRadius {
			return Snapped{}, ErrNoRoadNearby
		}
	}
}

// SnapToRoadsWithinRadius returns up to k nodes within radius km, nearest first. k <= 0 returns all
// of them.
func (rs *RoadSnapper) SnapToRoadsWithinRadius(lat, lon, radius float64, k int) ([]Snapped, error) {
	nearest, err := rs.candidates(lat, lon, radius)
	if err != nil {
		return nil, err
	}
	if k > 0 && len(nearest) > k {
		nearest = nearest[:k]
	}
	return nearest, nil
}
