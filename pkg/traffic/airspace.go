package traffic

import (
	"fmt"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/geo"
)

type AltitudeRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Airspace struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Boundaries     geo.BoundingBox `json:"boundaries"`
	AltitudeRange  AltitudeRange   `json:"altitudeRange"`
	Capacity       int             `json:"capacity"`
	CurrentFlights int             `json:"currentFlights"`
	Restricted     bool            `json:"restricted"`
}

type AirspaceStats struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Usage          float64 `json:"usage"` // percent of capacity
	CurrentFlights int     `json:"currentFlights"`
	Capacity       int     `json:"capacity"`
	Restricted     bool    `json:"restricted"`
}

// airspaceItem is the rtree entry of an airspace. The rect is lng/lat.
type airspaceItem struct {
	airspace *Airspace
	rect     rtreego.Rect
}

func (a *airspaceItem) Bounds() rtreego.Rect {
	return a.rect
}

// airspaceIndex finds the airspace of a point. The rtree narrows candidates, s2 does the exact
// containment test.
type airspaceIndex struct {
	tree  *rtreego.Rtree
	byID  map[string]*Airspace
	order []string
}

func newAirspaceIndex(airspaces []Airspace) (*airspaceIndex, error) {
	idx := &airspaceIndex{
		tree: rtreego.NewTree(2, 25, 50),
		byID: make(map[string]*Airspace, len(airspaces)),
	}
	for i := range airspaces {
		a := airspaces[i]
		if a.ID == "" {
			return nil, fmt.Errorf("airspace %d: %w", i, ErrInvalidAirspace)
		}
		if _, dup := idx.byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate airspace %s: %w", a.ID, ErrInvalidAirspace)
		}
		if err := a.Boundaries.Validate(); err != nil {
			return nil, fmt.Errorf("airspace %s: %w: %v", a.ID, ErrInvalidAirspace, err)
		}
		if a.Capacity < 0 {
			return nil, fmt.Errorf("airspace %s capacity %d: %w", a.ID, a.Capacity, ErrInvalidAirspace)
		}
		rect, err := rtreego.NewRectFromPoints(
			rtreego.Point{a.Boundaries.MinLng, a.Boundaries.MinLat},
			rtreego.Point{a.Boundaries.MaxLng, a.Boundaries.MaxLat},
		)
		if err != nil {
			return nil, fmt.Errorf("airspace %s: %w: %v", a.ID, ErrInvalidAirspace, err)
		}
		a.CurrentFlights = 0
		ptr := &a
		idx.byID[a.ID] = ptr
		idx.order = append(idx.order, a.ID)
		idx.tree.Insert(&airspaceItem{airspace: ptr, rect: rect})
	}
	sort.Strings(idx.order)
	return idx, nil
}

// locate returns the airspace containing the point. With overlapping airspaces the smallest id
// wins.
func (idx *airspaceIndex) locate(lat, lng float64) *Airspace {
	if idx == nil {
		return nil
	}
	var found *Airspace
	for _, s := range idx.tree.SearchIntersect(rtreego.Point{lng, lat}.ToRect(1e-9)) {
		a := s.(*airspaceItem).airspace
		if !a.Boundaries.Contains(lat, lng) {
			continue
		}
		if found == nil || a.ID < found.ID {
			found = a
		}
	}
	return found
}

func (idx *airspaceIndex) stats() []AirspaceStats {
	if idx == nil {
		return []AirspaceStats{}
	}
	out := make([]AirspaceStats, 0, len(idx.order))
	for _, id := range idx.order {
		a := idx.byID[id]
		usage := 0.0
		if a.Capacity > 0 {
			usage = float64(a.CurrentFlights) / float64(a.Capacity) * 100
		}
		out = append(out, AirspaceStats{
			ID:             a.ID,
			Name:           a.Name,
			Usage:          usage,
			CurrentFlights: a.CurrentFlights,
			Capacity:       a.Capacity,
			Restricted:     a.Restricted,
		})
	}
	return out
}
