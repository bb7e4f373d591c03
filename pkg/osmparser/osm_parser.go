package osmparser

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/geo"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	progressEvery = 50000
)

type nodeCoord struct {
	lat  float64
	lon  float64
	name string
}

type roadWay struct {
	nodes    []int64
	mainRoad bool
}

var (
	skipHighway = map[string]struct{}{
		"footway":         {},
		"construction":    {},
		"proposed":        {},
		"cycleway":        {},
		"path":            {},
		"pedestrian":      {},
		"busway":          {},
		"steps":           {},
		"bridleway":       {},
		"corridor":        {},
		"street_lamp":     {},
		"bus_stop":        {},
		"crossing":        {},
		"elevator":        {},
		"platform":        {},
		"track":           {},
		"bus_guideway":    {},
		"stop":            {},
		"traffic_signals": {},
	}

	mainRoadHighway = map[string]struct{}{
		"motorway":       {},
		"trunk":          {},
		"primary":        {},
		"secondary":      {},
		"motorway_link":  {},
		"trunk_link":     {},
		"primary_link":   {},
		"secondary_link": {},
	}
)

// OsmParser turns openstreetmap ways and nodes into a RoadNetwork. A parser is single use.
type OsmParser struct {
	log *zap.Logger

	ways            []roadWay
	wayNodeMap      map[int64]bool // node id -> used by a main-road way
	acceptedNodeMap map[int64]nodeCoord
}

func NewOSMParser(log *zap.Logger) *OsmParser {
	if log == nil {
		log = zap.NewNop()
	}
	return &OsmParser{
		log:             log,
		wayNodeMap:      make(map[int64]bool),
		acceptedNodeMap: make(map[int64]nodeCoord),
	}
}

func acceptOsmWay(way *osm.Way) bool {
	if len(way.Nodes) < 2 {
		return false
	}
	highway := way.Tags.Find("highway")
	if highway != "" {
		_, skip := skipHighway[highway]
		return !skip
	}
	return way.Tags.Find("route") == "road"
}

func IsMainRoadHighway(highway string) bool {
	_, ok := mainRoadHighway[highway]
	return ok
}

func (p *OsmParser) addWay(way *osm.Way) {
	w := roadWay{
		nodes:    make([]int64, len(way.Nodes)),
		mainRoad: IsMainRoadHighway(way.Tags.Find("highway")),
	}
	for i, n := range way.Nodes {
		id := int64(n.ID)
		w.nodes[i] = id
		p.wayNodeMap[id] = p.wayNodeMap[id] || w.mainRoad
	}
	p.ways = append(p.ways, w)
	if len(p.ways)%progressEvery == 0 {
		p.log.Info("reading openstreetmap ways", zap.Int("ways", len(p.ways)))
	}
}

func (p *OsmParser) addNode(node *osm.Node, onlyWayNodes bool) {
	id := int64(node.ID)
	if _, ok := p.wayNodeMap[id]; onlyWayNodes && !ok {
		return
	}
	p.acceptedNodeMap[id] = nodeCoord{
		lat:  node.Lat,
		lon:  node.Lon,
		name: node.Tags.Find("name"),
	}
}

// Parse reads every object from scanner in one pass. Node coordinates are kept for all nodes
// because ways may follow the nodes they reference.
func (p *OsmParser) Parse(ctx context.Context, scanner osm.Scanner) (datastructure.RoadNetwork, error) {
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return datastructure.RoadNetwork{}, err
		}
		switch o := scanner.Object().(type) {
		case *osm.Way:
			if acceptOsmWay(o) {
				p.addWay(o)
			}
		case *osm.Node:
			p.addNode(o, false)
		}
	}
	if err := scanner.Err(); err != nil {
		return datastructure.RoadNetwork{}, errors.Wrap(err, "scanner error")
	}
	return p.build(), nil
}

type scannerFunc func(ctx context.Context, r io.Reader) osm.Scanner

func scannerFor(path string) (scannerFunc, error) {
	switch {
	case strings.HasSuffix(path, ".osm.pbf"), strings.HasSuffix(path, ".pbf"):
		return func(ctx context.Context, r io.Reader) osm.Scanner { return osmpbf.New(ctx, r, 4) }, nil
	case strings.HasSuffix(path, ".osm"), strings.HasSuffix(path, ".xml"):
		return func(ctx context.Context, r io.Reader) osm.Scanner { return osmxml.New(ctx, r) }, nil
	}
	return nil, errors.Errorf("file extension %q for file %q is not handled", filepath.Ext(path), path)
}

// ParseFile scans the file twice: ways first, then only the nodes those ways reference.
func (p *OsmParser) ParseFile(ctx context.Context, path string) (datastructure.RoadNetwork, error) {
	newScanner, err := scannerFor(path)
	if err != nil {
		return datastructure.RoadNetwork{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return datastructure.RoadNetwork{}, errors.Wrap(err, "file open")
	}
	defer f.Close()

	scanner := newScanner(ctx, f)
	for scanner.Scan() {
		if way, ok := scanner.Object().(*osm.Way); ok && acceptOsmWay(way) {
			p.addWay(way)
		}
	}
	err = scanner.Err()
	scanner.Close()
	if err != nil {
		return datastructure.RoadNetwork{}, errors.Wrap(err, "scanner error on ways")
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return datastructure.RoadNetwork{}, errors.Wrap(err, "can't repeat seeking")
	}

	scanner = newScanner(ctx, f)
	defer scanner.Close()
	for scanner.Scan() {
		if node, ok := scanner.Object().(*osm.Node); ok {
			p.addNode(node, true)
		}
	}
	if err := scanner.Err(); err != nil {
		return datastructure.RoadNetwork{}, errors.Wrap(err, "scanner error on nodes")
	}

	return p.build(), nil
}

// build emits one node per referenced osm node with coordinates and one edge per consecutive
// way node pair. Edge distance is the haversine length in km.
func (p *OsmParser) build() datastructure.RoadNetwork {
	network := datastructure.RoadNetwork{
		Nodes: make([]datastructure.RoadNode, 0, len(p.wayNodeMap)),
		Edges: make([]datastructure.RoadEdge, 0),
	}

	ids := make([]int64, 0, len(p.wayNodeMap))
	for id := range p.wayNodeMap {
		if _, ok := p.acceptedNodeMap[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		c := p.acceptedNodeMap[id]
		network.Nodes = append(network.Nodes, datastructure.NewRoadNode(
			strconv.FormatInt(id, 10), c.name, c.lat, c.lon, p.wayNodeMap[id]))
	}

	skipped := 0
	for _, w := range p.ways {
		for i := 1; i < len(w.nodes); i++ {
			from, okFrom := p.acceptedNodeMap[w.nodes[i-1]]
			to, okTo := p.acceptedNodeMap[w.nodes[i]]
			if !okFrom || !okTo {
				// node outside the extract
				skipped++
				continue
			}
			network.Edges = append(network.Edges, datastructure.NewRoadEdge(
				strconv.FormatInt(w.nodes[i-1], 10),
				strconv.FormatInt(w.nodes[i], 10),
				geo.CalculateHaversineDistance(from.lat, from.lon, to.lat, to.lon),
				w.mainRoad,
			))
		}
	}

	mainNodes, mainEdges := network.MainRoadCounts()
	p.log.Info("openstreetmap road network built",
		zap.Int("ways", len(p.ways)),
		zap.Int("nodes", len(network.Nodes)),
		zap.Int("edges", len(network.Edges)),
		zap.Int("mainRoadNodes", mainNodes),
		zap.Int("mainRoadEdges", mainEdges),
		zap.Int("skippedSegments", skipped),
	)
	return network
}

// ParseFile is a shortcut for NewOSMParser(log).ParseFile(ctx, path).
func ParseFile(ctx context.Context, path string, log *zap.Logger) (datastructure.RoadNetwork, error) {
	return NewOSMParser(log).ParseFile(ctx, path)
}
