package routingalgorithm

import (
	"errors"
	"fmt"
	"math"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/util"
)

var (
	ErrUnknownNode = errors.New("node is not part of the main-road graph")
)

type RouteAlgorithm struct {
	g         Graph
	heuristic HeuristicMode
	weight    float64
}

type Option func(*RouteAlgorithm)

func WithHeuristic(mode HeuristicMode) Option {
	return func(rt *RouteAlgorithm) {
		rt.heuristic = mode
	}
}

// WithHeuristicWeight scales h in f = g + w*h. Weights above 1 trade optimality for fewer
// expanded nodes. Negative weights are treated as 0.
func WithHeuristicWeight(w float64) Option {
	return func(rt *RouteAlgorithm) {
		rt.weight = math.Max(0, w)
	}
}

func NewRouteAlgorithm(g Graph, opts ...Option) *RouteAlgorithm {
	rt := &RouteAlgorithm{
		g:         g,
		heuristic: HeuristicHaversine,
		weight:    1,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *RouteAlgorithm) Heuristic() HeuristicMode {
	return rt.heuristic
}

type cameFromPair struct {
	Edge   datastructure.Adjacent
	NodeID int32
}

// https://www.cs.princeton.edu/courses/archive/spr06/cos423/Handouts/GH05.pdf

// ShortestPathAStar returns the lowest total distance path between two node ids of the main-road
// graph. found is false when the goal is unreachable. A start or goal outside the graph returns
// ErrUnknownNode.
func (rt *RouteAlgorithm) ShortestPathAStar(startID, goalID string) (datastructure.Path, bool, error) {
	from, ok := rt.g.NodeIDx(startID)
	if !ok {
		return datastructure.Path{}, false, fmt.Errorf("start %q: %w", startID, ErrUnknownNode)
	}
	to, ok := rt.g.NodeIDx(goalID)
	if !ok {
		return datastructure.Path{}, false, fmt.Errorf("goal %q: %w", goalID, ErrUnknownNode)
	}

	if from == to {
		return datastructure.NewSingleNodePath(rt.g.GetNode(from)), true, nil
	}

	if !rt.g.Connected(from, to) {
		return datastructure.Path{}, false, nil
	}

	goalNode := rt.g.GetNode(to)

	pq := datastructure.NewMinHeap[int32]()

	costSoFar := make(map[int32]float64)
	costSoFar[from] = 0.0

	pq.Insert(datastructure.PriorityQueueNode[int32]{Rank: rt.estimate(from, goalNode), Item: from})

	cameFrom := make(map[int32]cameFromPair)
	cameFrom[from] = cameFromPair{datastructure.Adjacent{}, -1}

	visited := make(map[int32]struct{})

	for {
		if pq.Size() == 0 {
			return datastructure.Path{}, false, nil
		}

		current, _ := pq.ExtractMin()
		if current.Item == to {
			return rt.buildPath(from, to, cameFrom), true, nil
		}
		visited[current.Item] = struct{}{}

		for _, edge := range rt.g.GetNeighbors(current.Item) {
			if _, ok := visited[edge.ToNodeIDx]; ok {
				continue
			}

			newCost := costSoFar[current.Item] + edge.Dist
			oldCost, seen := costSoFar[edge.ToNodeIDx]
			if seen && newCost >= oldCost {
				continue
			}

			costSoFar[edge.ToNodeIDx] = newCost
			cameFrom[edge.ToNodeIDx] = cameFromPair{edge, current.Item}

			priority := newCost + rt.estimate(edge.ToNodeIDx, goalNode) // add heuristic
			neighborNode := datastructure.PriorityQueueNode[int32]{Rank: priority, Item: edge.ToNodeIDx}
			if !seen {
				pq.Insert(neighborNode)
			} else {
				_ = pq.DecreaseKey(neighborNode)
			}
		}
	}
}

func (rt *RouteAlgorithm) estimate(from int32, goal datastructure.RoadNode) float64 {
	if rt.weight == 0 {
		return 0
	}
	return rt.weight * rt.heuristic.estimate(rt.g.GetNode(from), goal)
}

// buildPath walks the predecessor links back from the goal. The total is summed start to goal
// over the traversed edges so it equals the segment sum exactly.
func (rt *RouteAlgorithm) buildPath(from, to int32, cameFrom map[int32]cameFromPair) datastructure.Path {
	nodes := []datastructure.RoadNode{}
	edges := []cameFromPair{}

	curr := to
	for cameFrom[curr].NodeID != -1 {
		nodes = append(nodes, rt.g.GetNode(curr))
		edges = append(edges, cameFrom[curr])
		curr = cameFrom[curr].NodeID
	}
	nodes = append(nodes, rt.g.GetNode(from))

	nodes = util.ReverseG(nodes)
	edges = util.ReverseG(edges)

	segments := make([]datastructure.Segment, len(edges))
	total := 0.0
	for i, e := range edges {
		segments[i] = datastructure.Segment{
			From:     nodes[i].ID,
			To:       nodes[i+1].ID,
			Distance: e.Edge.Dist,
		}
		total += e.Edge.Dist
	}

	return datastructure.Path{
		Nodes:         nodes,
		Segments:      segments,
		TotalDistance: total,
	}
}

// FindPath filters network down to its main-road graph and searches it once. Callers planning
// repeatedly over one network should build the graph once and reuse a RouteAlgorithm.
func FindPath(startID, goalID string, network datastructure.RoadNetwork, opts ...Option) (datastructure.Path, bool, error) {
	g, err := datastructure.NewMainRoadGraph(network)
	if err != nil {
		return datastructure.Path{}, false, err
	}
	return NewRouteAlgorithm(g, opts...).ShortestPathAStar(startID, goalID)
}
