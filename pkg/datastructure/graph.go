package datastructure

import (
	"fmt"
)

// Adjacent is one half of an undirected edge as seen from its source node.
type Adjacent struct {
	ToNodeIDx int32
	Dist      float64
	EdgeIDx   int32
}

// Graph is the immutable main-road subgraph of a RoadNetwork. Nodes are addressed by a dense
// int32 index; the original string ids resolve through NodeIDx.
type Graph struct {
	nodes     []RoadNode
	nodeIDx   map[string]int32
	adj       [][]Adjacent
	edges     []RoadEdge
	component []int32
	numComp   int
}

// NewMainRoadGraph keeps main-road nodes and the main-road edges whose both endpoints survived
// the node filter.
func NewMainRoadGraph(network RoadNetwork) (*Graph, error) {
	if err := network.Validate(); err != nil {
		return nil, err
	}

	g := &Graph{
		nodes:   make([]RoadNode, 0, len(network.Nodes)),
		nodeIDx: make(map[string]int32, len(network.Nodes)),
	}

	for _, n := range network.Nodes {
		if !n.IsMainRoad {
			continue
		}
		g.nodeIDx[n.ID] = int32(len(g.nodes))
		g.nodes = append(g.nodes, n)
	}

	g.adj = make([][]Adjacent, len(g.nodes))
	for _, e := range network.Edges {
		if !e.IsMainRoad {
			continue
		}
		from, okFrom := g.nodeIDx[e.From]
		to, okTo := g.nodeIDx[e.To]
		if !okFrom || !okTo {
			continue
		}
		edgeIDx := int32(len(g.edges))
		g.edges = append(g.edges, e)
		g.adj[from] = append(g.adj[from], Adjacent{ToNodeIDx: to, Dist: e.Distance, EdgeIDx: edgeIDx})
		if from != to {
			g.adj[to] = append(g.adj[to], Adjacent{ToNodeIDx: from, Dist: e.Distance, EdgeIDx: edgeIDx})
		}
	}

	g.labelComponents()
	return g, nil
}

func (g *Graph) GetNodesLen() int32 {
	return int32(len(g.nodes))
}

func (g *Graph) GetEdgesLen() int {
	return len(g.edges)
}

func (g *Graph) GetNode(idx int32) RoadNode {
	return g.nodes[idx]
}

func (g *Graph) GetEdge(idx int32) RoadEdge {
	return g.edges[idx]
}

func (g *Graph) NodeIDx(id string) (int32, bool) {
	idx, ok := g.nodeIDx[id]
	return idx, ok
}

func (g *Graph) GetNeighbors(idx int32) []Adjacent {
	return g.adj[idx]
}

// Connected reports whether a and b share a connected component.
func (g *Graph) Connected(a, b int32) bool {
	return g.component[a] == g.component[b]
}

func (g *Graph) ComponentsCount() int {
	return g.numComp
}

func (g *Graph) ComponentOf(idx int32) int32 {
	return g.component[idx]
}

// labelComponents assigns a component id to every node with an iterative dfs.
func (g *Graph) labelComponents() {
	n := len(g.nodes)
	g.component = make([]int32, n)
	visited := make([]bool, n)

	comp := int32(0)
	stack := make([]int32, 0, 64)
	for s := 0; s < n; s++ {
		if visited[s] {
			continue
		}
		visited[s] = true
		stack = append(stack[:0], int32(s))
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			g.component[v] = comp
			for _, a := range g.adj[v] {
				if !visited[a.ToNodeIDx] {
					visited[a.ToNodeIDx] = true
					stack = append(stack, a.ToNodeIDx)
				}
			}
		}
		comp++
	}
	g.numComp = int(comp)
}

func (g *Graph) String() string {
	return fmt.Sprintf("graph{nodes: %d, edges: %d, components: %d}", len(g.nodes), len(g.edges), g.numComp)
}
