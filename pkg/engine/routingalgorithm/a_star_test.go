package routingalgorithm

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/exp/rand"
)

func sampleNetwork() datastructure.RoadNetwork {
	return datastructure.RoadNetwork{
		Nodes: []datastructure.RoadNode{
			datastructure.NewRoadNode("A", "A", 39.9042, 116.4074, true),
			datastructure.NewRoadNode("B", "B", 39.9142, 116.4174, true),
			datastructure.NewRoadNode("C", "C", 39.9242, 116.4274, true),
			datastructure.NewRoadNode("D", "D", 39.9342, 116.4374, false),
			datastructure.NewRoadNode("E", "E", 39.9442, 116.4474, true),
		},
		Edges: []datastructure.RoadEdge{
			datastructure.NewRoadEdge("A", "B", 1.5, true),
			datastructure.NewRoadEdge("B", "C", 2.0, true),
			datastructure.NewRoadEdge("C", "D", 1.2, false),
			datastructure.NewRoadEdge("D", "E", 1.8, true),
			datastructure.NewRoadEdge("A", "C", 3.2, true),
		},
	}
}

func newSampleAlgorithm(t *testing.T, opts ...Option) *RouteAlgorithm {
	g, err := datastructure.NewMainRoadGraph(sampleNetwork())
	require.NoError(t, err)
	return NewRouteAlgorithm(g, opts...)
}

func TestShortestPathAStarSample(t *testing.T) {
	modes := []HeuristicMode{HeuristicHaversine, HeuristicEuclidean, HeuristicNone}
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			rt := newSampleAlgorithm(t, WithHeuristic(mode))

			path, found, err := rt.ShortestPathAStar("A", "C")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, []string{"A", "C"}, path.NodeIDs())
			assert.Equal(t, 3.2, path.TotalDistance)
			require.Len(t, path.Segments, 1)
			assert.Equal(t, datastructure.Segment{From: "A", To: "C", Distance: 3.2}, path.Segments[0])

			path, found, err = rt.ShortestPathAStar("B", "A")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, []string{"B", "A"}, path.NodeIDs())
			assert.Equal(t, 1.5, path.TotalDistance)
		})
	}
}

func TestShortestPathAStarUnknownNode(t *testing.T) {
	rt := newSampleAlgorithm(t)

	// D exists in the network but is not main road
	_, found, err := rt.ShortestPathAStar("A", "D")
	assert.ErrorIs(t, err, ErrUnknownNode)
	assert.False(t, found)

	_, _, err = rt.ShortestPathAStar("nope", "A")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestShortestPathAStarNotFound(t *testing.T) {
	rt := newSampleAlgorithm(t)

	path, found, err := rt.ShortestPathAStar("A", "E")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.True(t, path.IsEmpty())
}

func TestShortestPathAStarSameNode(t *testing.T) {
	rt := newSampleAlgorithm(t)

	path, found, err := rt.ShortestPathAStar("E", "E")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"E"}, path.NodeIDs())
	assert.Empty(t, path.Segments)
	assert.Zero(t, path.TotalDistance)
}

func TestFindPath(t *testing.T) {
	path, found, err := FindPath("A", "B", sampleNetwork(), WithHeuristicWeight(-3))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"A", "B"}, path.NodeIDs())

	// edges to unlisted nodes are filtered out, not rejected
	dangling := sampleNetwork()
	dangling.Edges = append(dangling.Edges,
		datastructure.NewRoadEdge("C", "Z", 0.4, false),
		datastructure.NewRoadEdge("A", "ZZ", 0.1, true),
	)
	path, found, err = FindPath("A", "C", dangling)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"A", "C"}, path.NodeIDs())

	bad := sampleNetwork()
	bad.Nodes = append(bad.Nodes, datastructure.NewRoadNode("A", "", 0, 0, true))
	_, _, err = FindPath("A", "B", bad)
	assert.ErrorIs(t, err, datastructure.ErrInvalidNetwork)
}

// randomNetwork lays nodes around a point and joins random pairs with edges at least as long as
// the great-circle distance, so the haversine heuristic stays admissible.
func randomNetwork(r *rand.Rand, n, m int) datastructure.RoadNetwork {
	network := datastructure.RoadNetwork{}
	for i := 0; i < n; i++ {
		network.Nodes = append(network.Nodes, datastructure.NewRoadNode(
			fmt.Sprintf("n%d", i), "",
			39.9+r.Float64()*0.2, 116.3+r.Float64()*0.2,
			r.Intn(10) != 0,
		))
	}
	for i := 0; i < m; i++ {
		a := network.Nodes[r.Intn(n)]
		b := network.Nodes[r.Intn(n)]
		dist := geo.CalculateHaversineDistance(a.Lat, a.Lon, b.Lat, b.Lon) * (1 + r.Float64())
		network.Edges = append(network.Edges, datastructure.NewRoadEdge(a.ID, b.ID, dist, r.Intn(8) != 0))
	}
	return network
}

func TestShortestPathAStarRandomGraphs(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		network := randomNetwork(r, 60, 180)
		g, err := datastructure.NewMainRoadGraph(network)
		require.NoError(t, err)

		mainNode := map[string]bool{}
		for _, n := range network.Nodes {
			mainNode[n.ID] = n.IsMainRoad
		}

		astar := NewRouteAlgorithm(g)
		dijkstra := NewRouteAlgorithm(g, WithHeuristic(HeuristicNone))

		for q := 0; q < 30; q++ {
			start := g.GetNode(int32(r.Intn(int(g.GetNodesLen())))).ID
			goal := g.GetNode(int32(r.Intn(int(g.GetNodesLen())))).ID

			p1, found1, err := astar.ShortestPathAStar(start, goal)
			require.NoError(t, err)
			p2, found2, err := dijkstra.ShortestPathAStar(start, goal)
			require.NoError(t, err)

			require.Equal(t, found2, found1)
			if !found1 {
				continue
			}
			assert.InDelta(t, p2.TotalDistance, p1.TotalDistance, 1e-9)

			require.Len(t, p1.Segments, len(p1.Nodes)-1)
			assert.Equal(t, start, p1.Nodes[0].ID)
			assert.Equal(t, goal, p1.Nodes[len(p1.Nodes)-1].ID)

			sum := 0.0
			for i, s := range p1.Segments {
				assert.Equal(t, p1.Nodes[i].ID, s.From)
				assert.Equal(t, p1.Nodes[i+1].ID, s.To)
				sum += s.Distance
			}
			assert.Equal(t, sum, p1.TotalDistance)

			for _, n := range p1.Nodes {
				assert.True(t, mainNode[n.ID], "non main-road node %s in path", n.ID)
			}
		}
	}
}

func TestShortestPathAStarConcurrent(t *testing.T) {
	defer goleak.VerifyNone(t)
	rt := newSampleAlgorithm(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path, found, err := rt.ShortestPathAStar("B", "C")
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, 2.0, path.TotalDistance)
		}()
	}
	wg.Wait()
}

func TestHeuristicWeight(t *testing.T) {
	rt := newSampleAlgorithm(t, WithHeuristicWeight(math.Inf(-1)))
	assert.Zero(t, rt.weight)

	_, found, err := rt.ShortestPathAStar("A", "C")
	assert.NoError(t, err)
	assert.True(t, found)
}

func TestParseHeuristicMode(t *testing.T) {
	cases := map[string]HeuristicMode{
		"":          HeuristicHaversine,
		"Haversine": HeuristicHaversine,
		"euclidean": HeuristicEuclidean,
		"dijkstra":  HeuristicNone,
		" none ":    HeuristicNone,
	}
	for in, want := range cases {
		got, err := ParseHeuristicMode(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseHeuristicMode("manhattan")
	assert.Error(t, err)
}

func TestPlanMultipleRoutes(t *testing.T) {
	defer goleak.VerifyNone(t)
	rt := newSampleAlgorithm(t)

	requests := []RouteRequest{
		{ID: "r1", Start: "A", Goal: "C"},
		{ID: "r2", Start: "A", Goal: "D"},
		{ID: "r3", Start: "A", Goal: "E"},
		{ID: "r4", Start: "X", Goal: "A"},
		{ID: "r5", Start: "C", Goal: "C"},
	}

	results := rt.PlanMultipleRoutes(context.Background(), requests, 3)
	require.Len(t, results, len(requests))

	failed := 0
	for i, r := range results {
		assert.Equal(t, requests[i].ID, r.ID)
		if !r.Success {
			failed++
			assert.NotEmpty(t, r.Error)
			assert.Nil(t, r.Path)
		}
	}
	assert.Equal(t, 2, failed)

	assert.True(t, results[0].Found)
	assert.Equal(t, 3.2, results[0].Path.TotalDistance)
	assert.True(t, results[2].Success)
	assert.False(t, results[2].Found)
	assert.True(t, results[4].Found)
}

func TestPlanMultipleRoutesRandomCounts(t *testing.T) {
	rt := newSampleAlgorithm(t)
	r := rand.New(rand.NewSource(7))

	valid := []string{"A", "B", "C", "E"}
	invalid := []string{"D", "Q", ""}

	requests := make([]RouteRequest, 200)
	wantFailed := 0
	for i := range requests {
		req := RouteRequest{ID: fmt.Sprint(i), Start: valid[r.Intn(len(valid))], Goal: valid[r.Intn(len(valid))]}
		if r.Intn(3) == 0 {
			req.Goal = invalid[r.Intn(len(invalid))]
			wantFailed++
		}
		requests[i] = req
	}

	results := rt.PlanMultipleRoutes(context.Background(), requests, 0)
	require.Len(t, results, 200)

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	assert.Equal(t, wantFailed, failed)
}

func TestPlanMultipleRoutesCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	rt := newSampleAlgorithm(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := rt.PlanMultipleRoutes(ctx, []RouteRequest{{ID: "a", Start: "A", Goal: "B"}, {ID: "b", Start: "B", Goal: "C"}}, 2)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.Equal(t, context.Canceled.Error(), r.Error)
	}
}
