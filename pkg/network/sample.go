package network

import "github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"

// SampleRoadNetwork is the built-in five-node network around central Beijing. D is not a main
// road, which leaves E isolated in the main-road graph.
func SampleRoadNetwork() datastructure.RoadNetwork {
	return datastructure.RoadNetwork{
		Nodes: []datastructure.RoadNode{
			datastructure.NewRoadNode("A", "Tiananmen", 39.9042, 116.4074, true),
			datastructure.NewRoadNode("B", "Wangfujing", 39.9142, 116.4174, true),
			datastructure.NewRoadNode("C", "Dongsi", 39.9242, 116.4274, true),
			datastructure.NewRoadNode("D", "Yonghegong", 39.9342, 116.4374, false),
			datastructure.NewRoadNode("E", "Andingmen", 39.9442, 116.4474, true),
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
