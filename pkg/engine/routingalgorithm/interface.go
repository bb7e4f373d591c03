package routingalgorithm

import "github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"

type Graph interface {
	GetNodesLen() int32
	GetNode(idx int32) datastructure.RoadNode
	GetNeighbors(idx int32) []datastructure.Adjacent
	NodeIDx(id string) (int32, bool)
	Connected(a, b int32) bool
}
