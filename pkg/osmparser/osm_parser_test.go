package osmparser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"github.com/paulmach/osm/osmxml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testOSM = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
  <node id="1" lat="39.9042" lon="116.4074"><tag k="name" v="Tiananmen"/></node>
  <node id="2" lat="39.9142" lon="116.4174"/>
  <node id="3" lat="39.9242" lon="116.4274"/>
  <node id="4" lat="39.9342" lon="116.4374"/>
  <node id="5" lat="39.9442" lon="116.4474"/>
  <way id="10">
    <nd ref="1"/><nd ref="2"/><nd ref="3"/>
    <tag k="highway" v="primary"/>
  </way>
  <way id="11">
    <nd ref="3"/><nd ref="4"/>
    <tag k="highway" v="residential"/>
  </way>
  <way id="12">
    <nd ref="4"/><nd ref="5"/>
    <tag k="highway" v="footway"/>
  </way>
  <way id="13">
    <nd ref="3"/><nd ref="99"/>
    <tag k="highway" v="secondary_link"/>
  </way>
</osm>`

func nodeByID(network datastructure.RoadNetwork, id string) (datastructure.RoadNode, bool) {
	for _, n := range network.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return datastructure.RoadNode{}, false
}

func assertTestNetwork(t *testing.T, network datastructure.RoadNetwork) {
	t.Helper()
	require.NoError(t, network.Validate())

	// node 5 is only used by a footway, 99 is outside the extract
	require.Len(t, network.Nodes, 4)
	assert.Equal(t, []string{"1", "2", "3", "4"}, []string{network.Nodes[0].ID, network.Nodes[1].ID, network.Nodes[2].ID, network.Nodes[3].ID})

	n1, _ := nodeByID(network, "1")
	assert.Equal(t, "Tiananmen", n1.Name)
	assert.True(t, n1.IsMainRoad)

	n4, ok := nodeByID(network, "4")
	require.True(t, ok)
	assert.False(t, n4.IsMainRoad)

	require.Len(t, network.Edges, 3)
	assert.True(t, network.Edges[0].IsMainRoad)
	assert.InDelta(t, 1.4, network.Edges[0].Distance, 0.1)
	assert.False(t, network.Edges[2].IsMainRoad)

	nodes, edges := network.MainRoadCounts()
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 2, edges)
}

func TestParseXMLScanner(t *testing.T) {
	ctx := context.Background()
	scanner := osmxml.New(ctx, strings.NewReader(testOSM))
	defer scanner.Close()

	network, err := NewOSMParser(zap.NewNop()).Parse(ctx, scanner)
	require.NoError(t, err)
	assertTestNetwork(t, network)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roads.osm")
	require.NoError(t, os.WriteFile(path, []byte(testOSM), 0644))

	network, err := ParseFile(context.Background(), path, nil)
	require.NoError(t, err)
	assertTestNetwork(t, network)
}

func TestParseFileUnsupported(t *testing.T) {
	_, err := ParseFile(context.Background(), "roads.geojson", nil)
	assert.Error(t, err)

	_, err = ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.osm"), nil)
	assert.Error(t, err)
}

func TestIsMainRoadHighway(t *testing.T) {
	assert.True(t, IsMainRoadHighway("motorway_link"))
	assert.True(t, IsMainRoadHighway("secondary"))
	assert.False(t, IsMainRoadHighway("tertiary"))
	assert.False(t, IsMainRoadHighway(""))
}
