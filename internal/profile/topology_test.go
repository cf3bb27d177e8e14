package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sinkFragment(name string) Fragment {
	return Fragment{
		Pipelines: []Pipeline{{
			Operators: []Operator{{Name: name, PlanNodeID: -1}},
		}},
	}
}

func TestParseTopology(t *testing.T) {
	g, err := ParseTopology(`{"rootId": 2, "nodes": [
		{"id": 2, "name": "EXCHANGE", "properties": {}, "children": [1]},
		{"id": 1, "name": "OLAP_SCAN", "properties": {}, "children": []}
	]}`)
	require.NoError(t, err)
	assert.Equal(t, 2, g.RootID)
	assert.Len(t, g.Nodes, 2)
	assert.Equal(t, -1, g.SinkID)
	require.NoError(t, g.Validate())
}

func TestParseTopology_Malformed(t *testing.T) {
	var topoErr *TopologyError

	_, err := ParseTopology(`{"nodes": []`)
	require.ErrorAs(t, err, &topoErr)

	_, err = ParseTopology(`{"nodes": [{"id": 1, "name": "X"}]}`)
	require.ErrorAs(t, err, &topoErr)
	assert.Contains(t, topoErr.Reason, "rootId")
}

func TestValidate_UnknownChild(t *testing.T) {
	g := &TopologyGraph{
		RootID: 1,
		Nodes: []TopologyNode{
			{ID: 1, Children: []int{9}},
		},
	}
	var topoErr *TopologyError
	require.ErrorAs(t, g.Validate(), &topoErr)
	assert.Contains(t, topoErr.Reason, "unknown child")
}

func TestParseTopologyWithFragments_SynthesizesMissingSink(t *testing.T) {
	g, err := ParseTopologyWithFragments(
		`{"rootId": 3, "nodes": [{"id": 3, "name": "EXCHANGE", "properties": {}, "children": []}]}`,
		[]Fragment{sinkFragment("OLAP_TABLE_SINK")},
	)
	require.NoError(t, err)

	require.Equal(t, 4, g.SinkID)
	sink := g.Nodes[len(g.Nodes)-1]
	assert.Equal(t, "OLAP_TABLE_SINK", sink.Name)
	assert.Equal(t, []int{3}, sink.Children)
	require.NoError(t, g.Validate())
}

func TestParseTopologyWithFragments_ExistingSinkNotDuplicated(t *testing.T) {
	g, err := ParseTopologyWithFragments(
		`{"rootId": 5, "nodes": [{"id": 5, "name": "RESULT_SINK", "properties": {}, "children": []}]}`,
		[]Fragment{sinkFragment("RESULT_SINK")},
	)
	require.NoError(t, err)
	assert.Equal(t, 5, g.SinkID)
	assert.Len(t, g.Nodes, 1)
}

func TestSinkPriorityOrdering(t *testing.T) {
	fragments := []Fragment{
		sinkFragment("LOCAL_EXCHANGE_SINK"),
		sinkFragment("EXCHANGE_SINK"),
		sinkFragment("FILE_SINK"),
		sinkFragment("OLAP_TABLE_SINK"),
		sinkFragment("RESULT_SINK"),
	}
	assert.Equal(t, "RESULT_SINK", bestSinkName(fragments))

	assert.Equal(t, "OLAP_TABLE_SINK", bestSinkName(fragments[:4]))
	assert.Equal(t, "FILE_SINK", bestSinkName(fragments[:3]))
	assert.Equal(t, "EXCHANGE_SINK", bestSinkName(fragments[:2]))
	assert.Equal(t, "LOCAL_EXCHANGE_SINK", bestSinkName(fragments[:1]))
}
