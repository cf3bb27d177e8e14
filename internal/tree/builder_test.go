package tree

import (
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olapctl/srplan/internal/profile"
)

func testLogger() log.Logger {
	return log.NewNopLogger()
}

func operatorWith(name string, planNodeID int, common map[string]string) profile.Operator {
	return profile.Operator{
		Name:          name,
		PlanNodeID:    planNodeID,
		CommonMetrics: common,
		UniqueMetrics: map[string]string{},
	}
}

func singlePipeline(ops ...profile.Operator) []profile.Fragment {
	return []profile.Fragment{{
		Pipelines: []profile.Pipeline{{Operators: ops}},
	}}
}

func chainTopology() *profile.TopologyGraph {
	return &profile.TopologyGraph{
		RootID: 2,
		SinkID: -1,
		Nodes: []profile.TopologyNode{
			{ID: 2, Name: "EXCHANGE", Children: []int{1}},
			{ID: 1, Name: "AGGREGATE", Children: []int{0}},
			{ID: 0, Name: "OLAP_SCAN"},
		},
	}
}

func TestBuildFromTopology_DepthsAndEdges(t *testing.T) {
	fragments := singlePipeline(
		operatorWith("EXCHANGE", 2, map[string]string{"OperatorTotalTime": "100ms"}),
		operatorWith("AGGREGATE", 1, map[string]string{"OperatorTotalTime": "1s"}),
		operatorWith("OLAP_SCAN", 0, map[string]string{"OperatorTotalTime": "500ms"}),
	)

	tr, err := BuildFromTopology(chainTopology(), fragments, profile.Summary{TotalTime: 2 * time.Second}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, 2, tr.RootID)
	assert.Equal(t, 0, tr.Nodes[2].Depth)
	assert.Equal(t, 1, tr.Nodes[1].Depth)
	assert.Equal(t, 2, tr.Nodes[0].Depth)
	assert.Equal(t, []int{2, 1, 0}, tr.BFSOrder)
	assert.Equal(t, 2, tr.Nodes[1].ParentID)
}

func TestBuildFromTopology_SinkBecomesRoot(t *testing.T) {
	topo := &profile.TopologyGraph{
		RootID: 2,
		SinkID: 3,
		Nodes: []profile.TopologyNode{
			{ID: 3, Name: "RESULT_SINK", Children: []int{2}},
			{ID: 2, Name: "EXCHANGE", Children: []int{1}},
			{ID: 1, Name: "OLAP_SCAN"},
		},
	}
	fragments := singlePipeline(
		operatorWith("RESULT_SINK", -1, map[string]string{"OperatorTotalTime": "10ms"}),
		operatorWith("EXCHANGE", 2, map[string]string{"OperatorTotalTime": "100ms"}),
		operatorWith("OLAP_SCAN", 1, map[string]string{"OperatorTotalTime": "500ms"}),
	)

	tr, err := BuildFromTopology(topo, fragments, profile.Summary{TotalTime: time.Second}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, 3, tr.RootID)
	root := tr.Root()
	assert.Equal(t, "RESULT_SINK", root.Name)
	// Sink metrics match by operator name.
	assert.Equal(t, 10*time.Millisecond, root.TotalTime)
}

func TestBuildFromTopology_SingleParentInvariant(t *testing.T) {
	// Node 0 is declared a child of both 2 and 1; the first parent wins.
	topo := &profile.TopologyGraph{
		RootID: 2,
		SinkID: -1,
		Nodes: []profile.TopologyNode{
			{ID: 2, Name: "HASH_JOIN", Children: []int{1, 0}},
			{ID: 1, Name: "OLAP_SCAN", Children: []int{0}},
			{ID: 0, Name: "EXCHANGE"},
		},
	}

	tr, err := BuildFromTopology(topo, nil, profile.Summary{TotalTime: time.Second}, testLogger())
	require.NoError(t, err)

	parents := 0
	for _, n := range tr.Nodes {
		if containsInt(n.Children, 0) {
			parents++
		}
	}
	assert.Equal(t, 1, parents)
	assert.Equal(t, 2, tr.Nodes[0].ParentID)
}

func TestBuildFromTopology_AbsentChildIsFatal(t *testing.T) {
	topo := &profile.TopologyGraph{
		RootID: 1,
		SinkID: -1,
		Nodes: []profile.TopologyNode{
			{ID: 1, Name: "EXCHANGE", Children: []int{99}},
		},
	}
	_, err := BuildFromTopology(topo, nil, profile.Summary{}, testLogger())
	var treeErr *TreeError
	require.ErrorAs(t, err, &treeErr)
}

func TestAggregation_SharedPlanNodeID(t *testing.T) {
	// Two instances of the same plan node: 100ms and 300ms must aggregate
	// into one node, not two entries.
	topo := &profile.TopologyGraph{
		RootID: 7,
		SinkID: -1,
		Nodes:  []profile.TopologyNode{{ID: 7, Name: "AGGREGATE"}},
	}
	fragments := []profile.Fragment{{
		Pipelines: []profile.Pipeline{
			{Operators: []profile.Operator{operatorWith("AGGREGATE", 7, map[string]string{"OperatorTotalTime": "100ms"})}},
			{Operators: []profile.Operator{operatorWith("AGGREGATE", 7, map[string]string{"OperatorTotalTime": "300ms"})}},
		},
	}}

	tr, err := BuildFromTopology(topo, fragments, profile.Summary{TotalTime: time.Second}, testLogger())
	require.NoError(t, err)

	require.Len(t, tr.Nodes, 1)
	assert.GreaterOrEqual(t, tr.Nodes[7].TotalTime, 400*time.Millisecond)
	assert.Len(t, tr.Nodes[7].Operators, 2)
}

func TestAggregation_ExchangeAddsNetworkScanAddsScanTime(t *testing.T) {
	topo := &profile.TopologyGraph{
		RootID: 2,
		SinkID: -1,
		Nodes: []profile.TopologyNode{
			{ID: 2, Name: "EXCHANGE", Children: []int{0}},
			{ID: 0, Name: "OLAP_SCAN"},
		},
	}
	fragments := singlePipeline(
		operatorWith("EXCHANGE", 2, map[string]string{
			"OperatorTotalTime": "100ms",
			"NetworkTime":       "80ms",
		}),
		operatorWith("OLAP_SCAN", 0, map[string]string{
			"OperatorTotalTime": "200ms",
			"ScanTime":          "150ms",
		}),
	)

	tr, err := BuildFromTopology(topo, fragments, profile.Summary{TotalTime: time.Second}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, 180*time.Millisecond, tr.Nodes[2].TotalTime)
	assert.Equal(t, 350*time.Millisecond, tr.Nodes[0].TotalTime)
}

func TestBaseTimePriority(t *testing.T) {
	topo := &profile.TopologyGraph{
		RootID: 0,
		SinkID: -1,
		Nodes:  []profile.TopologyNode{{ID: 0, Name: "OLAP_SCAN"}},
	}
	fragments := singlePipeline(operatorWith("OLAP_SCAN", 0, map[string]string{"OperatorTotalTime": "400ms"}))

	// Cumulative operator time wins.
	tr, err := BuildFromTopology(topo, fragments, profile.Summary{
		TotalTime:              time.Second,
		CumulativeOperatorTime: 2 * time.Second,
		ExecutionWallTime:      time.Second,
	}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, tr.BaseTime)
	assert.InDelta(t, 20.0, tr.Nodes[0].TimePercentage, 0.01)

	// Wall time next.
	tr, err = BuildFromTopology(topo, fragments, profile.Summary{
		TotalTime:         time.Second,
		ExecutionWallTime: 800 * time.Millisecond,
	}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 800*time.Millisecond, tr.BaseTime)

	// Sum of aggregated node times as the last regular resort.
	tr, err = BuildFromTopology(topo, fragments, profile.Summary{TotalTime: time.Second}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 400*time.Millisecond, tr.BaseTime)
	assert.InDelta(t, 100.0, tr.Nodes[0].TimePercentage, 0.01)
}

func TestHotspotFlags(t *testing.T) {
	topo := chainTopology()
	fragments := singlePipeline(
		operatorWith("EXCHANGE", 2, map[string]string{"OperatorTotalTime": "200ms"}),
		operatorWith("AGGREGATE", 1, map[string]string{"OperatorTotalTime": "1s400ms"}),
		operatorWith("OLAP_SCAN", 0, map[string]string{"OperatorTotalTime": "400ms"}),
	)

	tr, err := BuildFromTopology(topo, fragments, profile.Summary{
		TotalTime:              2 * time.Second,
		CumulativeOperatorTime: 2 * time.Second,
	}, testLogger())
	require.NoError(t, err)

	assert.True(t, tr.Nodes[1].IsMostConsuming)   // 70%
	assert.False(t, tr.Nodes[1].IsSecondMostConsuming)
	assert.True(t, tr.Nodes[0].IsSecondMostConsuming) // 20%
	assert.False(t, tr.Nodes[2].IsMostConsuming)      // 10%

	hot := tr.Hotspots(2)
	require.Len(t, hot, 2)
	assert.Equal(t, 1, hot[0].ID)
	assert.Equal(t, 0, hot[1].ID)
}

func TestBuildFromFragments_LinearChainFallback(t *testing.T) {
	fragments := singlePipeline(
		operatorWith("AGGREGATE", 1, map[string]string{"OperatorTotalTime": "1s"}),
		operatorWith("OLAP_SCAN", 0, map[string]string{"OperatorTotalTime": "500ms"}),
	)

	tr, err := BuildFromFragments(fragments, profile.Summary{TotalTime: 2 * time.Second}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, 1, tr.RootID)
	assert.Equal(t, []int{0}, tr.Nodes[1].Children)
	assert.Equal(t, 1, tr.Nodes[0].Depth)
}

func TestBuildFromFragments_NoPlanNodesIsFatal(t *testing.T) {
	_, err := BuildFromFragments(nil, profile.Summary{}, testLogger())
	var treeErr *TreeError
	require.ErrorAs(t, err, &treeErr)
	assert.Contains(t, treeErr.Reason, "no resolvable root")
}
