package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSummary(t *testing.T) {
	s, err := ParseSummary(sampleProfile)
	require.NoError(t, err)

	assert.Equal(t, "9e9f1c9b-43c4-11ee-9e0f-0242ac110002", s.QueryID)
	assert.Equal(t, "Query", s.QueryType)
	assert.Equal(t, "Finished", s.State)
	assert.Equal(t, 2*time.Second, s.TotalTime)
	assert.Equal(t, 3600*time.Millisecond, s.CumulativeOperatorTime)
	assert.Equal(t, 1950*time.Millisecond, s.ExecutionWallTime)
	assert.Equal(t, uint64(2219), s.PeakMemoryUsage)
	assert.Equal(t, "SELECT c1, count(*)\nFROM t\nGROUP BY c1", s.SQL)
	assert.Equal(t, map[string]string{"pipeline_dop": "8"}, s.NonDefaultVariables)
}

func TestParseSummary_MissingTotal(t *testing.T) {
	_, err := ParseSummary("Summary:\n     - Query ID: abc\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Total")
}

func TestParseSummary_NotFound(t *testing.T) {
	_, err := ParseSummary("Planner:\n     Total[1] 1s\n")
	var notFound *SectionNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestParsePlanner_AccumulatesHMSCalls(t *testing.T) {
	p, err := ParsePlanner(sampleProfile)
	require.NoError(t, err)

	// Two getPartitionsByNames lines accumulate into one call kind.
	byNames := p.HMS.Calls["getPartitionsByNames"]
	assert.Equal(t, 4, byNames.Count)
	assert.Equal(t, 170*time.Millisecond, byNames.Time)

	getTable := p.HMS.Calls["getTable"]
	assert.Equal(t, 2, getTable.Count)
	assert.Equal(t, 30*time.Millisecond, getTable.Time)

	// Derived total is the sum over all recognized kinds.
	assert.Equal(t, 200*time.Millisecond, p.HMS.TotalTime)

	assert.Equal(t, 300*time.Millisecond, p.TotalTime)
	assert.Equal(t, 180*time.Millisecond, p.OptimizerTime)
}

func TestParseExecution_ExtractsTopologyJSON(t *testing.T) {
	info, err := ParseExecution(sampleProfile)
	require.NoError(t, err)

	assert.Contains(t, info.TopologyJSON, `"rootId": 4`)
	assert.True(t, len(info.TopologyJSON) > 0 && info.TopologyJSON[0] == '{')
	assert.Equal(t, byte('}'), info.TopologyJSON[len(info.TopologyJSON)-1])
	assert.Equal(t, "120MB", info.Raw["QueryAllocatedMemoryUsage"])
	assert.NotContains(t, info.Raw, "Topology")
}

func TestExtractBraceBlock_Nested(t *testing.T) {
	got := extractBraceBlock(` {"a": {"b": [1, 2]}, "c": {}} trailing`)
	assert.Equal(t, `{"a": {"b": [1, 2]}, "c": {}}`, got)
}

func TestExtractSection_BoundaryByIndent(t *testing.T) {
	text := "Execution:\n     - A: 1\nFragment 0:\n     - B: 2\n"
	lines, err := extractSection(text, "Execution:")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "A: 1")
}
