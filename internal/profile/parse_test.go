package profile

import (
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfile = `Summary:
     - Query ID: 9e9f1c9b-43c4-11ee-9e0f-0242ac110002
     - Query Type: Query
     - Query State: Finished
     - Total: 2s
     - QueryCumulativeOperatorTime: 3s600ms
     - QueryExecutionWallTime: 1s950ms
     - QueryPeakMemoryUsage: 2.167KB
     - Sql Statement: SELECT c1, count(*)
       FROM t
       GROUP BY c1
     - NonDefaultSessionVariables: {"pipeline_dop": "8"}
Planner:
     - CostBasedRewrite: on
     HMS.getPartitionsByNames[3] 120ms
     HMS.getTable[2] 30ms
     HMS.getPartitionsByNames[1] 50ms
     Total[1] 300ms
     Optimizer[1] 180ms
Execution:
     - Topology: {"rootId": 4, "nodes": [{"id": 4, "name": "EXCHANGE", "properties": {}, "children": [1]}, {"id": 1, "name": "AGGREGATE", "properties": {}, "children": [0]}, {"id": 0, "name": "OLAP_SCAN", "properties": {}, "children": []}]}
     - QueryAllocatedMemoryUsage: 120MB
Fragment 0:
     - BackendAddresses: 10.0.0.1:9060, 10.0.0.2:9060
     - InstanceIds: abc-1, abc-2
     Pipeline (id=0):
          - DegreeOfParallelism: 8
          RESULT_SINK:
               CommonMetrics:
                    - OperatorTotalTime: 10ms
               UniqueMetrics:
          EXCHANGE (plan_node_id=4):
               CommonMetrics:
                    - OperatorTotalTime: 100ms
                    - __MAX_OF_OperatorTotalTime: 150ms
                    - __MIN_OF_OperatorTotalTime: 50ms
                    - NetworkTime: 80ms
               UniqueMetrics:
Fragment 1:
     - BackendAddresses: 10.0.0.1:9060
     - InstanceIds: def-1
     Pipeline (id=0):
          AGGREGATE (plan_node_id=1):
               CommonMetrics:
                    - OperatorTotalTime: 1s
                    - __MAX_OF_OperatorTotalTime: 1s900ms
                    - __MIN_OF_OperatorTotalTime: 100ms
                    - __MIN_OF_PushRowNum: 12
                    - PushRowNum: 2.174K (2174)
                    - OperatorPeakMemoryUsage: 64MB
               UniqueMetrics:
                    - HashTableMemoryUsage: 32MB
                    - DataCache:
                         - DataCacheReadBytes: 0.000B
          OLAP_SCAN (plan_node_id=0):
               CommonMetrics:
                    - OperatorTotalTime: 500ms
                    - ScanTime: 400ms
                    - PushRowNum: 50,000,000
               UniqueMetrics:
                    - RawRowsRead: 50000000
                    - RowsRead: 50000000
`

func testLogger() log.Logger {
	return log.NewNopLogger()
}

func TestParse_EndToEnd(t *testing.T) {
	p, err := Parse(sampleProfile, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "9e9f1c9b-43c4-11ee-9e0f-0242ac110002", p.Summary.QueryID)
	assert.Equal(t, 2*time.Second, p.Summary.TotalTime)
	assert.Len(t, p.Fragments, 2)
	require.NotNil(t, p.Topology)
	// RESULT_SINK is missing from the topology JSON and must be
	// synthesized above the nominal root.
	assert.GreaterOrEqual(t, p.Topology.SinkID, 0)
	require.NoError(t, p.Topology.Validate())
}

func TestParse_MissingSummaryIsFatal(t *testing.T) {
	_, err := Parse("Execution:\n     - Foo: 1\n", testLogger())
	require.Error(t, err)
	var notFound *SectionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Summary:", notFound.Section)
}

func TestParse_MissingPlannerIsTolerated(t *testing.T) {
	text := `Summary:
     - Query ID: q1
     - Total: 5s
Execution:
     - QueryAllocatedMemoryUsage: 1MB
`
	p, err := Parse(text, testLogger())
	require.NoError(t, err)
	assert.Zero(t, p.Planner.TotalTime)
	assert.Nil(t, p.Topology)
}
