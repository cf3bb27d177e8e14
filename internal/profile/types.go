package profile

import "time"

// Profile is one fully parsed query profile dump. It is immutable after
// Parse returns and owned exclusively by the caller.
type Profile struct {
	Summary   Summary
	Planner   PlannerInfo
	Execution ExecutionInfo
	Fragments []Fragment
	Topology  *TopologyGraph
}

// Summary holds the scalar fields of the Summary block. TotalTime is always
// present when the block parses successfully; every other numeric field is
// optional (absent in older profile format versions).
type Summary struct {
	QueryID   string
	QueryType string
	State     string
	SQL       string

	TotalTime time.Duration

	// Per-category cumulative times. Zero when the engine did not report
	// them.
	CumulativeOperatorTime time.Duration
	CumulativeScanTime     time.Duration
	CumulativeNetworkTime  time.Duration
	CumulativeCPUTime      time.Duration
	ExecutionWallTime      time.Duration

	PeakMemoryUsage       uint64
	SumMemoryUsage        uint64
	SpillBytes            uint64
	NonDefaultVariables   map[string]string

	// Raw holds every "- Key: Value" field of the block, including the ones
	// mapped above.
	Raw map[string]string
}

// PlannerInfo holds planning-phase metrics, including aggregated external
// metadata-store (HMS) call latencies.
type PlannerInfo struct {
	TotalTime     time.Duration
	TotalCount    int
	OptimizerTime time.Duration
	HMS           HMSMetrics
	Raw           map[string]string
}

// HMSMetrics aggregates metadata-store call latencies by call kind.
type HMSMetrics struct {
	Calls     map[string]HMSCall
	TotalTime time.Duration
}

type HMSCall struct {
	Count int
	Time  time.Duration
}

// ExecutionInfo holds the execution-level metric fields and the raw topology
// JSON blob extracted from the Execution block.
type ExecutionInfo struct {
	TopologyJSON string
	Raw          map[string]string
}

// Fragment is one physical execution unit, potentially replicated across
// parallel instances on several backends.
type Fragment struct {
	ID               int
	BackendAddresses []string
	InstanceIDs      []string
	Metrics          map[string]string
	Pipelines        []Pipeline
}

type Pipeline struct {
	ID        int
	Metrics   map[string]string
	Operators []Operator
}

// Operator is one operator record as it appears in the listing. The same
// plan node id can appear under multiple fragments/pipelines when the plan
// node is replicated; downstream aggregation must sum, never overwrite.
type Operator struct {
	Name string
	// PlanNodeID is -1 for operators without a plan_node_id annotation
	// (sinks and pipeline-local operators).
	PlanNodeID    int
	CommonMetrics map[string]string
	UniqueMetrics map[string]string
}
