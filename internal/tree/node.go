package tree

import (
	"fmt"
	"time"

	"github.com/olapctl/srplan/internal/profile"
)

// Node is the merged, queryable unit reconciling one topology node with
// every operator record sharing its plan node id. Read-only after Build.
type Node struct {
	ID         int
	Name       string
	PlanNodeID int
	ParentID   int
	Children   []int
	Depth      int
	Properties map[string]string

	// Operators holds the raw records merged into this node, across all
	// fragments, pipelines and parallel instances.
	Operators []profile.Operator

	// Metrics is the field-wise sum over Operators.
	Metrics profile.OperatorMetrics

	// TotalTime is the aggregated operator time: the pre-aggregated
	// slowest-instance total where reported, plus network wait for
	// exchanges and scan wait for scans.
	TotalTime time.Duration

	TimePercentage        float64
	IsMostConsuming       bool
	IsSecondMostConsuming bool
}

// Path identifies the node in diagnostics.
func (n *Node) Path() string {
	if n.PlanNodeID >= 0 {
		return fmt.Sprintf("%s(plan_node_id=%d)", n.Name, n.PlanNodeID)
	}
	return n.Name
}

// ExecutionTree owns its nodes; nodes reference children by id, never by
// pointer.
type ExecutionTree struct {
	RootID int
	Nodes  map[int]*Node

	// BFSOrder lists node ids in breadth-first order from the root.
	BFSOrder []int

	// BaseTime is the denominator used for time percentages.
	BaseTime time.Duration
}

func (t *ExecutionTree) Root() *Node {
	return t.Nodes[t.RootID]
}

// Walk visits nodes in breadth-first order.
func (t *ExecutionTree) Walk(fn func(*Node)) {
	for _, id := range t.BFSOrder {
		fn(t.Nodes[id])
	}
}
