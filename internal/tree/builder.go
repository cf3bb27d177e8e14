package tree

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/olapctl/srplan/internal/profile"
)

const (
	// Time-percentage bands for hotspot flags.
	MostConsumingPct       = 30.0
	SecondMostConsumingPct = 15.0
)

// TreeError reports an unbuildable execution tree: no resolvable root, or a
// reference to an absent node.
type TreeError struct {
	Reason string
}

func (e *TreeError) Error() string {
	return fmt.Sprintf("cannot build execution tree: %s", e.Reason)
}

// Build reconciles the profile's two tree-shape sources. The topology JSON
// is authoritative for edges when present; otherwise the linear fragment
// listing degrades to a chain.
func Build(p *profile.Profile, logger log.Logger) (*ExecutionTree, error) {
	if p.Topology != nil {
		return BuildFromTopology(p.Topology, p.Fragments, p.Summary, logger)
	}
	return BuildFromFragments(p.Fragments, p.Summary, logger)
}

// BuildFromTopology merges fragment-derived operator metrics into the
// topology DAG, selects the true root, assigns depths breadth-first and
// computes per-node time percentages.
func BuildFromTopology(topo *profile.TopologyGraph, fragments []profile.Fragment, summary profile.Summary, logger log.Logger) (*ExecutionTree, error) {
	t := &ExecutionTree{Nodes: make(map[int]*Node, len(topo.Nodes))}

	for _, tn := range topo.Nodes {
		t.Nodes[tn.ID] = &Node{
			ID:         tn.ID,
			Name:       tn.Name,
			PlanNodeID: tn.ID,
			ParentID:   -1,
			Properties: tn.Properties,
		}
	}

	// Wire children from the topology. First parent wins so the result is
	// a proper forest even if the JSON declares a node twice.
	for _, tn := range topo.Nodes {
		node := t.Nodes[tn.ID]
		for _, childID := range tn.Children {
			child, ok := t.Nodes[childID]
			if !ok {
				return nil, &TreeError{Reason: fmt.Sprintf("node %d references absent node %d", tn.ID, childID)}
			}
			if child.ParentID >= 0 {
				level.Debug(logger).Log("msg", "child already attached, keeping first parent", "child", childID, "parent", child.ParentID, "skipped_parent", tn.ID)
				continue
			}
			node.Children = append(node.Children, childID)
			child.ParentID = tn.ID
		}
	}

	rootID := topo.RootID
	if topo.SinkID >= 0 {
		sink := t.Nodes[topo.SinkID]
		if sink == nil {
			return nil, &TreeError{Reason: fmt.Sprintf("sink node %d absent", topo.SinkID)}
		}
		// The sink has no plan node id of its own; its metrics records are
		// matched by operator name below.
		sink.PlanNodeID = -1
		if nominal := t.Nodes[topo.RootID]; nominal != nil && nominal.ParentID < 0 && nominal.ID != sink.ID {
			if !containsInt(sink.Children, nominal.ID) {
				sink.Children = append(sink.Children, nominal.ID)
			}
			nominal.ParentID = sink.ID
		}
		rootID = topo.SinkID
	}
	if _, ok := t.Nodes[rootID]; !ok {
		return nil, &TreeError{Reason: fmt.Sprintf("no resolvable root: %d", rootID)}
	}
	t.RootID = rootID

	assignDepths(t)
	attachOperators(t, fragments, logger)
	aggregate(t, fragments, summary)
	return t, nil
}

// BuildFromFragments is the linear-chain fallback for profiles with no
// topology block: operators chain in listing order.
func BuildFromFragments(fragments []profile.Fragment, summary profile.Summary, logger log.Logger) (*ExecutionTree, error) {
	t := &ExecutionTree{Nodes: make(map[int]*Node)}

	var order []int
	for _, f := range fragments {
		for _, p := range f.Pipelines {
			for _, op := range p.Operators {
				if op.PlanNodeID < 0 {
					continue
				}
				if _, ok := t.Nodes[op.PlanNodeID]; !ok {
					t.Nodes[op.PlanNodeID] = &Node{
						ID:         op.PlanNodeID,
						Name:       op.Name,
						PlanNodeID: op.PlanNodeID,
						ParentID:   -1,
					}
					order = append(order, op.PlanNodeID)
				}
			}
		}
	}
	if len(order) == 0 {
		return nil, &TreeError{Reason: "no resolvable root: profile contains no plan nodes"}
	}

	for i := 0; i+1 < len(order); i++ {
		t.Nodes[order[i]].Children = []int{order[i+1]}
		t.Nodes[order[i+1]].ParentID = order[i]
	}
	t.RootID = order[0]

	assignDepths(t)
	attachOperators(t, fragments, logger)
	aggregate(t, fragments, summary)
	return t, nil
}

// assignDepths walks breadth-first from the root; each node is one deeper
// than its parent. Unreachable nodes keep depth 0.
func assignDepths(t *ExecutionTree) {
	t.BFSOrder = t.BFSOrder[:0]
	queue := []int{t.RootID}
	seen := map[int]bool{t.RootID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		t.BFSOrder = append(t.BFSOrder, id)
		node := t.Nodes[id]
		for _, childID := range node.Children {
			if seen[childID] {
				continue
			}
			seen[childID] = true
			t.Nodes[childID].Depth = node.Depth + 1
			queue = append(queue, childID)
		}
	}
}

// attachOperators merges operator records into nodes: by plan node id when
// annotated, by operator name for sinks and other unannotated operators.
func attachOperators(t *ExecutionTree, fragments []profile.Fragment, logger log.Logger) {
	byName := make(map[string]*Node)
	for _, n := range t.Nodes {
		byName[n.Name] = n
	}

	for _, f := range fragments {
		for _, p := range f.Pipelines {
			for _, op := range p.Operators {
				var node *Node
				if op.PlanNodeID >= 0 {
					node = t.Nodes[op.PlanNodeID]
				} else {
					node = byName[op.Name]
				}
				if node == nil {
					level.Debug(logger).Log("msg", "operator record matches no topology node", "operator", op.Name, "plan_node_id", op.PlanNodeID)
					continue
				}
				node.Operators = append(node.Operators, op)
			}
		}
	}
}

// aggregate sums metrics per node across all parallel instances and
// computes each node's share of the base time.
func aggregate(t *ExecutionTree, fragments []profile.Fragment, summary profile.Summary) {
	logger := log.NewNopLogger()

	for _, n := range t.Nodes {
		for _, op := range n.Operators {
			m := profile.ParseOperatorMetrics(op, logger)
			n.Metrics = sumMetrics(n.Metrics, m)

			total := m.EffectiveTotalTime()
			// Exchange and scan operators spend wall time waiting on the
			// network or on storage that OperatorTotalTime does not cover.
			if strings.Contains(op.Name, "EXCHANGE") {
				total += m.EffectiveNetworkTime()
			}
			if strings.Contains(op.Name, "SCAN") {
				total += m.EffectiveScanTime()
			}
			n.TotalTime += total
		}
	}

	t.BaseTime = baseTime(t, fragments, summary)
	if t.BaseTime <= 0 {
		return
	}

	for _, n := range t.Nodes {
		pct := 100 * float64(n.TotalTime) / float64(t.BaseTime)
		n.TimePercentage = math.Round(pct*100) / 100
		n.IsMostConsuming = n.TimePercentage > MostConsumingPct
		n.IsSecondMostConsuming = !n.IsMostConsuming && n.TimePercentage > SecondMostConsumingPct
	}
}

// baseTime picks the percentage denominator: the summary's cumulative
// operator time, else its execution wall time, else the sum of aggregated
// node times, else the raw per-operator sum across all fragments.
func baseTime(t *ExecutionTree, fragments []profile.Fragment, summary profile.Summary) time.Duration {
	if summary.CumulativeOperatorTime > 0 {
		return summary.CumulativeOperatorTime
	}
	if summary.ExecutionWallTime > 0 {
		return summary.ExecutionWallTime
	}

	var nodeSum time.Duration
	for _, n := range t.Nodes {
		nodeSum += n.TotalTime
	}
	if nodeSum > 0 {
		return nodeSum
	}

	logger := log.NewNopLogger()
	var rawSum time.Duration
	for _, f := range fragments {
		for _, p := range f.Pipelines {
			for _, op := range p.Operators {
				rawSum += profile.ParseOperatorMetrics(op, logger).EffectiveTotalTime()
			}
		}
	}
	return rawSum
}

func sumMetrics(a, b profile.OperatorMetrics) profile.OperatorMetrics {
	a.TotalTime += b.TotalTime
	a.MaxTotalTime += b.MaxTotalTime
	a.MinTotalTime += b.MinTotalTime
	a.NetworkTime += b.NetworkTime
	a.MaxNetworkTime += b.MaxNetworkTime
	a.ScanTime += b.ScanTime
	a.MaxScanTime += b.MaxScanTime
	a.MemoryBytes += b.MemoryBytes
	a.PeakMemoryBytes += b.PeakMemoryBytes
	a.HashTableMemoryBytes += b.HashTableMemoryBytes
	a.PushRows += b.PushRows
	a.MaxPushRows += b.MaxPushRows
	a.PullRows += b.PullRows
	a.MaxPullRows += b.MaxPullRows
	a.PushChunks += b.PushChunks
	a.PullChunks += b.PullChunks
	return a
}

// Hotspots returns nodes sorted by descending aggregated time.
func (t *ExecutionTree) Hotspots(limit int) []*Node {
	nodes := make([]*Node, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].TotalTime != nodes[j].TotalTime {
			return nodes[i].TotalTime > nodes[j].TotalTime
		}
		return nodes[i].ID < nodes[j].ID
	})
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return nodes
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
