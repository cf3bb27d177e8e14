package comparator

import (
	"math"
	"sort"

	"github.com/olapctl/srplan/internal/tree"
)

// diffTrees aligns plan nodes by plan node id. Sinks carry no id and are
// compared implicitly through the whole-query summary instead.
func (c *Comparator) diffTrees(old, new *tree.ExecutionTree) []NodeDelta {
	oldByID := nodesByPlanID(old)
	newByID := nodesByPlanID(new)

	ids := make([]int, 0, len(oldByID)+len(newByID))
	for id := range oldByID {
		ids = append(ids, id)
	}
	for id := range newByID {
		if _, ok := oldByID[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	deltas := make([]NodeDelta, 0, len(ids))
	for _, id := range ids {
		o, inOld := oldByID[id]
		n, inNew := newByID[id]
		switch {
		case !inOld:
			deltas = append(deltas, addedNode(n))
		case !inNew:
			deltas = append(deltas, removedNode(o))
		default:
			deltas = append(deltas, c.diffNodes(o, n))
		}
	}
	return deltas
}

func nodesByPlanID(t *tree.ExecutionTree) map[int]*tree.Node {
	out := make(map[int]*tree.Node, len(t.Nodes))
	for _, n := range t.Nodes {
		if n.PlanNodeID >= 0 {
			out[n.PlanNodeID] = n
		}
	}
	return out
}

func (c *Comparator) diffNodes(old, new *tree.Node) NodeDelta {
	delta := NodeDelta{PlanNodeID: new.PlanNodeID}

	if old.Name != new.Name {
		delta.ChangeType = TypeChanged
		delta.OldName = old.Name
		delta.NewName = new.Name
		delta.Name = new.Name
	} else {
		delta.ChangeType = Modified
		delta.Name = old.Name
	}

	delta.OldTime = old.TotalTime
	delta.NewTime = new.TotalTime
	delta.TimeDelta = new.TotalTime - old.TotalTime
	delta.TimePct = pctChange(float64(old.TotalTime), float64(new.TotalTime))
	delta.TimeDir = c.direction(float64(old.TotalTime), float64(new.TotalTime))

	delta.OldRows = old.Metrics.PullRows
	delta.NewRows = new.Metrics.PullRows
	delta.RowsDelta = int64(new.Metrics.PullRows) - int64(old.Metrics.PullRows)
	delta.RowsPct = pctChange(float64(old.Metrics.PullRows), float64(new.Metrics.PullRows))

	delta.OldMemory = nodeMemory(old)
	delta.NewMemory = nodeMemory(new)
	delta.MemoryDir = c.direction(float64(delta.OldMemory), float64(delta.NewMemory))

	delta.OldSkew = nodeSkew(old)
	delta.NewSkew = nodeSkew(new)

	if delta.ChangeType == Modified && !c.isSignificant(delta) {
		delta.ChangeType = NoChange
	}
	return delta
}

func addedNode(n *tree.Node) NodeDelta {
	return NodeDelta{
		PlanNodeID: n.PlanNodeID,
		Name:       n.Name,
		ChangeType: Added,
		NewTime:    n.TotalTime,
		NewRows:    n.Metrics.PullRows,
		NewMemory:  nodeMemory(n),
		NewSkew:    nodeSkew(n),
	}
}

func removedNode(n *tree.Node) NodeDelta {
	return NodeDelta{
		PlanNodeID: n.PlanNodeID,
		Name:       n.Name,
		ChangeType: Removed,
		OldTime:    n.TotalTime,
		OldRows:    n.Metrics.PullRows,
		OldMemory:  nodeMemory(n),
		OldSkew:    nodeSkew(n),
	}
}

func nodeMemory(n *tree.Node) uint64 {
	if n.Metrics.PeakMemoryBytes > 0 {
		return n.Metrics.PeakMemoryBytes
	}
	return n.Metrics.MemoryBytes
}

func nodeSkew(n *tree.Node) float64 {
	if n.Metrics.MaxTotalTime <= 0 || n.Metrics.TotalTime <= 0 {
		return 0
	}
	return float64(n.Metrics.MaxTotalTime) / float64(n.Metrics.TotalTime)
}

func (c *Comparator) isSignificant(d NodeDelta) bool {
	if math.Abs(d.TimePct) > c.threshold() {
		return true
	}
	if math.Abs(d.RowsPct) > c.threshold() {
		return true
	}
	if d.OldMemory != d.NewMemory && d.MemoryDir != Unchanged {
		return true
	}
	// A node that starts skewing is significant even at similar totals.
	if math.Abs(d.NewSkew-d.OldSkew) > 0.5 {
		return true
	}
	return false
}

func (c *Comparator) direction(old, new float64) Direction {
	if math.Abs(pctChange(old, new)) < c.threshold() {
		return Unchanged
	}
	if new < old {
		return Improved
	}
	return Regressed
}

func pctChange(old, new float64) float64 {
	if old == 0 {
		if new == 0 {
			return 0
		}
		return 100
	}
	return ((new - old) / old) * 100
}
