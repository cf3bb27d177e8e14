package comparator

import "time"

type Direction int

const (
	Unchanged Direction = 0
	Improved  Direction = 1
	Regressed Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Improved:
		return "improved"
	case Regressed:
		return "regressed"
	default:
		return "unchanged"
	}
}

type ChangeType int

const (
	NoChange    ChangeType = 0
	Modified    ChangeType = 1
	Added       ChangeType = 2
	Removed     ChangeType = 3
	TypeChanged ChangeType = 4
)

func (c ChangeType) String() string {
	switch c {
	case Modified:
		return "modified"
	case Added:
		return "added"
	case Removed:
		return "removed"
	case TypeChanged:
		return "type_changed"
	default:
		return "no_change"
	}
}

// NodeDelta is the change record for one plan node, matched between the
// two runs by plan node id.
type NodeDelta struct {
	PlanNodeID int
	Name       string
	ChangeType ChangeType

	// Set only for TypeChanged.
	OldName string
	NewName string

	OldTime   time.Duration
	NewTime   time.Duration
	TimeDelta time.Duration
	TimePct   float64
	TimeDir   Direction

	OldRows   uint64
	NewRows   uint64
	RowsDelta int64
	RowsPct   float64

	OldMemory uint64
	NewMemory uint64
	MemoryDir Direction

	// Max-over-average instance time, the skew signal.
	OldSkew float64
	NewSkew float64
}

type ComparisonResult struct {
	Deltas  []NodeDelta
	Summary Summary
}

type Summary struct {
	OldQueryID string
	NewQueryID string

	OldTotalTime time.Duration
	NewTotalTime time.Duration
	TimeDelta    time.Duration
	TimePct      float64
	TimeDir      Direction

	OldPlanningTime time.Duration
	NewPlanningTime time.Duration
	PlanningDir     Direction

	OldPeakMemory uint64
	NewPeakMemory uint64
	MemoryDir     Direction

	NodesAdded       int
	NodesRemoved     int
	NodesModified    int
	NodesTypeChanged int

	Verdict string
}
