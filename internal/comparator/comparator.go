package comparator

import (
	"fmt"

	"github.com/go-kit/log"

	"github.com/olapctl/srplan/internal/profile"
	"github.com/olapctl/srplan/internal/tree"
)

// SignificanceThresholdPct is the default percentage change below which a
// node counts as unchanged.
const SignificanceThresholdPct = 5.0

// Run is one profiled execution prepared for comparison.
type Run struct {
	Profile *profile.Profile
	Tree    *tree.ExecutionTree
}

func NewRun(p *profile.Profile, logger log.Logger) (*Run, error) {
	t, err := tree.Build(p, logger)
	if err != nil {
		return nil, fmt.Errorf("preparing %s for comparison: %w", p.Summary.QueryID, err)
	}
	return &Run{Profile: p, Tree: t}, nil
}

type Comparator struct {
	// Threshold is the significance cutoff in percent; zero means the
	// default.
	Threshold float64
}

func (c *Comparator) threshold() float64 {
	if c.Threshold > 0 {
		return c.Threshold
	}
	return SignificanceThresholdPct
}

// Compare matches the two runs' plan nodes by id and reports per-node and
// whole-query changes. old is the reference run, new the candidate.
func (c *Comparator) Compare(old, new *Run) ComparisonResult {
	deltas := c.diffTrees(old.Tree, new.Tree)

	summary := Summary{
		OldQueryID: old.Profile.Summary.QueryID,
		NewQueryID: new.Profile.Summary.QueryID,

		OldTotalTime: old.Profile.Summary.TotalTime,
		NewTotalTime: new.Profile.Summary.TotalTime,
		TimeDelta:    new.Profile.Summary.TotalTime - old.Profile.Summary.TotalTime,
		TimePct:      pctChange(float64(old.Profile.Summary.TotalTime), float64(new.Profile.Summary.TotalTime)),
		TimeDir:      c.direction(float64(old.Profile.Summary.TotalTime), float64(new.Profile.Summary.TotalTime)),

		OldPlanningTime: old.Profile.Planner.TotalTime,
		NewPlanningTime: new.Profile.Planner.TotalTime,
		PlanningDir:     c.direction(float64(old.Profile.Planner.TotalTime), float64(new.Profile.Planner.TotalTime)),

		OldPeakMemory: old.Profile.Summary.PeakMemoryUsage,
		NewPeakMemory: new.Profile.Summary.PeakMemoryUsage,
		MemoryDir:     c.direction(float64(old.Profile.Summary.PeakMemoryUsage), float64(new.Profile.Summary.PeakMemoryUsage)),
	}

	for _, d := range deltas {
		switch d.ChangeType {
		case Added:
			summary.NodesAdded++
		case Removed:
			summary.NodesRemoved++
		case Modified:
			summary.NodesModified++
		case TypeChanged:
			summary.NodesTypeChanged++
		}
	}
	summary.Verdict = verdict(summary)

	return ComparisonResult{Deltas: deltas, Summary: summary}
}

func verdict(s Summary) string {
	if s.NodesAdded+s.NodesRemoved+s.NodesTypeChanged > 0 {
		shape := fmt.Sprintf("plan shape changed (%d added, %d removed, %d retyped)", s.NodesAdded, s.NodesRemoved, s.NodesTypeChanged)
		switch s.TimeDir {
		case Improved:
			return shape + fmt.Sprintf("; total time improved %.1f%%", -s.TimePct)
		case Regressed:
			return shape + fmt.Sprintf("; total time regressed %.1f%%", s.TimePct)
		}
		return shape + "; total time unchanged"
	}

	switch s.TimeDir {
	case Improved:
		return fmt.Sprintf("same plan, total time improved %.1f%% (%s to %s)", -s.TimePct, s.OldTotalTime, s.NewTotalTime)
	case Regressed:
		return fmt.Sprintf("same plan, total time regressed %.1f%% (%s to %s)", s.TimePct, s.OldTotalTime, s.NewTotalTime)
	}
	return "no significant change"
}
