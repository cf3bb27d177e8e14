package analyzer

import (
	"fmt"
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/olapctl/srplan/internal/profile"
	"github.com/olapctl/srplan/internal/tree"
)

const (
	// DefaultMaxDiagnostics caps the findings per analysis. A profile that
	// trips more rules than this is drowning, not informing.
	DefaultMaxDiagnostics = 100

	hotspotLimit = 10
)

// Analyzer runs the rule catalog against parsed profiles. Safe for
// concurrent use; History and Baselines are internally synchronized.
type Analyzer struct {
	Logger         log.Logger
	History        *QueryHistory
	Baselines      BaselineProvider
	MaxDiagnostics int

	nodeRules  []NodeRule
	queryRules []QueryRule
}

func New(logger log.Logger) *Analyzer {
	return &Analyzer{
		Logger:         logger,
		History:        NewQueryHistory(4096),
		Baselines:      NewBaselineStore(1024),
		MaxDiagnostics: DefaultMaxDiagnostics,
		nodeRules:      defaultNodeRules(),
		queryRules:     defaultQueryRules(),
	}
}

// Analyze builds the execution tree and evaluates every applicable rule.
// variables, info and clusterID are optional; zero values disable the
// checks that need them.
func (a *Analyzer) Analyze(p *profile.Profile, variables map[string]string, info *ClusterInfo, clusterID string) (*AnalysisResult, error) {
	t, err := tree.Build(p, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("analyzing query %s: %w", p.Summary.QueryID, err)
	}

	queryType := DetectQueryType(p.Summary.SQL)
	complexity := DetectQueryComplexity(p.Summary.SQL)

	var baseline *Baseline
	if a.Baselines != nil && clusterID != "" {
		if b, ok := a.Baselines.Lookup(clusterID, complexity); ok {
			baseline = b
		}
	}
	thresholds := NewDynamicThresholds(info, queryType, complexity, baseline)

	ctx := &Context{
		Profile:    p,
		Tree:       t,
		Thresholds: thresholds,
		Variables:  variables,
		QueryType:  queryType,
		Complexity: complexity,
	}

	result := &AnalysisResult{
		QueryID:    p.Summary.QueryID,
		QueryType:  queryType,
		Complexity: complexity,
		TotalTime:  p.Summary.TotalTime,
		BaseTime:   t.BaseTime,
		Hotspots:   hotspots(t),
	}

	// History records every run, including the fast ones a baseline needs.
	var regression *Diagnostic
	if a.History != nil {
		regression = a.History.RecordAndDetect(p)
	}

	if p.Summary.TotalTime < thresholds.MinDiagnosisTime() {
		level.Debug(a.Logger).Log("msg", "query under minimum diagnosis time, skipping rules",
			"query_id", p.Summary.QueryID, "total_time", p.Summary.TotalTime, "min", thresholds.MinDiagnosisTime())
		return result, nil
	}

	var diags []Diagnostic
	for _, r := range a.queryRules {
		if r.skippedFor(queryType) {
			continue
		}
		if d := r.Evaluate(ctx); d != nil {
			d.RuleID = r.ID
			d.RuleName = r.Name
			d.NodePath = "QUERY"
			d.PlanNodeID = -1
			d.Thresholds = thresholds.Metadata()
			diags = append(diags, *d)
		}
	}

	t.Walk(func(n *tree.Node) {
		for _, r := range a.nodeRules {
			if r.skippedFor(queryType) || !r.AppliesTo(n) {
				continue
			}
			d := r.Evaluate(ctx, n)
			if d == nil {
				continue
			}
			d.RuleID = r.ID
			d.RuleName = r.Name
			d.NodePath = n.Path()
			d.PlanNodeID = n.PlanNodeID
			d.Thresholds = thresholds.Metadata()
			diags = append(diags, *d)
		}
	})

	if regression != nil {
		regression.Thresholds = thresholds.Metadata()
		diags = append(diags, *regression)
	}

	result.Diagnostics = finalize(diags, a.maxDiagnostics())
	level.Info(a.Logger).Log("msg", "analysis complete", "query_id", p.Summary.QueryID,
		"query_type", queryType, "complexity", complexity, "diagnostics", len(result.Diagnostics))
	return result, nil
}

func (a *Analyzer) maxDiagnostics() int {
	if a.MaxDiagnostics > 0 {
		return a.MaxDiagnostics
	}
	return DefaultMaxDiagnostics
}

// finalize dedups by (rule, node), orders by descending severity and caps
// the list.
func finalize(diags []Diagnostic, max int) []Diagnostic {
	seen := make(map[string]bool, len(diags))
	out := diags[:0]
	for _, d := range diags {
		key := d.RuleID + "\x00" + d.NodePath
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity > out[j].Severity
	})

	if len(out) > max {
		out = out[:max]
	}
	return out
}

func hotspots(t *tree.ExecutionTree) []Hotspot {
	nodes := t.Hotspots(hotspotLimit)
	out := make([]Hotspot, 0, len(nodes))
	for _, n := range nodes {
		if n.TotalTime <= 0 {
			continue
		}
		out = append(out, Hotspot{
			Name:           n.Name,
			PlanNodeID:     n.PlanNodeID,
			TotalTime:      n.TotalTime,
			TimePercentage: n.TimePercentage,
		})
	}
	return out
}
