package analyzer

import (
	"fmt"

	"github.com/olapctl/srplan/internal/profile"
)

// fragmentRules operate on the physical fragment listing rather than the
// logical execution tree.
var fragmentRules = []QueryRule{
	{
		ID:   "FRAGMENT_COUNT_HIGH",
		Name: "plan split into many fragments",
		Evaluate: func(ctx *Context) *Diagnostic {
			count := len(ctx.Profile.Fragments)
			if count < 12 {
				return nil
			}
			return &Diagnostic{
				Severity: Info,
				Message:  fmt.Sprintf("plan runs as %d fragments", count),
				Reason:   "every fragment boundary is a shuffle; deep plans pay for each one",
				Suggestions: []string{
					"Flatten nested subqueries or views where the shuffles are avoidable",
				},
			}
		},
	},
	{
		ID:   "FRAGMENT_UNDERUTILIZED",
		Name: "fragment runs on a fraction of the cluster",
		Evaluate: func(ctx *Context) *Diagnostic {
			if ctx.Complexity == ComplexitySimple {
				return nil
			}
			backends := map[string]struct{}{}
			widest := 0
			for _, f := range ctx.Profile.Fragments {
				for _, addr := range f.BackendAddresses {
					backends[addr] = struct{}{}
				}
				if len(f.InstanceIDs) > widest {
					widest = len(f.InstanceIDs)
				}
			}
			if len(backends) == 0 || widest == 0 {
				return nil
			}
			// A non-trivial query whose widest fragment runs a single
			// instance leaves the rest of the cluster idle.
			if widest > 1 || len(backends) > 1 {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  "every fragment ran as a single instance on one backend",
				Reason:   "the plan never parallelized, so cluster capacity sat unused",
				Suggestions: []string{
					"Check whether the scanned table has a single tablet",
					"Verify parallel_fragment_exec_instance_num is not pinned to 1",
				},
			}
		},
	},
	{
		ID:   "LOW_PIPELINE_DOP",
		Name: "pipelines run at degree-of-parallelism one",
		Evaluate: func(ctx *Context) *Diagnostic {
			sawDOP := false
			for _, f := range ctx.Profile.Fragments {
				for _, p := range f.Pipelines {
					v, ok := p.Metrics["DegreeOfParallelism"]
					if !ok {
						continue
					}
					sawDOP = true
					dop, err := profile.ParseNumber(v)
					if err != nil || dop > 1 {
						return nil
					}
				}
			}
			if !sawDOP || ctx.Complexity == ComplexitySimple {
				return nil
			}
			return &Diagnostic{
				Severity: Info,
				Message:  "all pipelines ran with a degree of parallelism of 1",
				Reason:   "a non-trivial query usually benefits from intra-node parallelism",
				Parameters: []ParameterSuggestion{
					ctx.Thresholds.Parameter(ctx.Variables, "pipeline_dop", "0"),
				},
				Suggestions: []string{
					"Set pipeline_dop to 0 to let the engine choose per query",
				},
			}
		},
	},
}
