package analyzer

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/olapctl/srplan/internal/tree"
)

var aggregateRules = []NodeRule{
	{
		ID:        "AGG_DATA_SKEW",
		Name:      "aggregation input skewed across instances",
		AppliesTo: nameContains("AGGREGATE"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			factor := skewFactor(n.Metrics.MaxTotalTime, n.Metrics.TotalTime)
			rowFactor := rowSkewFactor(n.Metrics.MaxPushRows, n.Metrics.PushRows)
			if factor <= ctx.Thresholds.SkewRatio() && rowFactor <= ctx.Thresholds.SkewRatio() {
				return nil
			}
			if n.Metrics.PushRows < ctx.Thresholds.MinSkewRows() && n.Metrics.MaxPushRows < ctx.Thresholds.MinSkewRows() {
				return nil
			}
			sev := Warning
			if factor > 2*ctx.Thresholds.SkewRatio() || rowFactor > 2*ctx.Thresholds.SkewRatio() {
				sev = Critical
			}
			return &Diagnostic{
				Severity: sev,
				Message:  fmt.Sprintf("slowest instance aggregated for %s against an average of %s (row skew %.1fx)", n.Metrics.MaxTotalTime, n.Metrics.TotalTime, rowFactor),
				Reason:   "grouping keys hash unevenly, so a few instances carry most of the aggregation",
				Suggestions: []string{
					"Check the grouping key for hot values and consider a salted two-stage aggregation",
					"Enable per-bucket optimization if the grouping key prefixes the bucketing column",
				},
			}
		},
	},
	{
		ID:        "AGG_LOW_REDUCTION",
		Name:      "aggregation barely reduces its input",
		AppliesTo: nameContains("AGGREGATE"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			if n.Metrics.PushRows == 0 || n.Metrics.PullRows == 0 {
				return nil
			}
			if n.Metrics.PushRows < ctx.Thresholds.MinSkewRows() {
				return nil
			}
			ratio := float64(n.Metrics.PullRows) / float64(n.Metrics.PushRows)
			if ratio < 0.8 {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("aggregation emitted %s of %s input rows (%.0f%% kept)", humanize.Comma(int64(n.Metrics.PullRows)), humanize.Comma(int64(n.Metrics.PushRows)), 100*ratio),
				Reason:   "a near-distinct grouping key makes hash aggregation pure overhead",
				Suggestions: []string{
					"Verify the GROUP BY key is intended; near-unique keys may not need aggregation",
					"Consider streaming pre-aggregation for high-cardinality keys",
				},
				Parameters: []ParameterSuggestion{
					ctx.Thresholds.Parameter(ctx.Variables, "streaming_preaggregation_mode", "force_streaming"),
				},
			}
		},
	},
	{
		ID:        "AGG_HASH_MEMORY",
		Name:      "aggregation hash table exceeds its memory budget",
		AppliesTo: nameContains("AGGREGATE"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			ht := n.Metrics.HashTableMemoryBytes
			if ht == 0 {
				return nil
			}
			limit := ctx.Thresholds.HashTableMemoryLimit()
			if ht < limit {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("aggregation held a %s hash table, over the %s budget", humanize.IBytes(ht), humanize.IBytes(limit)),
				Reason:   "too many distinct grouping keys are resident at once",
				Suggestions: []string{
					"Pre-filter the input or aggregate in stages to shrink the key space",
				},
			}
		},
	},
	{
		ID:        "AGG_EXPR_TIME",
		Name:      "aggregate expression evaluation dominates the operator",
		AppliesTo: nameContains("AGGREGATE"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			exprTime, ok := sumUniqueDuration(n, "ExprComputeTime")
			if !ok {
				exprTime, ok = sumUniqueDuration(n, "AggComputeTime")
			}
			if !ok || n.Metrics.TotalTime <= 0 {
				return nil
			}
			pct := share(exprTime, n.Metrics.TotalTime)
			if pct < 60 {
				return nil
			}
			return &Diagnostic{
				Severity: Info,
				Message:  fmt.Sprintf("aggregate expressions took %s, %.0f%% of the operator's time", exprTime, pct),
				Reason:   "expensive aggregate functions, not data movement, bound this operator",
				Suggestions: []string{
					"Replace exact distinct counts with approx_count_distinct where tolerable",
				},
			}
		},
	},
}
