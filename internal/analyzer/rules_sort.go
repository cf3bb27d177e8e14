package analyzer

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/olapctl/srplan/internal/tree"
)

var sortWindowRules = []NodeRule{
	{
		ID:        "SORT_MEMORY",
		Name:      "sort exceeds its memory budget",
		AppliesTo: nameContains("SORT"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			peak := n.Metrics.PeakMemoryBytes
			if peak == 0 {
				peak = n.Metrics.MemoryBytes
			}
			limit := ctx.Thresholds.OperatorMemoryLimit()
			if peak < limit {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("sort held %s in memory, over the %s budget", humanize.IBytes(peak), humanize.IBytes(limit)),
				Reason:   "sorting the full input resident invites spilling",
				Suggestions: []string{
					"Add a LIMIT so the sort can keep only the top rows",
					"Enable spill_mode=auto to trade disk for memory safety",
				},
				Parameters: []ParameterSuggestion{
					ctx.Thresholds.Parameter(ctx.Variables, "spill_mode", "auto"),
				},
			}
		},
	},
	{
		ID:        "FULL_SORT_LARGE_INPUT",
		Name:      "full sort over a large unlimited input",
		AppliesTo: nameContains("SORT"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			// TopN sorts carry a limit and bound their working set; a full
			// sort over many rows does not.
			if strings.Contains(n.Name, "TOP") || strings.Contains(n.Name, "PARTITION") {
				return nil
			}
			if n.Metrics.PushRows < 10_000_000 {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("full sort over %s rows", humanize.Comma(int64(n.Metrics.PushRows))),
				Reason:   "an ORDER BY without LIMIT materializes and sorts the entire input",
				Suggestions: []string{
					"Add a LIMIT if the client only needs the leading rows",
				},
			}
		},
	},
	{
		ID:        "SORT_TIME_SKEW",
		Name:      "sort time skewed across instances",
		AppliesTo: nameContains("SORT"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			factor := skewFactor(n.Metrics.MaxTotalTime, n.Metrics.TotalTime)
			if factor <= ctx.Thresholds.SkewRatio() {
				return nil
			}
			if maxRows(n) < ctx.Thresholds.MinSkewRows() {
				return nil
			}
			return &Diagnostic{
				Severity: Info,
				Message:  fmt.Sprintf("slowest instance sorted for %s against an average of %s", n.Metrics.MaxTotalTime, n.Metrics.TotalTime),
				Reason:   "the upstream distribution feeds some sorters far more rows than others",
			}
		},
	},
	{
		ID:        "WINDOW_PARTITION_SKEW",
		Name:      "window partitions skewed across instances",
		AppliesTo: nameContains("ANALYTIC"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			factor := rowSkewFactor(n.Metrics.MaxPushRows, n.Metrics.PushRows)
			if factor <= ctx.Thresholds.SkewRatio() {
				return nil
			}
			if n.Metrics.MaxPushRows < ctx.Thresholds.MinSkewRows() {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("busiest instance processed %s window rows, %.1fx the average", humanize.Comma(int64(n.Metrics.MaxPushRows)), factor),
				Reason:   "a hot PARTITION BY value concentrates one partition's rows on one instance",
				Suggestions: []string{
					"Add a finer column to PARTITION BY, or split the hot value out",
				},
			}
		},
	},
	{
		ID:        "WINDOW_TIME_SHARE",
		Name:      "window function consumes a large time share",
		AppliesTo: nameContains("ANALYTIC"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			pct := share(n.TotalTime, ctx.Tree.BaseTime)
			if pct < tree.SecondMostConsumingPct {
				return nil
			}
			return &Diagnostic{
				Severity: Info,
				Message:  fmt.Sprintf("window evaluation took %s, %.1f%% of query time", n.TotalTime, pct),
				Reason:   "window frames are evaluated row by row and scale with partition width",
			}
		},
	},
}
