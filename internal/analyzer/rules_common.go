package analyzer

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/olapctl/srplan/internal/tree"
)

// commonRules apply to every operator kind: instance skew, memory
// ceilings, hotspot share, and the scan and join checks that matter for
// any plan shape.
var commonRules = []NodeRule{
	{
		ID:        "OP_TIME_SKEW",
		Name:      "operator time skew across instances",
		AppliesTo: anyNode,
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			factor := skewFactor(n.Metrics.MaxTotalTime, n.Metrics.TotalTime)
			if factor <= ctx.Thresholds.SkewRatio() {
				return nil
			}
			if maxRows(n) < ctx.Thresholds.MinSkewRows() {
				return nil
			}
			sev := Warning
			if factor > 2*ctx.Thresholds.SkewRatio() {
				sev = Critical
			}
			return &Diagnostic{
				Severity: sev,
				Message:  fmt.Sprintf("slowest instance took %s, %.1fx the average of %s", n.Metrics.MaxTotalTime, factor, n.Metrics.TotalTime),
				Reason:   "work is unevenly distributed across parallel instances",
				Suggestions: []string{
					"Check the distribution of the key this operator partitions on",
					"Consider a different bucketing column or a higher bucket count on the involved table",
				},
			}
		},
	},
	{
		ID:        "OP_MEMORY_CEILING",
		Name:      "operator memory near the per-node ceiling",
		AppliesTo: anyNode,
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			peak := n.Metrics.PeakMemoryBytes
			if peak == 0 {
				peak = n.Metrics.MemoryBytes
			}
			limit := ctx.Thresholds.OperatorMemoryLimit()
			if peak < limit {
				return nil
			}
			sev := Warning
			if ctx.Profile.Summary.SpillBytes > 0 {
				sev = Critical
			}
			return &Diagnostic{
				Severity: sev,
				Message:  fmt.Sprintf("operator peaked at %s of memory, over the %s budget", humanize.IBytes(peak), humanize.IBytes(limit)),
				Reason:   "operators this large risk spilling or cancelling the query under memory pressure",
				Suggestions: []string{
					"Reduce the data volume reaching this operator with earlier filters",
					"Raise query_mem_limit only if the cluster has headroom",
				},
				Parameters: []ParameterSuggestion{
					ctx.Thresholds.Parameter(ctx.Variables, "query_mem_limit", humanize.IBytes(2*limit)),
				},
			}
		},
	},
	{
		ID:        "OP_TIME_SHARE",
		Name:      "single operator dominates execution time",
		AppliesTo: anyNode,
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			if !n.IsMostConsuming {
				return nil
			}
			return &Diagnostic{
				Severity: Info,
				Message:  fmt.Sprintf("operator accounts for %.1f%% of execution time (%s)", n.TimePercentage, n.TotalTime),
				Reason:   "the largest single contributor is the first place tuning pays off",
			}
		},
	},
	{
		ID:        "SCAN_IO_SHARE",
		Name:      "scan dominated by storage reads",
		AppliesTo: nameContains("SCAN"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			ioTime, ok := sumUniqueDuration(n, "IOTaskExecTime")
			if !ok {
				ioTime, ok = sumUniqueDuration(n, "ScanTime")
			}
			if !ok {
				return nil
			}
			pct := share(ioTime, ctx.Tree.BaseTime)
			if pct < 40 {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("storage reads took %s, %.1f%% of query time", ioTime, pct),
				Reason:   "the query is I/O bound on this scan",
				Suggestions: []string{
					"Narrow the scanned range with partition pruning or zone-map friendly predicates",
					"Check data cache hit rates on the backends serving this table",
				},
			}
		},
	},
	{
		ID:        "SCAN_NO_PREDICATE_FILTER",
		Name:      "scan predicates filter almost nothing",
		AppliesTo: nameContains("SCAN"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			raw, okRaw := sumUniqueNumber(n, "RawRowsRead")
			read, okRead := sumUniqueNumber(n, "RowsRead")
			if !okRaw || !okRead || raw <= 0 {
				return nil
			}
			if float64(read) < 0.9*raw {
				return nil
			}
			if uint64(raw) < ctx.Thresholds.MinSkewRows() {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("read %s of %s raw rows, predicates filtered %.1f%%", humanize.Comma(int64(read)), humanize.Comma(int64(raw)), 100*(1-read/raw)),
				Reason:   "pushed-down predicates are not selective on this table's sort key",
				Suggestions: []string{
					"Lead the table's sort key with the most selective filter column",
					"Add a partition or bloom filter index on the filtered column",
				},
			}
		},
	},
	{
		ID:        "SCAN_TABLET_SKEW",
		Name:      "scan tablets unevenly spread",
		AppliesTo: nameContains("SCAN"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			factor := rowSkewFactor(n.Metrics.MaxPullRows, n.Metrics.PullRows)
			if factor <= ctx.Thresholds.SkewRatio() {
				return nil
			}
			if n.Metrics.MaxPullRows < ctx.Thresholds.MinSkewRows() {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("busiest instance scanned %s rows, %.1fx the average", humanize.Comma(int64(n.Metrics.MaxPullRows)), factor),
				Reason:   "tablets for this table are not evenly spread over the scanning instances",
				Suggestions: []string{
					"Rebalance tablets or raise the table's bucket count",
				},
			}
		},
	},
	{
		ID:        "JOIN_HASH_MEMORY",
		Name:      "join hash table exceeds its memory budget",
		AppliesTo: nameContains("JOIN"),
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
				Message:  fmt.Sprintf("join built a %s hash table, over the %s budget", humanize.IBytes(ht), humanize.IBytes(limit)),
				Reason:   "the build side of this join is too large to hash comfortably",
				Suggestions: []string{
					"Put the smaller input on the build side, or pre-aggregate it",
					"Switch a broadcast join to shuffle if the build side has grown",
				},
			}
		},
	},
	{
		ID:        "CROSS_JOIN_PRESENT",
		Name:      "cross join in the plan",
		AppliesTo: func(n *tree.Node) bool {
			return strings.Contains(n.Name, "CROSS") || strings.Contains(n.Name, "NESTLOOP")
		},
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			sev := Warning
			if n.TimePercentage >= tree.MostConsumingPct {
				sev = Critical
			}
			return &Diagnostic{
				Severity: sev,
				Message:  fmt.Sprintf("cross join produced %s rows in %s", humanize.Comma(int64(n.Metrics.PullRows)), n.TotalTime),
				Reason:   "a join without an equality condition multiplies its inputs",
				Suggestions: []string{
					"Add an equi-join condition so the planner can hash-join",
				},
			}
		},
	},
}
