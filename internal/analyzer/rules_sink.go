package analyzer

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/olapctl/srplan/internal/tree"
)

var sinkRules = []NodeRule{
	{
		ID:        "TABLE_SINK_SHARE",
		Name:      "table sink dominates the load",
		AppliesTo: func(n *tree.Node) bool {
			return strings.HasSuffix(n.Name, "_SINK") && strings.Contains(n.Name, "TABLE")
		},
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			pct := share(n.TotalTime, ctx.Tree.BaseTime)
			if pct < 40 {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("writing took %s, %.1f%% of total time", n.TotalTime, pct),
				Reason:   "ingestion, not the reading side, bounds this statement",
				Suggestions: []string{
					"Batch smaller loads together, or raise the target table's bucket count",
					"Check compaction backlog on the destination table",
				},
			}
		},
	},
	{
		ID:        "SINK_RPC_TIME",
		Name:      "sink blocked on downstream RPCs",
		AppliesTo: nameEndsWith("_SINK"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			rpc, ok := sumUniqueDuration(n, "RpcAvgTime")
			if !ok {
				rpc, ok = sumUniqueDuration(n, "WaitResponseTime")
			}
			if !ok || n.Metrics.TotalTime <= 0 {
				return nil
			}
			pct := share(rpc, n.Metrics.TotalTime)
			if pct < 50 {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("sink waited %s on RPCs, %.0f%% of its time", rpc, pct),
				Reason:   "the receivers acknowledge slowly, so the sink sits idle",
				Suggestions: []string{
					"Check memory and disk pressure on the receiving backends",
				},
			}
		},
	},
	{
		ID:        "RESULT_SINK_LARGE",
		Name:      "result set too large for an interactive query",
		SkipTypes: []QueryType{QueryTypeETL},
		AppliesTo: nameContains("RESULT_SINK"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			rows := n.Metrics.PushRows
			if rows == 0 {
				rows = n.Metrics.PullRows
			}
			if rows < 1_000_000 {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("query returned %s rows to the client", humanize.Comma(int64(rows))),
				Reason:   "interactive clients rarely consume millions of rows; the transfer itself dominates",
				Suggestions: []string{
					"Add a LIMIT, or aggregate server-side instead of in the client",
					"Use INSERT INTO ... SELECT for bulk extraction",
				},
			}
		},
	},
}
