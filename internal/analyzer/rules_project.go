package analyzer

import (
	"fmt"

	"github.com/olapctl/srplan/internal/tree"
)

var projectRules = []NodeRule{
	{
		ID:        "PROJECT_TIME_SHARE",
		Name:      "projection consumes a visible time share",
		AppliesTo: nameContains("PROJECT"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			pct := share(n.TotalTime, ctx.Tree.BaseTime)
			if pct < 15 {
				return nil
			}
			sev := Info
			if pct >= tree.MostConsumingPct {
				sev = Warning
			}
			return &Diagnostic{
				Severity: sev,
				Message:  fmt.Sprintf("projection took %s, %.1f%% of query time", n.TotalTime, pct),
				Reason:   "expression evaluation in the projection is unusually expensive",
				Suggestions: []string{
					"Move heavy expressions behind the most selective filters",
					"Replace repeated casts or regexes with precomputed columns",
				},
			}
		},
	},
}
