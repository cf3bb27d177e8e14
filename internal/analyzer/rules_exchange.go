package analyzer

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/olapctl/srplan/internal/tree"
)

func isRemoteExchange(n *tree.Node) bool {
	return strings.Contains(n.Name, "EXCHANGE") && !strings.Contains(n.Name, "LOCAL_EXCHANGE")
}

var exchangeRules = []NodeRule{
	{
		ID:        "EXCHANGE_NETWORK_SHARE",
		Name:      "network transfer dominates the query",
		AppliesTo: isRemoteExchange,
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			net := n.Metrics.EffectiveNetworkTime()
			if net <= 0 {
				return nil
			}
			pct := share(net, ctx.Tree.BaseTime)
			if pct < 30 {
				return nil
			}
			sev := Warning
			if pct >= 60 {
				sev = Critical
			}
			return &Diagnostic{
				Severity: sev,
				Message:  fmt.Sprintf("exchange spent %s on the network, %.1f%% of query time", net, pct),
				Reason:   "the query moves more data between backends than it computes on",
				Suggestions: []string{
					"Push aggregation or filtering below this exchange to shrink the transfer",
					"Colocate the joined tables if they share a distribution key",
				},
			}
		},
	},
	{
		ID:        "EXCHANGE_LOW_THROUGHPUT",
		Name:      "exchange throughput below expectation",
		AppliesTo: isRemoteExchange,
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			bytes, ok := sumUniqueBytes(n, "BytesReceived")
			if !ok {
				bytes, ok = sumUniqueBytes(n, "BytesSent")
			}
			net := n.Metrics.EffectiveNetworkTime()
			if !ok || net <= 0 {
				return nil
			}
			secs := net.Seconds()
			if secs < 0.5 {
				return nil
			}
			throughput := float64(bytes) / secs
			// 50 MiB/s per exchange is well under what a 10GbE backend pair
			// sustains.
			if throughput >= 50*(1<<20) {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("exchange moved %s in %s (%s/s)", humanize.IBytes(bytes), net, humanize.IBytes(uint64(throughput))),
				Reason:   "transfer this slow points at network congestion or an overloaded receiver",
				Suggestions: []string{
					"Check network saturation and CPU pressure on the receiving backends",
				},
			}
		},
	},
	{
		ID:        "EXCHANGE_SKEW",
		Name:      "shuffle distributes rows unevenly",
		AppliesTo: isRemoteExchange,
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
				Message:  fmt.Sprintf("busiest receiver got %s rows, %.1fx the average", humanize.Comma(int64(n.Metrics.MaxPullRows)), factor),
				Reason:   "the shuffle key hashes unevenly, concentrating rows on a few receivers",
				Suggestions: []string{
					"Shuffle on a higher-cardinality key or pre-aggregate hot values",
				},
			}
		},
	},
	{
		ID:        "BROADCAST_LARGE",
		Name:      "broadcast replicates a large input",
		AppliesTo: isRemoteExchange,
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			kind, ok := uniqueValue(n, "PartType")
			if !ok || !strings.Contains(strings.ToUpper(kind), "BROADCAST") {
				return nil
			}
			bytes, ok := sumUniqueBytes(n, "BytesSent")
			if !ok {
				return nil
			}
			// Broadcasting replicates to every backend, so judge the
			// pre-replication volume.
			threshold := uint64(100 << 20)
			if bytes < threshold {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("broadcast sent %s to every backend", humanize.IBytes(bytes)),
				Reason:   "the build side is too large to replicate cluster-wide",
				Suggestions: []string{
					"Hint a shuffle join, or let the planner see fresher statistics on the build table",
				},
			}
		},
	},
	{
		ID:        "LOCAL_EXCHANGE_SKEW",
		Name:      "local exchange distributes rows unevenly",
		AppliesTo: nameContains("LOCAL_EXCHANGE"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			factor := rowSkewFactor(n.Metrics.MaxPullRows, n.Metrics.PullRows)
			if factor <= ctx.Thresholds.SkewRatio() {
				return nil
			}
			if n.Metrics.MaxPullRows < ctx.Thresholds.MinSkewRows() {
				return nil
			}
			return &Diagnostic{
				Severity: Info,
				Message:  fmt.Sprintf("busiest pipeline driver got %s rows, %.1fx the average", humanize.Comma(int64(n.Metrics.MaxPullRows)), factor),
				Reason:   "in-node repartitioning leaves some pipeline drivers idle",
			}
		},
	},
	{
		ID:        "LOCAL_EXCHANGE_TIME_SHARE",
		Name:      "local exchange consumes a visible time share",
		AppliesTo: nameContains("LOCAL_EXCHANGE"),
		Evaluate: func(ctx *Context, n *tree.Node) *Diagnostic {
			pct := share(n.TotalTime, ctx.Tree.BaseTime)
			if pct < 10 {
				return nil
			}
			return &Diagnostic{
				Severity: Info,
				Message:  fmt.Sprintf("local exchange took %s, %.1f%% of query time", n.TotalTime, pct),
				Reason:   "in-node data movement should be nearly free; this one is not",
				Suggestions: []string{
					"Lower pipeline_dop if the node is oversubscribed",
				},
			}
		},
	},
}
