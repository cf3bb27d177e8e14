package analyzer

import (
	"strings"
	"time"

	"github.com/olapctl/srplan/internal/profile"
	"github.com/olapctl/srplan/internal/tree"
)

// NodeRule is evaluated once per execution-tree node it applies to.
// Evaluate is pure: it returns nil when the condition does not hold or a
// required metric is absent, and never errors.
type NodeRule struct {
	ID        string
	Name      string
	SkipTypes []QueryType
	AppliesTo func(n *tree.Node) bool
	Evaluate  func(ctx *Context, n *tree.Node) *Diagnostic
}

// QueryRule is evaluated once per analysis against the whole profile.
type QueryRule struct {
	ID        string
	Name      string
	SkipTypes []QueryType
	Evaluate  func(ctx *Context) *Diagnostic
}

func (r NodeRule) skippedFor(t QueryType) bool  { return containsType(r.SkipTypes, t) }
func (r QueryRule) skippedFor(t QueryType) bool { return containsType(r.SkipTypes, t) }

func containsType(types []QueryType, t QueryType) bool {
	for _, s := range types {
		if s == t {
			return true
		}
	}
	return false
}

func defaultNodeRules() []NodeRule {
	var rules []NodeRule
	rules = append(rules, commonRules...)
	rules = append(rules, aggregateRules...)
	rules = append(rules, exchangeRules...)
	rules = append(rules, projectRules...)
	rules = append(rules, sinkRules...)
	rules = append(rules, sortWindowRules...)
	return rules
}

func defaultQueryRules() []QueryRule {
	var rules []QueryRule
	rules = append(rules, queryShapeRules...)
	rules = append(rules, plannerRules...)
	rules = append(rules, fragmentRules...)
	return rules
}

// --- applicability predicates ---

func nameContains(sub string) func(*tree.Node) bool {
	return func(n *tree.Node) bool { return strings.Contains(n.Name, sub) }
}

func nameEndsWith(suffix string) func(*tree.Node) bool {
	return func(n *tree.Node) bool { return strings.HasSuffix(n.Name, suffix) }
}

func anyNode(*tree.Node) bool { return true }

// --- shared metric helpers ---

// skewFactor is max-of-instances over average. Zero when either side is
// missing, which makes every skew rule a no-op rather than a false alarm.
func skewFactor(max, avg time.Duration) float64 {
	if max <= 0 || avg <= 0 {
		return 0
	}
	return float64(max) / float64(avg)
}

func rowSkewFactor(max, avg uint64) float64 {
	if max == 0 || avg == 0 {
		return 0
	}
	return float64(max) / float64(avg)
}

// share is part over whole in percent.
func share(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}

func maxRows(n *tree.Node) uint64 {
	if n.Metrics.PushRows > n.Metrics.PullRows {
		return n.Metrics.PushRows
	}
	return n.Metrics.PullRows
}

// sumUniqueDuration sums a unique metric across every operator record
// merged into the node. ok is false when no record carries the key.
func sumUniqueDuration(n *tree.Node, key string) (time.Duration, bool) {
	var total time.Duration
	found := false
	for _, op := range n.Operators {
		v, ok := op.UniqueMetrics[key]
		if !ok {
			continue
		}
		d, err := profile.ParseDuration(v)
		if err != nil {
			continue
		}
		total += d
		found = true
	}
	return total, found
}

func sumUniqueNumber(n *tree.Node, key string) (float64, bool) {
	var total float64
	found := false
	for _, op := range n.Operators {
		v, ok := op.UniqueMetrics[key]
		if !ok {
			continue
		}
		f, err := profile.ParseNumber(v)
		if err != nil {
			continue
		}
		total += f
		found = true
	}
	return total, found
}

func sumUniqueBytes(n *tree.Node, key string) (uint64, bool) {
	var total uint64
	found := false
	for _, op := range n.Operators {
		v, ok := op.UniqueMetrics[key]
		if !ok {
			continue
		}
		b, err := profile.ParseBytes(v)
		if err != nil {
			continue
		}
		total += b
		found = true
	}
	return total, found
}

// uniqueValue returns the first record's value for a unique metric.
func uniqueValue(n *tree.Node, key string) (string, bool) {
	for _, op := range n.Operators {
		if v, ok := op.UniqueMetrics[key]; ok {
			return v, true
		}
	}
	return "", false
}
