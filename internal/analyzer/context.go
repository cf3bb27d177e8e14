package analyzer

import (
	"regexp"
	"strings"

	"github.com/olapctl/srplan/internal/profile"
	"github.com/olapctl/srplan/internal/tree"
)

type QueryType int

const (
	QueryTypeUnknown QueryType = iota
	QueryTypeInteractive
	QueryTypeETL
)

func (t QueryType) String() string {
	switch t {
	case QueryTypeInteractive:
		return "interactive"
	case QueryTypeETL:
		return "etl"
	default:
		return "unknown"
	}
}

type QueryComplexity int

const (
	ComplexitySimple QueryComplexity = iota
	ComplexityModerate
	ComplexityComplex
)

func (c QueryComplexity) String() string {
	switch c {
	case ComplexityModerate:
		return "moderate"
	case ComplexityComplex:
		return "complex"
	default:
		return "simple"
	}
}

// ClusterInfo describes the target cluster for threshold scaling. All
// fields are optional; zero values fall back to static defaults.
type ClusterInfo struct {
	BackendCount          int
	MemoryPerBackendBytes uint64
	CoresPerBackend       int
}

var (
	insertSelectRe = regexp.MustCompile(`(?is)^\s*insert\s+(?:into|overwrite)\b.*\bselect\b`)
	ctasRe         = regexp.MustCompile(`(?is)^\s*create\s+table\b.*\bas\s+select\b`)
	submitTaskRe   = regexp.MustCompile(`(?is)^\s*submit\s+task\b`)
)

// DetectQueryType classifies the SQL text by shape, without parsing it.
// ETL covers INSERT-SELECT, INSERT OVERWRITE, CTAS and submitted tasks;
// plain SELECT/WITH shapes are interactive.
func DetectQueryType(sql string) QueryType {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return QueryTypeUnknown
	}
	if insertSelectRe.MatchString(trimmed) || ctasRe.MatchString(trimmed) || submitTaskRe.MatchString(trimmed) {
		return QueryTypeETL
	}
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, "INSERT"),
		strings.HasPrefix(upper, "UPDATE"),
		strings.HasPrefix(upper, "DELETE"):
		return QueryTypeETL
	case strings.HasPrefix(upper, "SELECT"), strings.HasPrefix(upper, "WITH"):
		return QueryTypeInteractive
	}
	return QueryTypeUnknown
}

var (
	joinRe     = regexp.MustCompile(`(?i)\bjoin\b`)
	subqueryRe = regexp.MustCompile(`(?i)\(\s*select\b`)
	unionRe    = regexp.MustCompile(`(?i)\bunion\b`)
	windowRe   = regexp.MustCompile(`(?i)\bover\s*\(`)
	groupByRe  = regexp.MustCompile(`(?i)\bgroup\s+by\b`)
)

// DetectQueryComplexity scores the SQL shape: joins and subqueries weigh
// most, window functions and set operations add up.
func DetectQueryComplexity(sql string) QueryComplexity {
	score := len(joinRe.FindAllString(sql, -1))
	score += 2 * len(subqueryRe.FindAllString(sql, -1))
	score += 2 * len(windowRe.FindAllString(sql, -1))
	score += len(unionRe.FindAllString(sql, -1))
	score += len(groupByRe.FindAllString(sql, -1))
	if len(sql) > 4096 {
		score += 2
	}

	switch {
	case score >= 6:
		return ComplexityComplex
	case score >= 2:
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}

// Context carries everything a rule may consult. Rules read it, never
// mutate it.
type Context struct {
	Profile    *profile.Profile
	Tree       *tree.ExecutionTree
	Thresholds *DynamicThresholds
	Variables  map[string]string
	QueryType  QueryType
	Complexity QueryComplexity
}

// Variable returns a live session variable, or "" when variables were not
// supplied.
func (c *Context) Variable(name string) string {
	if c.Variables == nil {
		return ""
	}
	return c.Variables[name]
}
