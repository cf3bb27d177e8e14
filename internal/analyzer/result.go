package analyzer

import "time"

type Severity int

const (
	Info     Severity = 0
	Warning  Severity = 1
	Critical Severity = 2
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParameterSuggestion recommends a concrete value for a session variable.
// CurrentValue is empty when live variables were not supplied.
type ParameterSuggestion struct {
	Name           string
	CurrentValue   string
	SuggestedValue string
}

// Diagnostic is one rule-engine finding. Never mutated after creation.
type Diagnostic struct {
	RuleID      string
	RuleName    string
	Severity    Severity
	NodePath    string
	PlanNodeID  int
	Message     string
	Reason      string
	Suggestions []string
	Parameters  []ParameterSuggestion
	Thresholds  map[string]string
}

// Hotspot is one entry of the per-query time ranking.
type Hotspot struct {
	Name           string
	PlanNodeID     int
	TotalTime      time.Duration
	TimePercentage float64
}

type AnalysisResult struct {
	QueryID     string
	QueryType   QueryType
	Complexity  QueryComplexity
	TotalTime   time.Duration
	BaseTime    time.Duration
	Hotspots    []Hotspot
	Diagnostics []Diagnostic
}
