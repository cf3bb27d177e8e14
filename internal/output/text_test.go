package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olapctl/srplan/internal/analyzer"
	"github.com/olapctl/srplan/internal/comparator"
)

func TestRenderAnalysisText(t *testing.T) {
	result := analyzer.AnalysisResult{
		QueryID:   "q-1",
		TotalTime: 2 * time.Second,
		Hotspots: []analyzer.Hotspot{
			{Name: "AGGREGATE", PlanNodeID: 1, TotalTime: 1900 * time.Millisecond, TimePercentage: 95},
		},
		Diagnostics: []analyzer.Diagnostic{
			{
				RuleID:      "AGG_DATA_SKEW",
				Severity:    analyzer.Warning,
				NodePath:    "AGGREGATE(plan_node_id=1)",
				Message:     "slowest instance aggregated for 1.9s",
				Reason:      "grouping keys hash unevenly",
				Suggestions: []string{"Check the grouping key for hot values"},
				Parameters: []analyzer.ParameterSuggestion{
					{Name: "streaming_preaggregation_mode", CurrentValue: "auto", SuggestedValue: "force_streaming"},
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderAnalysisText(&buf, result))
	out := buf.String()

	assert.Contains(t, out, "q-1")
	assert.Contains(t, out, "AGGREGATE (id=1)")
	assert.Contains(t, out, "WARNING")
	assert.Contains(t, out, "AGGREGATE(plan_node_id=1)")
	assert.Contains(t, out, "Check the grouping key")
	assert.Contains(t, out, "streaming_preaggregation_mode = force_streaming (currently auto)")
}

func TestRenderAnalysisText_NoIssues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderAnalysisText(&buf, analyzer.AnalysisResult{TotalTime: time.Second}))
	assert.Contains(t, buf.String(), "No issues found.")
}

func TestRenderComparisonText(t *testing.T) {
	result := comparator.ComparisonResult{
		Summary: comparator.Summary{
			OldTotalTime:  2 * time.Second,
			NewTotalTime:  4 * time.Second,
			TimePct:       100,
			TimeDir:       comparator.Regressed,
			NodesModified: 1,
			Verdict:       "same plan, total time regressed 100.0%",
		},
		Deltas: []comparator.NodeDelta{
			{
				PlanNodeID: 1,
				Name:       "AGGREGATE",
				ChangeType: comparator.Modified,
				OldTime:    time.Second,
				NewTime:    3 * time.Second,
				TimePct:    200,
				TimeDir:    comparator.Regressed,
				OldRows:    100,
				NewRows:    100,
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderComparisonText(&buf, result))
	out := buf.String()

	assert.Contains(t, out, "AGGREGATE (id=1)")
	assert.Contains(t, out, "Verdict:")
	assert.Contains(t, out, "regressed")
}

func TestRenderComparisonText_Identical(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderComparisonText(&buf, comparator.ComparisonResult{}))
	assert.Contains(t, buf.String(), "Plans are identical.")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderJSON(&buf, map[string]int{"a": 1}))
	assert.JSONEq(t, `{"a": 1}`, buf.String())
}
