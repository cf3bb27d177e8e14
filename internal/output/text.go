package output

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/olapctl/srplan/internal/analyzer"
	"github.com/olapctl/srplan/internal/comparator"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

type textWriter struct {
	w   io.Writer
	err error
}

func (tw *textWriter) printf(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

func RenderAnalysisText(w io.Writer, result analyzer.AnalysisResult) error {
	tw := &textWriter{w: w}

	tw.printf("%s%sQuery Summary%s\n\n", colorBold, colorCyan, colorReset)
	if result.QueryID != "" {
		tw.printf("  Query ID:   %s\n", result.QueryID)
	}
	tw.printf("  Type:       %s (%s)\n", result.QueryType, result.Complexity)
	tw.printf("  Total Time: %s\n", result.TotalTime)
	tw.printf("\n")

	if len(result.Hotspots) > 0 {
		tw.printf("%s%sHotspots%s\n\n", colorBold, colorCyan, colorReset)
		for _, h := range result.Hotspots {
			tw.printf("  %6.2f%%  %s%s\n", h.TimePercentage, nodeLabel(h.Name, h.PlanNodeID), formatHotspotTime(h.TotalTime))
		}
		tw.printf("\n")
	}

	if len(result.Diagnostics) == 0 {
		tw.printf("%s%sNo issues found.%s\n", colorBold, colorGreen, colorReset)
		return tw.err
	}

	tw.printf("%s%sDiagnostics (%d)%s\n\n", colorBold, colorCyan, len(result.Diagnostics), colorReset)

	for i, d := range result.Diagnostics {
		label, color := severityFormat(d.Severity)
		tw.printf("  %s%-8s%s %s[%s]%s %s\n", color, label, colorReset, colorDim, d.NodePath, colorReset, d.Message)
		if d.Reason != "" {
			tw.printf("           %s%s%s\n", colorDim, d.Reason, colorReset)
		}
		for _, s := range d.Suggestions {
			tw.printf("           %s→ %s%s\n", colorDim, s, colorReset)
		}
		for _, p := range d.Parameters {
			if p.CurrentValue != "" {
				tw.printf("           %s→ set %s = %s (currently %s)%s\n", colorDim, p.Name, p.SuggestedValue, p.CurrentValue, colorReset)
			} else {
				tw.printf("           %s→ set %s = %s%s\n", colorDim, p.Name, p.SuggestedValue, colorReset)
			}
		}
		if i < len(result.Diagnostics)-1 {
			tw.printf("\n")
		}
	}

	return tw.err
}

func nodeLabel(name string, planNodeID int) string {
	if planNodeID >= 0 {
		return fmt.Sprintf("%s (id=%d)", name, planNodeID)
	}
	return name
}

func formatHotspotTime(d time.Duration) string {
	return fmt.Sprintf("  %s%s%s", colorDim, d, colorReset)
}

func severityFormat(s analyzer.Severity) (string, string) {
	switch s {
	case analyzer.Critical:
		return "CRITICAL", colorRed
	case analyzer.Warning:
		return "WARNING", colorYellow
	default:
		return "INFO", colorCyan
	}
}

func RenderComparisonText(w io.Writer, result comparator.ComparisonResult) error {
	tw := &textWriter{w: w}
	s := result.Summary

	tw.printf("%s%sSummary%s\n\n", colorBold, colorCyan, colorReset)
	tw.printf("  Total Time:    %s\n", formatDurationDelta(s.OldTotalTime, s.NewTotalTime, s.TimePct, s.TimeDir))
	if s.OldPlanningTime > 0 || s.NewPlanningTime > 0 {
		tw.printf("  Planning Time: %s\n", formatDurationDelta(s.OldPlanningTime, s.NewPlanningTime, pct(s.OldPlanningTime, s.NewPlanningTime), s.PlanningDir))
	}
	if s.OldPeakMemory > 0 || s.NewPeakMemory > 0 {
		tw.printf("  Peak Memory:   %s → %s\n", humanize.IBytes(s.OldPeakMemory), humanize.IBytes(s.NewPeakMemory))
	}
	tw.printf("\n")

	changes := s.NodesAdded + s.NodesRemoved + s.NodesModified + s.NodesTypeChanged
	if changes == 0 {
		tw.printf("%s%sPlans are identical.%s\n", colorBold, colorGreen, colorReset)
		return tw.err
	}

	tw.printf("  Changes: %d modified, %d type changed, %d added, %d removed\n\n",
		s.NodesModified, s.NodesTypeChanged, s.NodesAdded, s.NodesRemoved)

	tw.printf("%s%sNode Details%s\n\n", colorBold, colorCyan, colorReset)
	for _, d := range result.Deltas {
		tw.renderDelta(d)
	}

	tw.printf("\n%s%sVerdict:%s %s\n", colorBold, colorCyan, colorReset, s.Verdict)

	return tw.err
}

func (tw *textWriter) renderDelta(d comparator.NodeDelta) {
	const indent = "  "

	switch d.ChangeType {
	case comparator.NoChange:
		return
	case comparator.Added:
		tw.printf("%s%s+ %s%s (time=%s)\n", indent, colorGreen, nodeLabel(d.Name, d.PlanNodeID), colorReset, d.NewTime)
		return
	case comparator.Removed:
		tw.printf("%s%s- %s%s (time=%s)\n", indent, colorRed, nodeLabel(d.Name, d.PlanNodeID), colorReset, d.OldTime)
		return
	case comparator.TypeChanged:
		tw.printf("%s%s~ %s → %s%s (id=%d)\n", indent, colorYellow, d.OldName, d.NewName, colorReset, d.PlanNodeID)
	case comparator.Modified:
		tw.printf("%s%s~ %s%s\n", indent, colorYellow, nodeLabel(d.Name, d.PlanNodeID), colorReset)
	}

	tw.renderTimeLine(indent, d)
	if d.OldRows != d.NewRows {
		tw.printf("%s  rows: %s → %s (%+.1f%%)\n", indent, humanize.Comma(int64(d.OldRows)), humanize.Comma(int64(d.NewRows)), d.RowsPct)
	}
	if d.OldMemory != d.NewMemory {
		tw.printf("%s  memory: %s → %s\n", indent, humanize.IBytes(d.OldMemory), humanize.IBytes(d.NewMemory))
	}
	if skewMoved(d) {
		tw.printf("%s  %sskew: %.1fx → %.1fx%s\n", indent, colorYellow, d.OldSkew, d.NewSkew, colorReset)
	}
}

func (tw *textWriter) renderTimeLine(indent string, d comparator.NodeDelta) {
	color := dirColor(d.TimeDir)
	arrow := dirArrow(d.TimeDir)
	tw.printf("%s  time: %s → %s%s %s (%+.1f%%)%s\n", indent, d.OldTime, color, d.NewTime, arrow, d.TimePct, colorReset)
}

func skewMoved(d comparator.NodeDelta) bool {
	diff := d.NewSkew - d.OldSkew
	if diff < 0 {
		diff = -diff
	}
	return diff > 0.5
}

func dirColor(dir comparator.Direction) string {
	switch dir {
	case comparator.Improved:
		return colorGreen
	case comparator.Regressed:
		return colorRed
	default:
		return ""
	}
}

func dirArrow(dir comparator.Direction) string {
	switch dir {
	case comparator.Improved:
		return "↓"
	case comparator.Regressed:
		return "↑"
	default:
		return "="
	}
}

func formatDurationDelta(old, new time.Duration, pctVal float64, dir comparator.Direction) string {
	color := dirColor(dir)
	arrow := dirArrow(dir)
	return fmt.Sprintf("%s → %s%s %s (%+.1f%%)%s", old, color, new, arrow, pctVal, colorReset)
}

func pct(old, new time.Duration) float64 {
	if old == 0 {
		if new == 0 {
			return 0
		}
		return 100
	}
	return 100 * float64(new-old) / float64(old)
}
