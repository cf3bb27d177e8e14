package profile

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SectionNotFoundError reports a missing top-level profile section.
type SectionNotFoundError struct {
	Section string
}

func (e *SectionNotFoundError) Error() string {
	return fmt.Sprintf("profile section %q not found", e.Section)
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// extractSection returns the lines between the marker line and the next
// sibling-or-shallower-indented line ending in ":". The marker's own
// indentation is measured once from the line that contains it.
func extractSection(text, marker string) ([]string, error) {
	lines := strings.Split(text, "\n")

	start := -1
	markerIndent := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == marker {
			start = i
			markerIndent = indentOf(line)
			break
		}
	}
	if start < 0 {
		return nil, &SectionNotFoundError{Section: marker}
	}

	var body []string
	for _, line := range lines[start+1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && indentOf(line) <= markerIndent && strings.HasSuffix(trimmed, ":") {
			break
		}
		body = append(body, line)
	}
	return body, nil
}

var bulletFieldRe = regexp.MustCompile(`^\s*-\s+([^:]+):\s?(.*)$`)

// parseBulletFields flattens "- Key: Value" lines into a map. Nested
// category headers (bullet or bare lines ending in ":") contribute nothing
// themselves but their children still land in the same single-level map.
func parseBulletFields(lines []string) map[string]string {
	fields := make(map[string]string)
	for _, line := range lines {
		m := bulletFieldRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.TrimSpace(m[1])
		value := strings.TrimSpace(m[2])
		if value == "" {
			continue
		}
		fields[key] = value
	}
	return fields
}

// ParseSummary extracts the Summary block. TotalTime must be present for the
// block to parse successfully.
func ParseSummary(text string) (Summary, error) {
	lines, err := extractSection(text, "Summary:")
	if err != nil {
		return Summary{}, err
	}

	s := Summary{Raw: make(map[string]string)}

	for i := 0; i < len(lines); i++ {
		m := bulletFieldRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		key := strings.TrimSpace(m[1])
		value := strings.TrimSpace(m[2])

		if key == "Sql Statement" {
			sql, consumed := collectMultiLine(value, lines[i+1:])
			s.SQL = sql
			s.Raw[key] = sql
			i += consumed
			continue
		}
		s.Raw[key] = value
	}

	if v, ok := firstRaw(s.Raw, "Query ID", "QueryId"); ok {
		s.QueryID = v
	}
	s.QueryType = s.Raw["Query Type"]
	s.State = s.Raw["Query State"]

	total, ok := s.Raw["Total"]
	if !ok {
		return Summary{}, fmt.Errorf("summary: missing Total field")
	}
	s.TotalTime, err = ParseDuration(total)
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}

	s.CumulativeOperatorTime = optionalDuration(s.Raw, "QueryCumulativeOperatorTime")
	s.CumulativeScanTime = optionalDuration(s.Raw, "QueryCumulativeScanTime")
	s.CumulativeNetworkTime = optionalDuration(s.Raw, "QueryCumulativeNetworkTime")
	s.CumulativeCPUTime = optionalDuration(s.Raw, "QueryCumulativeCpuTime")
	s.ExecutionWallTime = optionalDuration(s.Raw, "QueryExecutionWallTime")
	s.PeakMemoryUsage = optionalBytes(s.Raw, "QueryPeakMemoryUsage")
	s.SumMemoryUsage = optionalBytes(s.Raw, "QuerySumMemoryUsage")
	s.SpillBytes = optionalBytes(s.Raw, "QuerySpillBytes")

	if v, ok := s.Raw["NonDefaultSessionVariables"]; ok {
		vars := make(map[string]string)
		if json.Unmarshal([]byte(v), &vars) == nil && len(vars) > 0 {
			s.NonDefaultVariables = vars
		}
	}

	return s, nil
}

// collectMultiLine gathers a multi-line field value greedily until a line
// that starts a new bulleted field, is blank, or begins a new Fragment
// block. Returns the value and how many extra lines were consumed.
func collectMultiLine(first string, rest []string) (string, int) {
	parts := []string{first}
	consumed := 0
	for _, line := range rest {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "- ") || fragmentHeaderRe.MatchString(trimmed) {
			break
		}
		parts = append(parts, trimmed)
		consumed++
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), consumed
}

var timedCallRe = regexp.MustCompile(`(\w[\w.]*)\[(\d+)\]\s+(\S+)`)

// ParsePlanner extracts the Planner block. Lines referencing the external
// metadata store ("HMS.<call>[count] duration") accumulate per call kind;
// Total[...] and Optimizer[...] lines feed the top-level planner timings.
func ParsePlanner(text string) (PlannerInfo, error) {
	lines, err := extractSection(text, "Planner:")
	if err != nil {
		return PlannerInfo{}, err
	}

	p := PlannerInfo{
		Raw: parseBulletFields(lines),
		HMS: HMSMetrics{Calls: make(map[string]HMSCall)},
	}

	for _, line := range lines {
		m := timedCallRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1]
		count, _ := strconv.Atoi(m[2])
		d, err := ParseDuration(m[3])
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(name, "HMS."):
			kind := strings.TrimPrefix(name, "HMS.")
			call := p.HMS.Calls[kind]
			call.Count += count
			call.Time += d
			p.HMS.Calls[kind] = call
			p.HMS.TotalTime += d
		case name == "Total":
			p.TotalTime += d
			p.TotalCount += count
		case name == "Optimizer":
			p.OptimizerTime += d
		}
	}

	return p, nil
}

// ParseExecution extracts the Execution block's metric fields and the
// embedded topology JSON. The JSON is located by scanning from the first
// "{" after the Topology label and tracking brace depth to the matching
// "}"; it is handed on unparsed.
func ParseExecution(text string) (ExecutionInfo, error) {
	lines, err := extractSection(text, "Execution:")
	if err != nil {
		return ExecutionInfo{}, err
	}

	info := ExecutionInfo{Raw: parseBulletFields(lines)}

	body := strings.Join(lines, "\n")
	if idx := strings.Index(body, "Topology:"); idx >= 0 {
		info.TopologyJSON = extractBraceBlock(body[idx+len("Topology:"):])
	}
	delete(info.Raw, "Topology")

	return info, nil
}

func extractBraceBlock(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func firstRaw(raw map[string]string, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v, true
		}
	}
	return "", false
}

func optionalDuration(raw map[string]string, key string) time.Duration {
	v, ok := raw[key]
	if !ok {
		return 0
	}
	d, err := ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func optionalBytes(raw map[string]string, key string) uint64 {
	v, ok := raw[key]
	if !ok {
		return 0
	}
	b, err := ParseBytes(v)
	if err != nil {
		return 0
	}
	return b
}
