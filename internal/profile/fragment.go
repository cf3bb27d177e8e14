package profile

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	fragmentHeaderRe = regexp.MustCompile(`^Fragment\s+(\d+):$`)
	pipelineHeaderRe = regexp.MustCompile(`^Pipeline\s+\(id=(\d+)\):$`)
	operatorHeaderRe = regexp.MustCompile(`^([A-Z][A-Z0-9_]*)(?:\s+\(plan_node_id=(\d+)\))?:$`)
)

// ExtractAllFragments walks the Fragment N -> Pipeline (id=K) -> OPERATOR
// nesting of the execution listing. A malformed operator block is skipped,
// never fatal.
func ExtractAllFragments(text string) []Fragment {
	lines := strings.Split(text, "\n")

	type header struct {
		idx    int
		indent int
		id     int
	}
	var headers []header
	for i, line := range lines {
		m := fragmentHeaderRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		id, _ := strconv.Atoi(m[1])
		headers = append(headers, header{idx: i, indent: indentOf(line), id: id})
	}

	var fragments []Fragment
	for i, h := range headers {
		end := len(lines)
		for _, next := range headers[i+1:] {
			if next.indent <= h.indent {
				end = next.idx
				break
			}
		}
		fragments = append(fragments, parseFragment(h.id, lines[h.idx+1:end]))
	}
	return fragments
}

func parseFragment(id int, lines []string) Fragment {
	f := Fragment{ID: id, Metrics: make(map[string]string)}

	pipelineStarts := headerIndices(lines, pipelineHeaderRe)

	bodyEnd := len(lines)
	if len(pipelineStarts) > 0 {
		bodyEnd = pipelineStarts[0]
	}
	for k, v := range parseBulletFields(lines[:bodyEnd]) {
		f.Metrics[k] = v
	}

	if v, ok := f.Metrics["BackendAddresses"]; ok {
		f.BackendAddresses = splitCommaList(v)
	}
	if v, ok := f.Metrics["InstanceIds"]; ok {
		f.InstanceIDs = splitCommaList(v)
	}

	for i, start := range pipelineStarts {
		end := len(lines)
		if i+1 < len(pipelineStarts) {
			end = pipelineStarts[i+1]
		}
		m := pipelineHeaderRe.FindStringSubmatch(strings.TrimSpace(lines[start]))
		pid, _ := strconv.Atoi(m[1])
		f.Pipelines = append(f.Pipelines, parsePipeline(pid, lines[start+1:end]))
	}
	return f
}

func headerIndices(lines []string, re *regexp.Regexp) []int {
	var idxs []int
	for i, line := range lines {
		if re.MatchString(strings.TrimSpace(line)) {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

func parsePipeline(id int, lines []string) Pipeline {
	p := Pipeline{ID: id, Metrics: make(map[string]string)}

	// Operator headers sit at one indent level; deeper uppercase category
	// headers inside metric blocks must not split an operator.
	opStarts := headerIndices(lines, operatorHeaderRe)
	if len(opStarts) > 0 {
		opIndent := indentOf(lines[opStarts[0]])
		filtered := opStarts[:0]
		for _, idx := range opStarts {
			if indentOf(lines[idx]) <= opIndent {
				filtered = append(filtered, idx)
			}
		}
		opStarts = filtered
	}

	bodyEnd := len(lines)
	if len(opStarts) > 0 {
		bodyEnd = opStarts[0]
	}
	for k, v := range parseBulletFields(lines[:bodyEnd]) {
		p.Metrics[k] = v
	}

	for i, start := range opStarts {
		end := len(lines)
		if i+1 < len(opStarts) {
			end = opStarts[i+1]
		}
		op, ok := parseOperator(lines[start], lines[start+1:end])
		if ok {
			p.Operators = append(p.Operators, op)
		}
	}
	return p
}

func parseOperator(headerLine string, lines []string) (Operator, bool) {
	m := operatorHeaderRe.FindStringSubmatch(strings.TrimSpace(headerLine))
	if m == nil {
		return Operator{}, false
	}

	op := Operator{Name: m[1], PlanNodeID: -1}
	if m[2] != "" {
		id, err := strconv.Atoi(m[2])
		if err != nil {
			return Operator{}, false
		}
		op.PlanNodeID = id
	}

	op.CommonMetrics = flattenMetricBlock(subBlock(lines, "CommonMetrics:"))
	op.UniqueMetrics = flattenMetricBlock(subBlock(lines, "UniqueMetrics:"))
	return op, true
}

// subBlock returns the indentation-bounded block under the given header
// within an operator body.
func subBlock(lines []string, marker string) []string {
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
		return nil
	}

	var body []string
	for _, line := range lines[start+1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && indentOf(line) <= markerIndent {
			break
		}
		body = append(body, line)
	}
	return body
}

// flattenMetricBlock flattens bullet metrics into a single-level map.
// Nested category headers ("DataCache:", "ORC:") are skipped as headers but
// their children still land in the same map. __MIN_OF_* keys are noise and
// dropped, except __MIN_OF_OperatorTotalTime which instance-range reporting
// needs; __MAX_OF_* keys are retained for skew and percentage math.
func flattenMetricBlock(lines []string) map[string]string {
	metrics := make(map[string]string)
	for k, v := range parseBulletFields(lines) {
		if strings.HasPrefix(k, "__MIN_OF_") && k != "__MIN_OF_OperatorTotalTime" {
			continue
		}
		metrics[k] = v
	}
	return metrics
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
