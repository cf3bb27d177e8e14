package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/olapctl/srplan/internal/profile"
)

const (
	historyMaxRuns      = 32
	historyMinPriorRuns = 3
	regressionRatio     = 1.5
)

type historyEntry struct {
	mu   sync.Mutex
	runs []time.Duration
}

// QueryHistory retains recent total times per query fingerprint so a run
// can be compared against the same query's own history. Process-wide and
// bounded; the LRU cache is internally synchronized.
type QueryHistory struct {
	cache *lru.Cache[uint64, *historyEntry]
}

func NewQueryHistory(maxQueries int) *QueryHistory {
	cache, _ := lru.New[uint64, *historyEntry](maxQueries)
	return &QueryHistory{cache: cache}
}

var (
	sqlStringLitRe  = regexp.MustCompile(`'(?:[^']|'')*'`)
	sqlNumberLitRe  = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	sqlWhitespaceRe = regexp.MustCompile(`\s+`)
)

// Fingerprint normalizes literals and whitespace out of the SQL text so
// parameterized re-runs of the same statement hash alike.
func Fingerprint(sql string) uint64 {
	s := strings.ToLower(sql)
	s = sqlStringLitRe.ReplaceAllString(s, "?")
	s = sqlNumberLitRe.ReplaceAllString(s, "?")
	s = sqlWhitespaceRe.ReplaceAllString(s, " ")
	return xxhash.Sum64String(strings.TrimSpace(s))
}

// RecordAndDetect appends the profile's total time to the query's history
// and reports a regression diagnostic when the new run is markedly slower
// than the query's own recent median.
func (h *QueryHistory) RecordAndDetect(p *profile.Profile) *Diagnostic {
	if strings.TrimSpace(p.Summary.SQL) == "" {
		return nil
	}

	fp := Fingerprint(p.Summary.SQL)
	entry, ok := h.cache.Get(fp)
	if !ok {
		entry = &historyEntry{}
		if prev, found, _ := h.cache.PeekOrAdd(fp, entry); found {
			entry = prev
		}
	}

	latest := p.Summary.TotalTime

	entry.mu.Lock()
	prior := make([]time.Duration, len(entry.runs))
	copy(prior, entry.runs)
	entry.runs = append(entry.runs, latest)
	if len(entry.runs) > historyMaxRuns {
		entry.runs = entry.runs[len(entry.runs)-historyMaxRuns:]
	}
	entry.mu.Unlock()

	if len(prior) < historyMinPriorRuns {
		return nil
	}
	med := medianDuration(prior)
	if med <= 0 || float64(latest) <= regressionRatio*float64(med) {
		return nil
	}

	return &Diagnostic{
		RuleID:     "QUERY_REGRESSION",
		RuleName:   "query performance regression",
		Severity:   Warning,
		NodePath:   "QUERY",
		PlanNodeID: -1,
		Message:    fmt.Sprintf("query ran in %s, %.1fx its recent median of %s over %d runs", latest, float64(latest)/float64(med), med, len(prior)),
		Reason:     "the same statement has been consistently faster in its recent history",
		Suggestions: []string{
			"Check for data growth or tablet compaction lag on the involved tables",
			"Compare this profile against a recent fast run with `srplan compare`",
		},
	}
}

func medianDuration(runs []time.Duration) time.Duration {
	sorted := make([]time.Duration, len(runs))
	copy(sorted, runs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
