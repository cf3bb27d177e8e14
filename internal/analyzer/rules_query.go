package analyzer

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	selectStarRe = regexp.MustCompile(`(?is)\bselect\s+(?:\w+\s*\.\s*)?\*`)
	whereRe      = regexp.MustCompile(`(?i)\bwhere\b`)
	limitRe      = regexp.MustCompile(`(?i)\blimit\s+\d`)
)

// queryShapeRules look only at the SQL text. They are skipped for ETL
// statements where full reads and large outputs are the point.
var queryShapeRules = []QueryRule{
	{
		ID:   "QUERY_SELECT_STAR",
		Name: "query selects all columns",
		Evaluate: func(ctx *Context) *Diagnostic {
			if !selectStarRe.MatchString(ctx.Profile.Summary.SQL) {
				return nil
			}
			return &Diagnostic{
				Severity: Info,
				Message:  "statement uses SELECT *",
				Reason:   "columnar storage only pays off when unneeded columns stay unread",
				Suggestions: []string{
					"List only the columns the client consumes",
				},
			}
		},
	},
	{
		ID:        "QUERY_NO_PREDICATE",
		Name:      "query has no WHERE clause",
		SkipTypes: []QueryType{QueryTypeETL},
		Evaluate: func(ctx *Context) *Diagnostic {
			sql := ctx.Profile.Summary.SQL
			if sql == "" || whereRe.MatchString(sql) {
				return nil
			}
			if ctx.Profile.Summary.CumulativeScanTime < 500*time.Millisecond {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  "statement scans without any WHERE predicate",
				Reason:   "full-table reads on an interactive path rarely survive data growth",
				Suggestions: []string{
					"Filter on a partition or sort-key column",
				},
			}
		},
	},
	{
		ID:        "QUERY_MISSING_LIMIT",
		Name:      "ordered query without a LIMIT",
		SkipTypes: []QueryType{QueryTypeETL},
		Evaluate: func(ctx *Context) *Diagnostic {
			sql := ctx.Profile.Summary.SQL
			if sql == "" || limitRe.MatchString(sql) {
				return nil
			}
			if !strings.Contains(strings.ToUpper(sql), "ORDER BY") {
				return nil
			}
			return &Diagnostic{
				Severity: Info,
				Message:  "ORDER BY without LIMIT",
				Reason:   "an unbounded ordered result forces a full sort and a full transfer",
				Suggestions: []string{
					"Add a LIMIT so the sort can run as a bounded top-N",
				},
			}
		},
	},
}

// plannerRules cover frontend planning cost, which never shows up in the
// execution tree.
var plannerRules = []QueryRule{
	{
		ID:   "PLANNER_TIME_SHARE",
		Name: "planning consumes a large share of total time",
		Evaluate: func(ctx *Context) *Diagnostic {
			plan := ctx.Profile.Planner.TotalTime
			total := ctx.Profile.Summary.TotalTime
			if plan <= 0 || total <= 0 {
				return nil
			}
			pct := 100 * float64(plan) / float64(total)
			if pct < 20 || plan < 200*time.Millisecond {
				return nil
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  fmt.Sprintf("planning took %s, %.1f%% of total time", plan, pct),
				Reason:   "the frontend spends longer deciding how to run the query than running it",
				Suggestions: []string{
					"Refresh statistics so the optimizer converges faster",
					"Simplify deeply nested views if the plan space is large",
				},
			}
		},
	},
	{
		ID:   "HMS_LATENCY",
		Name: "metastore calls slow down planning",
		Evaluate: func(ctx *Context) *Diagnostic {
			hms := ctx.Profile.Planner.HMS
			if hms.TotalTime < 500*time.Millisecond {
				return nil
			}
			slowest := ""
			var slowestTime time.Duration
			for name, call := range hms.Calls {
				if call.Time > slowestTime {
					slowest, slowestTime = name, call.Time
				}
			}
			msg := fmt.Sprintf("metastore calls took %s during planning", hms.TotalTime)
			if slowest != "" {
				msg += fmt.Sprintf(", led by %s at %s", slowest, slowestTime)
			}
			return &Diagnostic{
				Severity: Warning,
				Message:  msg,
				Reason:   "external-table planning round-trips to the Hive metastore on every query",
				Suggestions: []string{
					"Enable metadata caching for the external catalog",
					"Reduce the partition count the query touches",
				},
			}
		},
	},
}
