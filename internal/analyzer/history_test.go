package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olapctl/srplan/internal/profile"
)

func timedProfile(sql string, total time.Duration) *profile.Profile {
	return &profile.Profile{Summary: profile.Summary{SQL: sql, TotalTime: total}}
}

func TestFingerprint_NormalizesLiterals(t *testing.T) {
	a := Fingerprint("SELECT * FROM t WHERE id = 42 AND name = 'alice'")
	b := Fingerprint("select  *  from t where id = 97 and name = 'bob'")
	assert.Equal(t, a, b)

	c := Fingerprint("SELECT * FROM other WHERE id = 42")
	assert.NotEqual(t, a, c)
}

func TestFingerprint_EscapedQuotes(t *testing.T) {
	a := Fingerprint("SELECT 1 FROM t WHERE s = 'it''s'")
	b := Fingerprint("SELECT 1 FROM t WHERE s = 'plain'")
	assert.Equal(t, a, b)
}

func TestHistory_DetectsRegression(t *testing.T) {
	h := NewQueryHistory(16)
	sql := "SELECT a FROM t WHERE b = 1"

	for i := 0; i < 3; i++ {
		assert.Nil(t, h.RecordAndDetect(timedProfile(sql, time.Second)))
	}

	d := h.RecordAndDetect(timedProfile(sql, 2*time.Second))
	require.NotNil(t, d)
	assert.Equal(t, "QUERY_REGRESSION", d.RuleID)
	assert.Equal(t, Warning, d.Severity)
	assert.Equal(t, "QUERY", d.NodePath)
	assert.Equal(t, -1, d.PlanNodeID)
	assert.Contains(t, d.Message, "2.0x")
}

func TestHistory_FastRunIsQuiet(t *testing.T) {
	h := NewQueryHistory(16)
	sql := "SELECT a FROM t"

	for i := 0; i < 5; i++ {
		h.RecordAndDetect(timedProfile(sql, time.Second))
	}
	// 1.4x the median stays under the 1.5x bar.
	assert.Nil(t, h.RecordAndDetect(timedProfile(sql, 1400*time.Millisecond)))
}

func TestHistory_NeedsPriorRuns(t *testing.T) {
	h := NewQueryHistory(16)
	sql := "SELECT a FROM t"

	h.RecordAndDetect(timedProfile(sql, time.Second))
	h.RecordAndDetect(timedProfile(sql, time.Second))
	// Only two prior runs: too little history to call a regression.
	assert.Nil(t, h.RecordAndDetect(timedProfile(sql, time.Minute)))
}

func TestHistory_EmptySQLIgnored(t *testing.T) {
	h := NewQueryHistory(16)
	assert.Nil(t, h.RecordAndDetect(timedProfile("  ", time.Minute)))
}

func TestMedianDuration(t *testing.T) {
	assert.Equal(t, 2*time.Second, medianDuration([]time.Duration{3 * time.Second, time.Second, 2 * time.Second}))
	assert.Equal(t, 1500*time.Millisecond, medianDuration([]time.Duration{time.Second, 2 * time.Second}))
}
