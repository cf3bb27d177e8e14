package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseOperatorMetrics(t *testing.T) {
	op := Operator{
		Name:       "AGGREGATE",
		PlanNodeID: 1,
		CommonMetrics: map[string]string{
			"OperatorTotalTime":          "1s",
			"__MAX_OF_OperatorTotalTime": "1s900ms",
			"__MIN_OF_OperatorTotalTime": "100ms",
			"PushRowNum":                 "2.174K (2174)",
			"__MAX_OF_PushRowNum":        "2000",
			"OperatorPeakMemoryUsage":    "64MB",
			"OperatorAllocatedMemoryUsage": "80MB",
		},
		UniqueMetrics: map[string]string{
			"HashTableMemoryUsage": "32MB",
		},
	}

	m := ParseOperatorMetrics(op, testLogger())

	assert.Equal(t, time.Second, m.TotalTime)
	assert.Equal(t, 1900*time.Millisecond, m.MaxTotalTime)
	assert.Equal(t, 100*time.Millisecond, m.MinTotalTime)
	assert.Equal(t, uint64(2174), m.PushRows)
	assert.Equal(t, uint64(2000), m.MaxPushRows)
	assert.Equal(t, uint64(64<<20), m.PeakMemoryBytes)
	assert.Equal(t, uint64(32<<20), m.HashTableMemoryBytes)
	// Peak + allocated + hash table, each counted once.
	assert.Equal(t, uint64((64+80+32)<<20), m.MemoryBytes)
}

func TestParseOperatorMetrics_MalformedValueDropsOnlyThatMetric(t *testing.T) {
	op := Operator{
		Name: "OLAP_SCAN",
		CommonMetrics: map[string]string{
			"OperatorTotalTime": "garbage",
			"ScanTime":          "400ms",
			"PushRowNum":        "50,000,000",
		},
		UniqueMetrics: map[string]string{},
	}

	m := ParseOperatorMetrics(op, testLogger())

	assert.Zero(t, m.TotalTime)
	assert.Equal(t, 400*time.Millisecond, m.ScanTime)
	assert.Equal(t, uint64(50000000), m.PushRows)
}

func TestEffectiveTotalTime_PrefersMaxOfVariant(t *testing.T) {
	m := OperatorMetrics{TotalTime: time.Second, MaxTotalTime: 3 * time.Second}
	assert.Equal(t, 3*time.Second, m.EffectiveTotalTime())

	m = OperatorMetrics{TotalTime: time.Second}
	assert.Equal(t, time.Second, m.EffectiveTotalTime())
}
