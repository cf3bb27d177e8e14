package analyzer

import (
	"fmt"
	"time"
)

const (
	defaultSkewRatio   = 2.0
	defaultMinSkewRows = uint64(1_000_000)

	// Memory ceilings are a share of per-backend memory, clamped to an
	// absolute band.
	operatorMemoryShare  = 0.15
	operatorMemoryFloor  = uint64(2 << 30)
	operatorMemoryCeil   = uint64(32 << 30)
	hashTableMemoryShare = 0.10
	hashTableMemoryFloor = uint64(1 << 30)
	hashTableMemoryCeil  = uint64(16 << 30)

	defaultOperatorMemoryLimit  = uint64(8 << 30)
	defaultHashTableMemoryLimit = uint64(4 << 30)

	// Queries faster than the minimum diagnosis time are skipped entirely
	// to avoid noise on trivial queries. ETL shapes tolerate a lower
	// minimum than interactive ones.
	defaultMinDiagnosisTime = time.Second
	etlMinDiagnosisTime     = 500 * time.Millisecond

	baselineMinSamples = 5
)

// DynamicThresholds is the per-analysis-run configuration derived from
// cluster size, query shape and an optional historical baseline. Never
// persisted; recomputed on every analysis.
type DynamicThresholds struct {
	skewRatio        float64
	minSkewRows      uint64
	operatorMemLimit uint64
	hashTableLimit   uint64
	minDiagnosisTime time.Duration
}

func NewDynamicThresholds(info *ClusterInfo, queryType QueryType, complexity QueryComplexity, baseline *Baseline) *DynamicThresholds {
	t := &DynamicThresholds{
		skewRatio:        defaultSkewRatio,
		minSkewRows:      defaultMinSkewRows,
		operatorMemLimit: defaultOperatorMemoryLimit,
		hashTableLimit:   defaultHashTableMemoryLimit,
		minDiagnosisTime: defaultMinDiagnosisTime,
	}

	if queryType == QueryTypeETL {
		t.minDiagnosisTime = etlMinDiagnosisTime
		t.skewRatio += 0.5
	}
	if complexity == ComplexityComplex {
		t.minDiagnosisTime *= 2
	}

	if info != nil {
		if info.MemoryPerBackendBytes > 0 {
			t.operatorMemLimit = clampBytes(uint64(float64(info.MemoryPerBackendBytes)*operatorMemoryShare), operatorMemoryFloor, operatorMemoryCeil)
			t.hashTableLimit = clampBytes(uint64(float64(info.MemoryPerBackendBytes)*hashTableMemoryShare), hashTableMemoryFloor, hashTableMemoryCeil)
		}
		// High parallelism makes instance-to-instance variance normal.
		if info.CoresPerBackend >= 32 {
			t.skewRatio += 0.5
		}
		if info.BackendCount >= 10 {
			t.minSkewRows *= 2
		}
	}

	if baseline != nil && baseline.SampleCount >= baselineMinSamples {
		// Pull the minimum toward the cluster's own history instead of
		// the static default.
		if baseline.P50 > 0 {
			t.minDiagnosisTime = (t.minDiagnosisTime + baseline.P50/2) / 2
		}
		// A historically wide p90/p50 spread means variance is expected.
		if baseline.P50 > 0 && baseline.P90 >= 3*baseline.P50 {
			t.skewRatio += 0.5
		}
	}

	return t
}

func (t *DynamicThresholds) SkewRatio() float64              { return t.skewRatio }
func (t *DynamicThresholds) MinSkewRows() uint64             { return t.minSkewRows }
func (t *DynamicThresholds) OperatorMemoryLimit() uint64     { return t.operatorMemLimit }
func (t *DynamicThresholds) HashTableMemoryLimit() uint64    { return t.hashTableLimit }
func (t *DynamicThresholds) MinDiagnosisTime() time.Duration { return t.minDiagnosisTime }

// Metadata renders the active thresholds for attachment to a Diagnostic.
func (t *DynamicThresholds) Metadata() map[string]string {
	return map[string]string{
		"skew_ratio":              fmt.Sprintf("%.2f", t.skewRatio),
		"min_skew_rows":           fmt.Sprintf("%d", t.minSkewRows),
		"operator_memory_limit":   fmt.Sprintf("%d", t.operatorMemLimit),
		"hash_table_memory_limit": fmt.Sprintf("%d", t.hashTableLimit),
		"min_diagnosis_time":      t.minDiagnosisTime.String(),
	}
}

// Parameter builds a suggestion for a named tunable, carrying its current
// value when the live session variables are available.
func (t *DynamicThresholds) Parameter(variables map[string]string, name, suggested string) ParameterSuggestion {
	return ParameterSuggestion{
		Name:           name,
		CurrentValue:   variables[name],
		SuggestedValue: suggested,
	}
}

func clampBytes(v, floor, ceil uint64) uint64 {
	if v < floor {
		return floor
	}
	if v > ceil {
		return ceil
	}
	return v
}
