package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThresholds_Defaults(t *testing.T) {
	th := NewDynamicThresholds(nil, QueryTypeInteractive, ComplexitySimple, nil)

	assert.Equal(t, 2.0, th.SkewRatio())
	assert.Equal(t, uint64(1_000_000), th.MinSkewRows())
	assert.Equal(t, uint64(8<<30), th.OperatorMemoryLimit())
	assert.Equal(t, uint64(4<<30), th.HashTableMemoryLimit())
	assert.Equal(t, time.Second, th.MinDiagnosisTime())
}

func TestThresholds_ETLLoosensSkewAndMinimum(t *testing.T) {
	th := NewDynamicThresholds(nil, QueryTypeETL, ComplexitySimple, nil)

	assert.Equal(t, 500*time.Millisecond, th.MinDiagnosisTime())
	assert.Equal(t, 2.5, th.SkewRatio())
}

func TestThresholds_ComplexDoublesMinimum(t *testing.T) {
	th := NewDynamicThresholds(nil, QueryTypeInteractive, ComplexityComplex, nil)
	assert.Equal(t, 2*time.Second, th.MinDiagnosisTime())
}

func TestThresholds_ClusterScaling(t *testing.T) {
	info := &ClusterInfo{
		BackendCount:          10,
		MemoryPerBackendBytes: 64 << 30,
		CoresPerBackend:       32,
	}
	th := NewDynamicThresholds(info, QueryTypeInteractive, ComplexitySimple, nil)

	mem := float64(info.MemoryPerBackendBytes)
	assert.Equal(t, uint64(mem*0.15), th.OperatorMemoryLimit())
	assert.Equal(t, uint64(mem*0.10), th.HashTableMemoryLimit())
	assert.Equal(t, 2.5, th.SkewRatio())
	assert.Equal(t, uint64(2_000_000), th.MinSkewRows())
}

func TestThresholds_MemoryCeilingClamped(t *testing.T) {
	small := NewDynamicThresholds(&ClusterInfo{MemoryPerBackendBytes: 4 << 30}, QueryTypeInteractive, ComplexitySimple, nil)
	assert.Equal(t, uint64(2<<30), small.OperatorMemoryLimit())
	assert.Equal(t, uint64(1<<30), small.HashTableMemoryLimit())

	huge := NewDynamicThresholds(&ClusterInfo{MemoryPerBackendBytes: 1 << 40}, QueryTypeInteractive, ComplexitySimple, nil)
	assert.Equal(t, uint64(32<<30), huge.OperatorMemoryLimit())
	assert.Equal(t, uint64(16<<30), huge.HashTableMemoryLimit())
}

func TestThresholds_BaselineFolding(t *testing.T) {
	baseline := &Baseline{P50: 4 * time.Second, P90: 13 * time.Second, SampleCount: 10}
	th := NewDynamicThresholds(nil, QueryTypeInteractive, ComplexitySimple, baseline)

	// (1s + 4s/2) / 2
	assert.Equal(t, 1500*time.Millisecond, th.MinDiagnosisTime())
	// wide p90/p50 spread loosens skew
	assert.Equal(t, 2.5, th.SkewRatio())
}

func TestThresholds_BaselineNeedsSamples(t *testing.T) {
	baseline := &Baseline{P50: 4 * time.Second, P90: 13 * time.Second, SampleCount: 2}
	th := NewDynamicThresholds(nil, QueryTypeInteractive, ComplexitySimple, baseline)

	assert.Equal(t, time.Second, th.MinDiagnosisTime())
	assert.Equal(t, 2.0, th.SkewRatio())
}

func TestThresholds_Metadata(t *testing.T) {
	th := NewDynamicThresholds(nil, QueryTypeInteractive, ComplexitySimple, nil)
	meta := th.Metadata()

	assert.Equal(t, "2.00", meta["skew_ratio"])
	assert.Equal(t, "1000000", meta["min_skew_rows"])
	assert.Equal(t, "1s", meta["min_diagnosis_time"])
}

func TestThresholds_Parameter(t *testing.T) {
	th := NewDynamicThresholds(nil, QueryTypeInteractive, ComplexitySimple, nil)

	p := th.Parameter(map[string]string{"spill_mode": "false"}, "spill_mode", "auto")
	assert.Equal(t, "spill_mode", p.Name)
	assert.Equal(t, "false", p.CurrentValue)
	assert.Equal(t, "auto", p.SuggestedValue)

	p = th.Parameter(nil, "spill_mode", "auto")
	assert.Equal(t, "", p.CurrentValue)
}
