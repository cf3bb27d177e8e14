package profile

import (
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// OperatorMetrics is the typed view of one operator record's metric maps.
// Plain values are the engine's per-instance average; __MAX_OF_ variants are
// the pre-aggregated slowest-instance values.
type OperatorMetrics struct {
	TotalTime    time.Duration
	MaxTotalTime time.Duration
	MinTotalTime time.Duration

	NetworkTime    time.Duration
	MaxNetworkTime time.Duration
	ScanTime       time.Duration
	MaxScanTime    time.Duration

	// MemoryBytes sums every memory-bearing common metric.
	MemoryBytes          uint64
	PeakMemoryBytes      uint64
	HashTableMemoryBytes uint64

	PushRows    uint64
	MaxPushRows uint64
	PullRows    uint64
	MaxPullRows uint64
	PushChunks  uint64
	PullChunks  uint64
}

// ParseOperatorMetrics maps the recognized keys of an operator's metric maps
// into a typed record. A malformed value drops only that metric, logged at
// debug; profile dumps routinely contain metrics the parser does not model.
func ParseOperatorMetrics(op Operator, logger log.Logger) OperatorMetrics {
	var m OperatorMetrics

	get := func(key string) (string, bool) {
		if v, ok := op.CommonMetrics[key]; ok {
			return v, true
		}
		v, ok := op.UniqueMetrics[key]
		return v, ok
	}
	duration := func(key string, dst *time.Duration) {
		v, ok := get(key)
		if !ok {
			return
		}
		d, err := ParseDuration(v)
		if err != nil {
			level.Debug(logger).Log("msg", "dropping unparsable metric", "operator", op.Name, "metric", key, "value", v, "err", err)
			return
		}
		*dst = d
	}
	count := func(key string, dst *uint64) {
		v, ok := get(key)
		if !ok {
			return
		}
		n, err := ParseNumber(v)
		if err != nil || n < 0 {
			level.Debug(logger).Log("msg", "dropping unparsable metric", "operator", op.Name, "metric", key, "value", v, "err", err)
			return
		}
		*dst = uint64(n)
	}

	duration("OperatorTotalTime", &m.TotalTime)
	duration("__MAX_OF_OperatorTotalTime", &m.MaxTotalTime)
	duration("__MIN_OF_OperatorTotalTime", &m.MinTotalTime)
	duration("NetworkTime", &m.NetworkTime)
	duration("__MAX_OF_NetworkTime", &m.MaxNetworkTime)
	duration("ScanTime", &m.ScanTime)
	duration("__MAX_OF_ScanTime", &m.MaxScanTime)

	count("PushRowNum", &m.PushRows)
	count("__MAX_OF_PushRowNum", &m.MaxPushRows)
	count("PullRowNum", &m.PullRows)
	count("__MAX_OF_PullRowNum", &m.MaxPullRows)
	count("PushChunkNum", &m.PushChunks)
	count("PullChunkNum", &m.PullChunks)

	for key, value := range op.CommonMetrics {
		if !isMemoryMetric(key) {
			continue
		}
		b, err := ParseBytes(value)
		if err != nil {
			level.Debug(logger).Log("msg", "dropping unparsable metric", "operator", op.Name, "metric", key, "value", value, "err", err)
			continue
		}
		m.MemoryBytes += b
		if key == "OperatorPeakMemoryUsage" {
			m.PeakMemoryBytes = b
		}
	}
	if v, ok := op.UniqueMetrics["HashTableMemoryUsage"]; ok {
		if b, err := ParseBytes(v); err == nil {
			m.HashTableMemoryBytes = b
			m.MemoryBytes += b
		}
	}

	return m
}

// isMemoryMetric recognizes memory-bearing common metrics. Pre-aggregated
// extreme variants are excluded so the sum counts each allocation once.
func isMemoryMetric(key string) bool {
	if strings.HasPrefix(key, "__MAX_OF_") || strings.HasPrefix(key, "__MIN_OF_") {
		return false
	}
	return strings.HasSuffix(key, "MemoryUsage")
}

// EffectiveTotalTime is the slowest-instance total when the engine reported
// one, else the averaged total.
func (m OperatorMetrics) EffectiveTotalTime() time.Duration {
	if m.MaxTotalTime > 0 {
		return m.MaxTotalTime
	}
	return m.TotalTime
}

func (m OperatorMetrics) EffectiveNetworkTime() time.Duration {
	if m.MaxNetworkTime > 0 {
		return m.MaxNetworkTime
	}
	return m.NetworkTime
}

func (m OperatorMetrics) EffectiveScanTime() time.Duration {
	if m.MaxScanTime > 0 {
		return m.MaxScanTime
	}
	return m.ScanTime
}
