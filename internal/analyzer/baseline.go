package analyzer

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Baseline supplies historical percentile timings for queries of one
// complexity class on one cluster.
type Baseline struct {
	ClusterID   string
	Complexity  QueryComplexity
	P50         time.Duration
	P90         time.Duration
	P99         time.Duration
	SampleCount int
}

// BaselineProvider is the read side the analyzer consults. The store is
// refreshed by the collaborator that runs analyses.
type BaselineProvider interface {
	Lookup(clusterID string, complexity QueryComplexity) (*Baseline, bool)
}

const baselineMaxSamples = 256

type baselineEntry struct {
	mu      sync.Mutex
	samples []time.Duration
}

// BaselineStore is a bounded, process-wide collection of observed query
// times keyed by (cluster id, complexity). The LRU cache is internally
// synchronized, so inserts for one key never block reads for another.
type BaselineStore struct {
	cache *lru.Cache[string, *baselineEntry]
}

func NewBaselineStore(maxKeys int) *BaselineStore {
	cache, _ := lru.New[string, *baselineEntry](maxKeys)
	return &BaselineStore{cache: cache}
}

func baselineKey(clusterID string, complexity QueryComplexity) string {
	return clusterID + "/" + complexity.String()
}

// Observe records one completed query's total time.
func (s *BaselineStore) Observe(clusterID string, complexity QueryComplexity, total time.Duration) {
	key := baselineKey(clusterID, complexity)
	entry, ok := s.cache.Get(key)
	if !ok {
		entry = &baselineEntry{}
		if prev, found, _ := s.cache.PeekOrAdd(key, entry); found {
			entry = prev
		}
	}

	entry.mu.Lock()
	entry.samples = append(entry.samples, total)
	if len(entry.samples) > baselineMaxSamples {
		entry.samples = entry.samples[len(entry.samples)-baselineMaxSamples:]
	}
	entry.mu.Unlock()
}

// Lookup computes percentiles over the retained samples.
func (s *BaselineStore) Lookup(clusterID string, complexity QueryComplexity) (*Baseline, bool) {
	entry, ok := s.cache.Get(baselineKey(clusterID, complexity))
	if !ok {
		return nil, false
	}

	entry.mu.Lock()
	samples := make([]time.Duration, len(entry.samples))
	copy(samples, entry.samples)
	entry.mu.Unlock()

	if len(samples) == 0 {
		return nil, false
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	return &Baseline{
		ClusterID:   clusterID,
		Complexity:  complexity,
		P50:         percentile(samples, 0.50),
		P90:         percentile(samples, 0.90),
		P99:         percentile(samples, 0.99),
		SampleCount: len(samples),
	}, true
}

func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}
