package goose

import (
	"fmt"
	"sort"
	"sync"

	"github.com/LionsAd/goose/pkg/logging"
)

// endpointKey formats the Aggregator's merge key deterministically per
// spec.md §4.3.
func endpointKey(method, name string) string {
	return method + " " + name
}

// EndpointStats holds the merged counters, histograms, and response-time
// summary for one (method, name) key.
type EndpointStats struct {
	Method      string
	Name        string
	Success     int64
	Failure     int64
	StatusCodes map[int]int64 // nil if status-code tracking disabled

	rtHistogram map[int]int64 // bucketed response-time ms -> count
	MinMs       int64
	MaxMs       int64
	SumMs       int64
	Count       int64 // observations backing Min/Max/Sum/mean
}

func newEndpointStats(method, name string, trackStatus bool) *EndpointStats {
	es := &EndpointStats{
		Method:      method,
		Name:        name,
		rtHistogram: make(map[int]int64),
		MinMs:       -1,
	}
	if trackStatus {
		es.StatusCodes = make(map[int]int64)
	}
	return es
}

// Mean returns the average response time in milliseconds, computed from
// the histogram's running sum/count (spec.md §4.7 treats this as
// equivalent to sum/count).
func (es *EndpointStats) Mean() float64 {
	if es.Count == 0 {
		return 0
	}
	return float64(es.SumMs) / float64(es.Count)
}

// Requests returns the total observed request count for this endpoint.
func (es *EndpointStats) Requests() int64 { return es.Success + es.Failure }

// rtBucket coarsens a raw response-time value per spec.md §4.3's bucket
// rule: full resolution under 100ms, rounded to the nearest 10ms under
// 1s, nearest 100ms under 10s, nearest 1000ms beyond that. This bounds
// histogram cardinality while keeping percentile error within one bucket.
func rtBucket(v int64) int {
	switch {
	case v < 100:
		return int(v)
	case v < 1000:
		return int(roundTo(v, 10))
	case v < 10000:
		return int(roundTo(v, 100))
	default:
		return int(roundTo(v, 1000))
	}
}

func roundTo(v, step int64) int64 {
	return ((v + step/2) / step) * step
}

// recordNormal merges a non-update RequestEvent's outcome into the
// endpoint's counters and histograms.
func (es *EndpointStats) recordNormal(ev *RequestEvent) {
	if ev.Success {
		es.Success++
	} else {
		es.Failure++
	}

	bucket := rtBucket(ev.ResponseTimeMs)
	es.rtHistogram[bucket]++

	if es.MinMs < 0 || ev.ResponseTimeMs < es.MinMs {
		es.MinMs = ev.ResponseTimeMs
	}
	if ev.ResponseTimeMs > es.MaxMs {
		es.MaxMs = ev.ResponseTimeMs
	}
	es.SumMs += ev.ResponseTimeMs
	es.Count++

	if es.StatusCodes != nil {
		es.StatusCodes[ev.StatusCode]++
	}
}

// recordUpdate applies an update event's reclassification per spec.md
// §4.3: flips success/failure counts without touching the histograms.
// Counts are clamped at zero and a clamp is logged as a caller-bug
// warning rather than aborting the run (spec.md §9 open question (a)).
func (es *EndpointStats) recordUpdate(ev *RequestEvent, logger *logging.Logger) {
	if ev.Success {
		es.Success++
		es.Failure = clampDecrement(es.Failure, logger, es.Method, es.Name)
	} else {
		es.Failure++
		es.Success = clampDecrement(es.Success, logger, es.Method, es.Name)
	}
}

func clampDecrement(v int64, logger *logging.Logger, method, name string) int64 {
	if v <= 0 {
		if logger != nil {
			logger.Warn("update event would decrement a count below zero; clamping at zero", map[string]interface{}{
				"method": method,
				"name":   name,
			})
		}
		return 0
	}
	return v - 1
}

// percentile walks the histogram's cumulative count to find the bucket
// at or above the requested fraction, tie-breaking to the lower bucket
// per spec.md §4.3.
func (es *EndpointStats) percentile(p float64) int64 {
	if es.Count == 0 {
		return 0
	}

	buckets := make([]int, 0, len(es.rtHistogram))
	for b := range es.rtHistogram {
		buckets = append(buckets, b)
	}
	sort.Ints(buckets)

	target := p * float64(es.Count)
	var cumulative int64
	for _, b := range buckets {
		cumulative += es.rtHistogram[b]
		if float64(cumulative) >= target {
			return int64(b)
		}
	}
	if len(buckets) == 0 {
		return 0
	}
	return int64(buckets[len(buckets)-1])
}

// LoadTestStats is the full set of per-endpoint statistics for one run.
type LoadTestStats struct {
	mu             sync.Mutex
	endpoints      map[string]*EndpointStats
	DurationSecs   int64
	UsersStarted   int
	TrackStatus    bool
	TrackPercentile bool
	Hash           uint64
	logger         *logging.Logger
}

// NewLoadTestStats builds an empty stats collector.
func NewLoadTestStats(trackStatus, trackPercentile bool, hash uint64) *LoadTestStats {
	return &LoadTestStats{
		endpoints:       make(map[string]*EndpointStats),
		TrackStatus:     trackStatus,
		TrackPercentile: trackPercentile,
		Hash:            hash,
		logger:          logging.GetGlobalLogger().WithComponent("aggregator"),
	}
}

// Merge applies one RequestEvent to the aggregate stats, following the
// normal/update merge rules of spec.md §4.3.
func (s *LoadTestStats) Merge(ev *RequestEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := endpointKey(ev.Method, ev.Name)
	es, ok := s.endpoints[key]
	if !ok {
		es = newEndpointStats(ev.Method, ev.Name, s.TrackStatus)
		s.endpoints[key] = es
	}

	if ev.Update {
		es.recordUpdate(ev, s.logger)
	} else {
		es.recordNormal(ev)
	}
}

// Reset clears all accumulated stats in place (spec.md §4.6 "reset_stats").
func (s *LoadTestStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = make(map[string]*EndpointStats)
}

// Snapshot returns a stable, sorted list of per-endpoint stats copies for
// reporting, so a concurrent Merge cannot race with a report render.
func (s *LoadTestStats) Snapshot() []*EndpointStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*EndpointStats, 0, len(s.endpoints))
	for _, es := range s.endpoints {
		cp := *es
		cp.rtHistogram = make(map[int]int64, len(es.rtHistogram))
		for b, c := range es.rtHistogram {
			cp.rtHistogram[b] = c
		}
		if es.StatusCodes != nil {
			cp.StatusCodes = make(map[int]int64, len(es.StatusCodes))
			for code, c := range es.StatusCodes {
				cp.StatusCodes[code] = c
			}
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Method != out[j].Method {
			return out[i].Method < out[j].Method
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Percentiles returns the standard percentile table (50, 75, 98, 99,
// 99.9, 99.99) for one endpoint snapshot. It reads only the histogram copy
// that Snapshot placed in es, not the receiver's live data.
func (s *LoadTestStats) Percentiles(es *EndpointStats) map[string]int64 {
	return map[string]int64{
		"50%":    es.percentile(0.50),
		"75%":    es.percentile(0.75),
		"98%":    es.percentile(0.98),
		"99%":    es.percentile(0.99),
		"99.9%":  es.percentile(0.999),
		"99.99%": es.percentile(0.9999),
	}
}

// String renders a compact diagnostic summary, mostly useful in tests
// and debug logging.
func (es *EndpointStats) String() string {
	return fmt.Sprintf("%s %s: %d ok, %d fail, mean=%.1fms", es.Method, es.Name, es.Success, es.Failure, es.Mean())
}
