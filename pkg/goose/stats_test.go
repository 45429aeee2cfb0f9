package goose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTestStatsMergeCountsAndMean(t *testing.T) {
	stats := NewLoadTestStats(false, true, 0)

	stats.Merge(&RequestEvent{Method: "GET", Name: "/", Success: true, ResponseTimeMs: 10})
	stats.Merge(&RequestEvent{Method: "GET", Name: "/", Success: true, ResponseTimeMs: 20})
	stats.Merge(&RequestEvent{Method: "GET", Name: "/", Success: false, ResponseTimeMs: 30})

	snap := stats.Snapshot()
	require.Len(t, snap, 1)

	es := snap[0]
	assert.EqualValues(t, 2, es.Success)
	assert.EqualValues(t, 1, es.Failure)
	assert.EqualValues(t, 3, es.Requests())
	assert.InDelta(t, 20.0, es.Mean(), 0.001)
	assert.EqualValues(t, 10, es.MinMs)
	assert.EqualValues(t, 30, es.MaxMs)
}

func TestLoadTestStatsUpdateEventReclassifies(t *testing.T) {
	stats := NewLoadTestStats(false, false, 0)

	stats.Merge(&RequestEvent{Method: "POST", Name: "/login", Success: false, ResponseTimeMs: 5})
	stats.Merge(&RequestEvent{Method: "POST", Name: "/login", Success: true, Update: true})

	snap := stats.Snapshot()
	require.Len(t, snap, 1)
	assert.EqualValues(t, 1, snap[0].Success)
	assert.EqualValues(t, 0, snap[0].Failure)
}

func TestLoadTestStatsUpdateEventClampsAtZero(t *testing.T) {
	stats := NewLoadTestStats(false, false, 0)

	// No prior failure recorded, so reclassifying to success would
	// decrement Failure below zero; it must clamp at zero instead.
	stats.Merge(&RequestEvent{Method: "GET", Name: "/", Success: true, Update: true})

	snap := stats.Snapshot()
	require.Len(t, snap, 1)
	assert.EqualValues(t, 1, snap[0].Success)
	assert.EqualValues(t, 0, snap[0].Failure)
}

func TestLoadTestStatsResetClearsEndpoints(t *testing.T) {
	stats := NewLoadTestStats(false, false, 0)
	stats.Merge(&RequestEvent{Method: "GET", Name: "/", Success: true})
	require.Len(t, stats.Snapshot(), 1)

	stats.Reset()
	assert.Empty(t, stats.Snapshot())
}

func TestRTBucketCoarsening(t *testing.T) {
	assert.Equal(t, 42, rtBucket(42))
	assert.Equal(t, 500, rtBucket(497))
	assert.Equal(t, 5000, rtBucket(4950))
	assert.Equal(t, 15000, rtBucket(15499))
}

func TestPercentileTieBreaksLow(t *testing.T) {
	stats := NewLoadTestStats(false, true, 0)
	for i := 0; i < 10; i++ {
		stats.Merge(&RequestEvent{Method: "GET", Name: "/", Success: true, ResponseTimeMs: 10})
	}
	for i := 0; i < 10; i++ {
		stats.Merge(&RequestEvent{Method: "GET", Name: "/", Success: true, ResponseTimeMs: 20})
	}

	snap := stats.Snapshot()
	require.Len(t, snap, 1)
	p := stats.Percentiles(snap[0])
	assert.EqualValues(t, 10, p["50%"])
	assert.EqualValues(t, 20, p["99%"])
}

func TestStatusCodeTrackingOptIn(t *testing.T) {
	stats := NewLoadTestStats(true, false, 0)
	stats.Merge(&RequestEvent{Method: "GET", Name: "/", Success: true, StatusCode: 200})

	snap := stats.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(1), snap[0].StatusCodes[200])

	stats2 := NewLoadTestStats(false, false, 0)
	stats2.Merge(&RequestEvent{Method: "GET", Name: "/", Success: true, StatusCode: 200})
	assert.Nil(t, stats2.Snapshot()[0].StatusCodes)
}
