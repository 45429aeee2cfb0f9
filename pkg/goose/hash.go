package goose

import (
	"fmt"
	"hash/fnv"
)

// taskSetHash computes a stable hash over the full TaskSet structure
// (names, task names, weights, sequences) per spec.md §4.6 step 4. The
// result is stored as User.TestHash and LoadTestStats.Hash; RequestEvents
// do not carry it. A plain FNV-1a digest over a deterministic textual
// serialization is sufficient here — see DESIGN.md for why no
// third-party hashing or KDF library was substituted.
func taskSetHash(taskSets []*TaskSet) uint64 {
	h := fnv.New64a()
	for _, ts := range taskSets {
		fmt.Fprintf(h, "taskset:%s:%d:%d:%d\n", ts.Name, ts.Weight, ts.MinWait, ts.MaxWait)
		for _, t := range ts.Tasks {
			fmt.Fprintf(h, "task:%s:%d:%d:%t:%t\n", t.Name, t.Weight, t.Sequence, t.OnStart, t.OnStop)
		}
	}
	return h.Sum64()
}
