package goose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(*User) error { return nil }

func TestBuildPlansWeightRatio(t *testing.T) {
	ts := NewTaskSet("Weighted")
	ts.RegisterTask(NewTask("a", noop).SetWeight(4))
	ts.RegisterTask(NewTask("b", noop).SetWeight(6))

	plans := buildPlans(ts)
	require.Len(t, plans.Main, 1)

	bucket := plans.Main[0]
	var countA, countB int
	for _, idx := range bucket {
		switch ts.Tasks[idx].Name {
		case "a":
			countA++
		case "b":
			countB++
		}
	}
	// gcd(4, 6) = 2, so the reduced ratio is 2:3.
	assert.Equal(t, 2, countA)
	assert.Equal(t, 3, countB)
}

func TestBuildPlansSequenceOrdering(t *testing.T) {
	ts := NewTaskSet("Sequenced")
	ts.RegisterTask(NewTask("unsequenced", noop))
	ts.RegisterTask(NewTask("seq2", noop).SetSequence(2))
	ts.RegisterTask(NewTask("seq1", noop).SetSequence(1))

	plans := buildPlans(ts)
	require.Len(t, plans.Main, 3)

	// Sequence 1, then sequence 2, then the unsequenced (0) group last.
	assert.Equal(t, "seq1", ts.Tasks[plans.Main[0][0]].Name)
	assert.Equal(t, "seq2", ts.Tasks[plans.Main[1][0]].Name)
	assert.Equal(t, "unsequenced", ts.Tasks[plans.Main[2][0]].Name)
}

func TestBuildPlansOnStartOnStopSeparateFromMain(t *testing.T) {
	ts := NewTaskSet("Phases")
	ts.RegisterTask(NewTask("login", noop).SetOnStart())
	ts.RegisterTask(NewTask("browse", noop))
	ts.RegisterTask(NewTask("logout", noop).SetOnStop())

	plans := buildPlans(ts)
	require.Len(t, plans.OnStart, 1)
	require.Len(t, plans.Main, 1)
	require.Len(t, plans.OnStop, 1)

	assert.Equal(t, "login", ts.Tasks[plans.OnStart[0][0]].Name)
	assert.Equal(t, "browse", ts.Tasks[plans.Main[0][0]].Name)
	assert.Equal(t, "logout", ts.Tasks[plans.OnStop[0][0]].Name)
}

func TestBuildTaskSetVectorReducesByGCD(t *testing.T) {
	a := NewTaskSet("A").SetWeight(2)
	b := NewTaskSet("B").SetWeight(6)

	vector := buildTaskSetVector([]*TaskSet{a, b})
	require.Len(t, vector, 4)

	var countA, countB int
	for _, idx := range vector {
		if idx == 0 {
			countA++
		} else {
			countB++
		}
	}
	assert.Equal(t, 1, countA)
	assert.Equal(t, 3, countB)
}

func TestGCDAllEmptyIsOne(t *testing.T) {
	assert.Equal(t, 1, gcdAll(nil))
}
