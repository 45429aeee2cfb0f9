package goose

import "sort"

// ExecutionPlan is the weight-expanded, sequence-ordered schedule a User
// executes for one phase (on-start, main, or on-stop) of a TaskSet. Each
// inner slice is one sequence group's bucket of task indices, repeated
// per the task's gcd-reduced weight and in declaration order.
type ExecutionPlan [][]int

// Plans holds the three phase plans built for a single TaskSet. Plans are
// built once and never mutated afterward.
type Plans struct {
	OnStart ExecutionPlan
	Main    ExecutionPlan
	OnStop  ExecutionPlan
}

// gcd returns the greatest common divisor of a and b.
func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// gcdAll reduces a list of positive weights to their gcd. An empty list
// reduces to 1 so callers never divide by zero.
func gcdAll(weights []int) int {
	if len(weights) == 0 {
		return 1
	}
	g := weights[0]
	for _, w := range weights[1:] {
		g = gcd(g, w)
	}
	if g == 0 {
		return 1
	}
	return g
}

// buildPlans expands a TaskSet's tasks into the three ExecutionPlans per
// spec.md §4.1: the gcd is taken across every task weight in the TaskSet
// (all three phases combined) so that ratios are preserved consistently
// across phases, then each phase is partitioned by sequence and each
// sequence group becomes one inner bucket of repeated indices, declaration
// order preserved, with the unsequenced group appended last.
func buildPlans(ts *TaskSet) *Plans {
	allWeights := make([]int, 0, len(ts.Tasks))
	for _, t := range ts.Tasks {
		allWeights = append(allWeights, t.Weight)
	}
	g := gcdAll(allWeights)

	return &Plans{
		OnStart: buildPhasePlan(ts.Tasks, g, func(t *Task) bool { return t.OnStart }),
		Main:    buildPhasePlan(ts.Tasks, g, (*Task).isMain),
		OnStop:  buildPhasePlan(ts.Tasks, g, func(t *Task) bool { return t.OnStop }),
	}
}

// buildPhasePlan builds one phase's ExecutionPlan: tasks eligible for the
// phase (per `eligible`) are grouped by declared sequence number in
// ascending order, with sequence 0 ("unsequenced") always emitted last,
// regardless of where it falls numerically.
func buildPhasePlan(tasks []*Task, g int, eligible func(*Task) bool) ExecutionPlan {
	bySeq := make(map[int][]int) // sequence -> task indices, declaration order
	var sequences []int

	for idx, t := range tasks {
		if !eligible(t) {
			continue
		}
		if _, ok := bySeq[t.Sequence]; !ok {
			sequences = append(sequences, t.Sequence)
		}
		bySeq[t.Sequence] = append(bySeq[t.Sequence], idx)
	}

	sort.Slice(sequences, func(i, j int) bool {
		si, sj := sequences[i], sequences[j]
		// 0 (unsequenced) always sorts last.
		if si == 0 {
			return false
		}
		if sj == 0 {
			return true
		}
		return si < sj
	})

	plan := make(ExecutionPlan, 0, len(sequences))
	for _, seq := range sequences {
		indices := bySeq[seq]
		bucket := make([]int, 0, len(indices))
		for _, idx := range indices {
			reps := tasks[idx].Weight / g
			for r := 0; r < reps; r++ {
				bucket = append(bucket, idx)
			}
		}
		if len(bucket) > 0 {
			plan = append(plan, bucket)
		}
	}
	return plan
}

// buildTaskSetVector applies the same gcd-reduction to TaskSet weights to
// build a round-robin vector of TaskSet indices (spec.md §4.1
// "TaskSet-level weighting"), used by the Supervisor to assign users to
// TaskSets cyclically.
func buildTaskSetVector(taskSets []*TaskSet) []int {
	weights := make([]int, len(taskSets))
	for i, ts := range taskSets {
		weights[i] = ts.Weight
	}
	g := gcdAll(weights)

	var vector []int
	for i, w := range weights {
		reps := w / g
		for r := 0; r < reps; r++ {
			vector = append(vector, i)
		}
	}
	return vector
}
