package goose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskSetValidateRejectsNonPositiveWeight(t *testing.T) {
	ts := NewTaskSet("bad").SetWeight(0)
	assert.Error(t, ts.validate())
}

func TestTaskSetValidateRejectsInvertedWait(t *testing.T) {
	ts := NewTaskSet("bad").SetWait(5, 1)
	assert.Error(t, ts.validate())
}

func TestTaskSetValidateRejectsNonPositiveTaskWeight(t *testing.T) {
	ts := NewTaskSet("ok")
	ts.RegisterTask(NewTask("t", noop).SetWeight(0))
	assert.Error(t, ts.validate())
}

func TestTaskIsMain(t *testing.T) {
	main := NewTask("main", noop)
	assert.True(t, main.isMain())

	start := NewTask("start", noop).SetOnStart()
	assert.False(t, start.isMain())

	stop := NewTask("stop", noop).SetOnStop()
	assert.False(t, stop.isMain())
}
