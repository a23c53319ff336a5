package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/courier/internal/engine/scheduler"
	"github.com/kode4food/courier/pkg/api"
)

func noopTask(time.Time) error { return nil }

func TestTaskHeapOrdersAndReplaces(t *testing.T) {
	h := scheduler.NewTaskHeap()
	insert := func(plan api.PlanID, at time.Time) {
		h.Insert(&scheduler.Task{Plan: plan, At: at, Func: noopTask})
	}

	insert("a", schedNow.Add(3*time.Second))
	insert("b", schedNow.Add(2*time.Second))
	insert("a", schedNow.Add(time.Second))
	assert.Equal(t, 2, h.Len())

	if peek := h.Peek(); assert.NotNil(t, peek) {
		assert.Equal(t, api.PlanID("a"), peek.Plan)
		assert.Equal(t, schedNow.Add(time.Second), peek.At)
	}

	h.Cancel("a")
	if peek := h.Peek(); assert.NotNil(t, peek) {
		assert.Equal(t, api.PlanID("b"), peek.Plan)
	}
}

func TestTaskHeapPopDue(t *testing.T) {
	h := scheduler.NewTaskHeap()
	h.Insert(&scheduler.Task{Plan: "late", At: schedNow.Add(time.Hour),
		Func: noopTask})
	h.Insert(&scheduler.Task{Plan: "now", At: schedNow, Func: noopTask})

	if task := h.PopDue(schedNow); assert.NotNil(t, task) {
		assert.Equal(t, api.PlanID("now"), task.Plan)
	}
	assert.Nil(t, h.PopDue(schedNow))
	assert.Equal(t, 1, h.Len())
}

func TestTaskHeapReinsertAfterPop(t *testing.T) {
	h := scheduler.NewTaskHeap()

	h.Insert(&scheduler.Task{Plan: "p1", At: schedNow, Func: noopTask})
	assert.NotNil(t, h.PopTask())

	h.Insert(&scheduler.Task{
		Plan: "p1", At: schedNow.Add(time.Hour), Func: noopTask,
	})
	assert.Equal(t, 1, h.Len())
	h.Cancel("p1")
	assert.Zero(t, h.Len())
}

func TestTaskHeapClear(t *testing.T) {
	h := scheduler.NewTaskHeap()
	h.Insert(&scheduler.Task{Plan: "a", At: schedNow, Func: noopTask})
	h.Insert(&scheduler.Task{At: schedNow, Func: noopTask})
	h.Clear()
	assert.Zero(t, h.Len())

	h.Insert(&scheduler.Task{Plan: "a", At: schedNow, Func: noopTask})
	assert.Equal(t, 1, h.Len())
}

func TestTaskHeapNoOps(t *testing.T) {
	h := scheduler.NewTaskHeap()
	assert.Nil(t, h.PopTask())
	assert.Nil(t, h.PopDue(schedNow))

	h.Insert(nil)
	h.Insert(&scheduler.Task{At: schedNow})
	h.Insert(&scheduler.Task{Func: noopTask})
	assert.Nil(t, h.Peek())

	h.Cancel("")
	h.Cancel("missing")
	assert.Nil(t, h.Peek())
}

func TestTaskHeapUnkeyedTasks(t *testing.T) {
	h := scheduler.NewTaskHeap()
	h.Insert(&scheduler.Task{At: schedNow, Func: noopTask})
	h.Insert(&scheduler.Task{At: schedNow, Func: noopTask})
	assert.Equal(t, 2, h.Len())
}
