package scheduler

import (
	"container/heap"
	"time"

	"github.com/kode4food/courier/pkg/api"
)

type (
	// Task is a function due at a point in time. A task that names a plan
	// is that plan's single pending task
	Task struct {
		Func  TaskFunc
		At    time.Time
		Plan  api.PlanID
		index int
	}

	// TaskHeap orders tasks by due time and indexes them by plan so a
	// plan's task can be replaced or cancelled
	TaskHeap struct {
		items  []*Task
		byPlan map[api.PlanID]*Task
	}
)

// NewTaskHeap creates an empty task heap
func NewTaskHeap() *TaskHeap {
	return &TaskHeap{
		byPlan: map[api.PlanID]*Task{},
	}
}

// Insert adds a task, or moves the plan's existing task to the new time
// and function
func (h *TaskHeap) Insert(t *Task) {
	if t == nil || t.Func == nil || t.At.IsZero() {
		return
	}
	if old, ok := h.byPlan[t.Plan]; ok && t.Plan != "" {
		old.Func = t.Func
		old.At = t.At
		heap.Fix(h, old.index)
		return
	}
	heap.Push(h, t)
}

// Peek returns the earliest task without removing it
func (h *TaskHeap) Peek() *Task {
	if len(h.items) == 0 {
		return nil
	}
	return h.items[0]
}

// PopTask removes and returns the earliest task
func (h *TaskHeap) PopTask() *Task {
	if len(h.items) == 0 {
		return nil
	}
	return heap.Pop(h).(*Task)
}

// PopDue removes and returns the earliest task if it is due by now
func (h *TaskHeap) PopDue(now time.Time) *Task {
	if t := h.Peek(); t == nil || t.At.After(now) {
		return nil
	}
	return h.PopTask()
}

// Cancel removes the plan's pending task
func (h *TaskHeap) Cancel(plan api.PlanID) {
	if t, ok := h.byPlan[plan]; ok && plan != "" {
		heap.Remove(h, t.index)
	}
}

// Clear removes every task
func (h *TaskHeap) Clear() {
	for _, t := range h.items {
		t.index = -1
	}
	h.items = nil
	clear(h.byPlan)
}

// Len returns the number of pending tasks
func (h *TaskHeap) Len() int {
	return len(h.items)
}

func (h *TaskHeap) Less(i, j int) bool {
	return h.items[i].At.Before(h.items[j].At)
}

func (h *TaskHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

// Push is part of heap.Interface; use Insert instead
func (h *TaskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(h.items)
	h.items = append(h.items, t)
	if t.Plan != "" {
		h.byPlan[t.Plan] = t
	}
}

// Pop is part of heap.Interface; use PopTask instead
func (h *TaskHeap) Pop() any {
	last := len(h.items) - 1
	t := h.items[last]
	h.items[last] = nil
	h.items = h.items[:last]
	t.index = -1
	if h.byPlan[t.Plan] == t {
		delete(h.byPlan, t.Plan)
	}
	return t
}
