package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/log"
)

type (
	// Scheduler holds at most one pending task per plan and runs them on a
	// single goroutine. Scheduling a plan that already has a task replaces
	// that task
	Scheduler struct {
		now       Clock
		makeTimer TimerConstructor
		reqs      chan request
		done      chan struct{}
	}

	// TaskFunc is called with the scheduler's clock reading when its run
	// time arrives
	TaskFunc func(now time.Time) error

	requestOp uint8

	request struct {
		task *Task
		plan api.PlanID
		op   requestOp
	}
)

const (
	opSchedule requestOp = iota
	opCancel
	opCancelAll
)

const requestBufferSize = 100

// New creates a scheduler using the provided clock and timer constructor
func New(now Clock, makeTimer TimerConstructor) *Scheduler {
	return &Scheduler{
		now:       now,
		makeTimer: makeTimer,
		reqs:      make(chan request, requestBufferSize),
		done:      make(chan struct{}),
	}
}

// Now returns the scheduler clock's current reading
func (s *Scheduler) Now() time.Time {
	return s.now()
}

// Schedule sets the plan's pending task to run fn at the requested time
func (s *Scheduler) Schedule(
	ctx context.Context, plan api.PlanID, at time.Time, fn TaskFunc,
) {
	s.send(ctx, request{
		op:   opSchedule,
		task: &Task{Func: fn, At: at, Plan: plan},
	})
}

// Cancel drops the plan's pending task, if any
func (s *Scheduler) Cancel(ctx context.Context, plan api.PlanID) {
	s.send(ctx, request{op: opCancel, plan: plan})
}

// CancelAll drops every pending task
func (s *Scheduler) CancelAll(ctx context.Context) {
	s.send(ctx, request{op: opCancelAll})
}

// Done is closed once Run has returned
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Run processes requests until the context is cancelled. Every task that is
// due when the timer fires runs before the timer is re-armed
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	tasks := NewTaskHeap()
	timer := s.makeTimer(0)
	defer timer.Stop()

	fired := s.arm(timer, tasks)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.reqs:
			s.apply(tasks, req)
		case at := <-fired:
			s.runDue(tasks, at)
		}
		fired = s.arm(timer, tasks)
	}
}

// arm points the timer at the earliest task. A nil channel is returned when
// nothing is pending, which blocks that select case
func (s *Scheduler) arm(timer Timer, tasks *TaskHeap) <-chan time.Time {
	next := tasks.Peek()
	if next == nil {
		timer.Stop()
		return nil
	}
	timer.Reset(next.At.Sub(s.now()))
	return timer.Channel()
}

func (s *Scheduler) apply(tasks *TaskHeap, req request) {
	switch req.op {
	case opSchedule:
		tasks.Insert(req.task)
	case opCancel:
		tasks.Cancel(req.plan)
	case opCancelAll:
		tasks.Clear()
	}
}

// runDue runs the task that fired, even if the clock lags its due time,
// then anything else already due
func (s *Scheduler) runDue(tasks *TaskHeap, fired time.Time) {
	now := s.now()
	if fired.After(now) {
		now = fired
	}
	for t := tasks.PopTask(); t != nil; t = tasks.PopDue(now) {
		if err := t.Func(now); err != nil {
			slog.Error("Scheduled task failed",
				log.PlanID(t.Plan),
				log.Error(err))
		}
	}
}

func (s *Scheduler) send(ctx context.Context, req request) {
	select {
	case s.reqs <- req:
	case <-ctx.Done():
	case <-s.done:
	}
}
