package helpers

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/kode4food/courier/internal/engine/scheduler"
)

type (
	// FakeTimers builds FakeTimer instances and hands them to the test
	FakeTimers struct {
		created chan *FakeTimer
	}

	// FakeTimer is a scheduler.Timer that only fires when told to and
	// reports every Reset and Stop
	FakeTimer struct {
		ch      chan time.Time
		resets  chan time.Duration
		stops   chan struct{}
		stopped atomic.Bool
	}
)

// TimerWaitTimeout bounds how long FakeTimer waits block
const TimerWaitTimeout = time.Second

// NewFakeTimers creates a FakeTimer constructor
func NewFakeTimers() *FakeTimers {
	return &FakeTimers{
		created: make(chan *FakeTimer, 1),
	}
}

// NewTimer satisfies scheduler.TimerConstructor
func (f *FakeTimers) NewTimer(time.Duration) scheduler.Timer {
	timer := &FakeTimer{
		ch:     make(chan time.Time, 1),
		resets: make(chan time.Duration, 64),
		stops:  make(chan struct{}, 64),
	}
	select {
	case f.created <- timer:
	default:
	}
	return timer
}

// Wait returns the next timer built by the constructor
func (f *FakeTimers) Wait(t *testing.T) *FakeTimer {
	t.Helper()
	select {
	case timer := <-f.created:
		return timer
	case <-time.After(TimerWaitTimeout):
		t.Fatal("scheduler timer was not created")
		return nil
	}
}

func (t *FakeTimer) Channel() <-chan time.Time {
	return t.ch
}

func (t *FakeTimer) Reset(delay time.Duration) bool {
	t.stopped.Store(false)
	drain(t.ch)
	t.resets <- delay
	return true
}

func (t *FakeTimer) Stop() bool {
	wasStopped := t.stopped.Swap(true)
	drain(t.ch)
	select {
	case t.stops <- struct{}{}:
	default:
	}
	return !wasStopped
}

// Fire delivers a tick unless the timer is stopped
func (t *FakeTimer) Fire(at time.Time) {
	if t.stopped.Load() {
		return
	}
	select {
	case t.ch <- at:
	default:
	}
}

// WaitReset returns the delay of the next Reset call
func (t *FakeTimer) WaitReset(test *testing.T) time.Duration {
	test.Helper()
	select {
	case delay := <-t.resets:
		return delay
	case <-time.After(TimerWaitTimeout):
		test.Fatal("scheduler timer reset not observed")
		return 0
	}
}

// WaitStop blocks until the next Stop call
func (t *FakeTimer) WaitStop(test *testing.T) {
	test.Helper()
	select {
	case <-t.stops:
	case <-time.After(TimerWaitTimeout):
		test.Fatal("scheduler timer stop not observed")
	}
}

// DrainResets discards Reset notifications observed so far
func (t *FakeTimer) DrainResets() {
	for {
		select {
		case <-t.resets:
		default:
			return
		}
	}
}

func drain(ch <-chan time.Time) {
	select {
	case <-ch:
	default:
	}
}
