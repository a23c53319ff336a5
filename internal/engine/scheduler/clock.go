package scheduler

import "time"

type (
	// Clock reads the current time
	Clock func() time.Time

	// Timer is the single resettable timer a Scheduler waits on
	Timer interface {
		Channel() <-chan time.Time
		Reset(delay time.Duration) bool
		Stop() bool
	}

	// TimerConstructor builds a Timer with an initial delay
	TimerConstructor func(delay time.Duration) Timer

	wallTimer struct {
		*time.Timer
	}
)

// NewTimer builds a Timer backed by the runtime's timers
func NewTimer(delay time.Duration) Timer {
	return wallTimer{Timer: time.NewTimer(delay)}
}

// NewSystem creates a scheduler driven by the wall clock
func NewSystem() *Scheduler {
	return New(time.Now, NewTimer)
}

func (t wallTimer) Channel() <-chan time.Time {
	return t.C
}
