package engine

import (
	"context"
	"errors"
	"time"

	"github.com/kode4food/courier/internal/client"
	"github.com/kode4food/courier/internal/engine/scheduler"
	"github.com/kode4food/courier/internal/execlog"
	"github.com/kode4food/courier/internal/metrics"
	"github.com/kode4food/courier/internal/store"
	"github.com/kode4food/courier/internal/trigger"
)

type (
	// Engine is the plan automation engine. It owns the plan store, keeps
	// the trigger manager in sync with it, and runs executions
	Engine struct {
		store    *store.Store
		exec     *Executor
		triggers *trigger.Manager
		logs     *execlog.Logger
		metrics  *metrics.Metrics
		cancel   context.CancelFunc
	}

	// Option configures an Engine
	Option func(*settings)

	settings struct {
		metrics   *metrics.Metrics
		sched     *scheduler.Scheduler
		now       func() time.Time
		regexSize int
	}
)

// ManualTrigger describes executions started through ExecutePlan
const ManualTrigger = "manual"

var (
	ErrPlanInvalid     = errors.New("plan is invalid")
	ErrPlanNotFound    = store.ErrPlanNotFound
	ErrPlanExists      = store.ErrPlanExists
	ErrEmailInvalid    = errors.New("email is invalid")
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
)

// WithMetrics records engine metrics in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithScheduler arms timer triggers on sched instead of a wall-clock
// scheduler
func WithScheduler(sched *scheduler.Scheduler) Option {
	return func(s *settings) {
		s.sched = sched
	}
}

// WithClock sets the clock used for execution timestamps
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// WithRegexCacheSize bounds the compiled subject pattern cache
func WithRegexCacheSize(n int) Option {
	return func(s *settings) {
		s.regexSize = n
	}
}

// New creates an Engine over a plan store. Actions are performed through
// caps and every execution transition is recorded in logs
func New(
	st *store.Store, caps client.Capabilities, logs *execlog.Logger,
	opts ...Option,
) *Engine {
	s := &settings{
		now:       time.Now,
		regexSize: trigger.DefaultRegexCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sched == nil {
		s.sched = scheduler.New(s.now, scheduler.NewTimer)
	}

	exec := NewExecutor(caps, logs,
		WithExecutorMetrics(s.metrics),
		WithExecutorClock(s.now),
	)
	return &Engine{
		store: st,
		exec:  exec,
		triggers: trigger.NewManager(exec, s.sched,
			trigger.WithMetrics(s.metrics),
			trigger.WithRegexCacheSize(s.regexSize),
		),
		logs:    logs,
		metrics: s.metrics,
	}
}

// Executor returns the Executor the engine runs plans with
func (e *Engine) Executor() *Executor {
	return e.exec
}

// Triggers returns the engine's trigger manager
func (e *Engine) Triggers() *trigger.Manager {
	return e.triggers
}

// Logs returns the execution log
func (e *Engine) Logs() *execlog.Logger {
	return e.logs
}

// Metrics returns the engine's metrics, which may be nil
func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}
