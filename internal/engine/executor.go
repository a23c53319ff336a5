package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kode4food/courier/internal/client"
	"github.com/kode4food/courier/internal/execlog"
	"github.com/kode4food/courier/internal/metrics"
	"github.com/kode4food/courier/internal/resolve"
	"github.com/kode4food/courier/pkg/api"
	"github.com/kode4food/courier/pkg/log"
)

type (
	// Executor runs plans one execution at a time per call. It holds no
	// per-execution state, so a single Executor serves concurrent calls
	Executor struct {
		caps    client.Capabilities
		logs    *execlog.Logger
		metrics *metrics.Metrics
		now     func() time.Time
	}

	// ExecutorOption configures an Executor
	ExecutorOption func(*Executor)

	// execution is the mutable state of one Execute call
	execution struct {
		*Executor
		plan *api.Plan
		ex   *api.Execution
		ctx  *resolve.Context
	}
)

var (
	ErrPlanMissing     = errors.New("plan is nil")
	ErrStepMissing     = errors.New("plan contains a nil step")
	ErrInvalidStep     = errors.New("step cannot be executed")
	ErrFallbackInvalid = errors.New("fallback step is not ahead of step")
	ErrInternal        = errors.New("internal execution failure")
	ErrNoResult        = errors.New("action returned no result")
)

// WithExecutorMetrics records execution and step metrics
func WithExecutorMetrics(m *metrics.Metrics) ExecutorOption {
	return func(x *Executor) {
		x.metrics = m
	}
}

// WithExecutorClock sets the clock used for execution timestamps
func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(x *Executor) {
		x.now = now
	}
}

// NewExecutor creates an Executor that performs actions through caps and
// records its transitions in logs
func NewExecutor(
	caps client.Capabilities, logs *execlog.Logger, opts ...ExecutorOption,
) *Executor {
	x := &Executor{
		caps: caps,
		logs: logs,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute runs plan to completion and returns the finished execution. It
// never panics: step failures are recorded on the execution, and anything
// unexpected fails the execution as a whole
func (x *Executor) Execute(
	ctx context.Context, plan *api.Plan, trigger string, data any,
) (ex *api.Execution) {
	ex = &api.Execution{
		ID:          api.NewExecutionID(),
		Trigger:     trigger,
		TriggerData: data,
		Status:      api.ExecutionRunning,
		StartedAt:   x.now(),
		Results:     []*api.StepResult{},
	}
	if plan == nil {
		x.fail(ex, ErrPlanMissing)
		return ex
	}
	ex.PlanID = plan.ID

	defer func() {
		if r := recover(); r != nil {
			x.fail(ex, fmt.Errorf("%w: %v", ErrInternal, r))
		}
	}()

	run := &execution{
		Executor: x,
		plan:     plan,
		ex:       ex,
		ctx:      resolve.NewContext(data),
	}
	run.run(ctx)
	return ex
}

func (x *Executor) fail(ex *api.Execution, err error) {
	ex.Status = api.ExecutionFailed
	ex.Error = err.Error()
	x.logs.Error("Execution aborted", execlog.Fields{
		PlanID:      ex.PlanID,
		ExecutionID: ex.ID,
		Data:        map[string]any{"error": err.Error()},
	})
	x.finish(ex)
}

func (x *Executor) finish(ex *api.Execution) {
	ex.CompletedAt = x.now()
	x.metrics.ExecutionFinished(ex)
	slog.Debug("Execution finished",
		log.PlanID(ex.PlanID),
		log.ExecutionID(ex.ID),
		log.Status(string(ex.Status)))
}

func (e *execution) run(ctx context.Context) {
	e.logInfo("Execution started", "", map[string]any{
		"plan_name": e.plan.Name,
		"trigger":   e.ex.Trigger,
		"steps":     len(e.plan.Steps),
	})

	for idx := 0; idx < len(e.plan.Steps); {
		next, err := e.step(ctx, idx)
		if err != nil {
			e.ex.Status = api.ExecutionFailed
			e.ex.Error = err.Error()
			e.logError("Execution failed", "", map[string]any{
				"error": err.Error(),
			})
			e.finish(e.ex)
			return
		}
		idx = next
	}

	e.ex.Status = api.ExecutionCompleted
	e.logInfo("Execution completed", "", map[string]any{
		"succeeded": e.ex.CountStatus(api.StepSuccess),
		"failed":    e.ex.CountStatus(api.StepFailed),
		"skipped":   e.ex.CountStatus(api.StepSkipped),
	})
	e.finish(e.ex)
}

func (e *execution) fields(
	id api.StepID, data map[string]any,
) execlog.Fields {
	return execlog.Fields{
		PlanID:      e.plan.ID,
		ExecutionID: e.ex.ID,
		StepID:      id,
		Data:        data,
	}
}

func (e *execution) logDebug(
	msg string, id api.StepID, data map[string]any,
) {
	e.logs.Debug(msg, e.fields(id, data))
}

func (e *execution) logInfo(
	msg string, id api.StepID, data map[string]any,
) {
	e.logs.Info(msg, e.fields(id, data))
}

func (e *execution) logWarn(
	msg string, id api.StepID, data map[string]any,
) {
	e.logs.Warn(msg, e.fields(id, data))
}

func (e *execution) logError(
	msg string, id api.StepID, data map[string]any,
) {
	e.logs.Error(msg, e.fields(id, data))
}
