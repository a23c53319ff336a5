package engine

import (
	"context"
	"fmt"

	"github.com/kode4food/courier/internal/trigger"
	"github.com/kode4food/courier/pkg/api"
)

// ExecutePlan runs a stored plan immediately, whether or not it is enabled,
// and returns the finished execution. The run is not cancelled if ctx is
func (e *Engine) ExecutePlan(
	ctx context.Context, id api.PlanID, triggerData any,
) (*api.Execution, error) {
	p, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	return e.exec.Execute(
		context.WithoutCancel(ctx), p, ManualTrigger, triggerData,
	), nil
}

// HandleIncomingEmail starts an execution for every enabled plan whose
// trigger matches email and returns without waiting for them
func (e *Engine) HandleIncomingEmail(
	ctx context.Context, email *api.Email,
) (*trigger.Dispatch, error) {
	if email == nil {
		return nil, fmt.Errorf("%w: missing", ErrEmailInvalid)
	}
	if err := email.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmailInvalid, err)
	}
	return e.triggers.HandleIncomingEmail(ctx, email), nil
}

// GetExecutionLogs returns the retained log entries of one execution
func (e *Engine) GetExecutionLogs(id api.ExecutionID) []*api.LogEntry {
	return e.logs.ForExecution(id)
}

// GetPlanLogs returns the retained log entries of every execution of a plan
func (e *Engine) GetPlanLogs(id api.PlanID) []*api.LogEntry {
	return e.logs.ForPlan(id)
}

// ExportLogs encodes every retained log entry as JSON
func (e *Engine) ExportLogs() ([]byte, error) {
	return e.logs.Export()
}
