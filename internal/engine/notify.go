package engine

import (
	"context"
	"fmt"

	"github.com/kode4food/courier/internal/client"
	"github.com/kode4food/courier/pkg/api"
)

const notifySuffix = ".notify"

// NotificationStepID is the step ID carried in the metadata of a failure
// notification sent on behalf of step id. Step IDs cannot contain dots, so
// it never collides with a real step
func NotificationStepID(id api.StepID) api.StepID {
	return id + notifySuffix
}

// notify sends the failure alert configured on a step's error policy. Any
// failure to send is logged and otherwise ignored
func (e *execution) notify(
	ctx context.Context, s *api.Step, policy *api.ErrorPolicy, msg string,
	attempts int,
) {
	if policy.NotifyEmail == "" {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logWarn("Failure notification panicked", s.ID, map[string]any{
				"notify_email": policy.NotifyEmail,
				"error":        fmt.Sprint(r),
			})
		}
	}()

	in := &api.SendEmailInputs{
		To: []string{policy.NotifyEmail},
		Subject: fmt.Sprintf("Automation %q failed at step %s",
			e.plan.Name, s.ID),
		Body: fmt.Sprintf(
			"Plan: %s (%s)\nExecution: %s\nStep: %s (%s)\n"+
				"Attempts: %d\nError: %s\n",
			e.plan.Name, e.plan.ID, e.ex.ID, s.ID, s.Action, attempts, msg,
		),
	}
	md := api.CapabilityMetadata{
		PlanID:      e.plan.ID,
		ExecutionID: e.ex.ID,
		StepID:      NotificationStepID(s.ID),
	}

	res, err := e.caps.SendEmail(client.WithMetadata(ctx, md), in)
	switch {
	case err != nil:
		e.logWarn("Failure notification not sent", s.ID, map[string]any{
			"notify_email": policy.NotifyEmail,
			"error":        err.Error(),
		})
	case res == nil || !res.Success:
		reason := ErrNoResult.Error()
		if res != nil {
			reason = res.Error
		}
		e.logWarn("Failure notification rejected", s.ID, map[string]any{
			"notify_email": policy.NotifyEmail,
			"error":        reason,
		})
	default:
		e.logInfo("Failure notification sent", s.ID, map[string]any{
			"notify_email": policy.NotifyEmail,
		})
	}
}
