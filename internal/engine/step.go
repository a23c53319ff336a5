package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kode4food/courier/internal/client"
	"github.com/kode4food/courier/internal/resolve"
	"github.com/kode4food/courier/pkg/api"
)

// attempt is the outcome of one invocation of a step's action
type attempt struct {
	result *api.ActionResult
	err    error
}

// step runs the step at idx and returns the index of the next step to run.
// An error terminates the execution
func (e *execution) step(ctx context.Context, idx int) (int, error) {
	s := e.plan.Steps[idx]
	if s == nil {
		return 0, fmt.Errorf("%w at position %d", ErrStepMissing, idx)
	}

	started := e.now()
	e.logDebug("Step evaluating", s.ID, map[string]any{
		"action": string(s.Action),
	})

	run, err := evaluate(s.Guard(), e.ctx)
	if err != nil {
		e.record(s, started, api.StepFailed, nil, err.Error(), 0)
		return 0, fmt.Errorf("step %s: %w", s.ID, err)
	}
	if !run {
		e.skip(s, started, "condition not met")
		return idx + 1, nil
	}

	if err := s.Validate(); err != nil {
		e.record(s, started, api.StepFailed, nil, err.Error(), 0)
		return 0, fmt.Errorf("%w: step %s: %w", ErrInvalidStep, s.ID, err)
	}

	res, attempts, err := e.invoke(ctx, s)
	if err != nil {
		e.record(s, started, api.StepFailed, nil, err.Error(), attempts)
		return 0, fmt.Errorf("%w: step %s: %w", ErrInvalidStep, s.ID, err)
	}

	if res.err == nil {
		e.ctx.Set(s.ID, res.result)
		e.record(s, started, api.StepSuccess, res.result.Data, "", attempts)
		e.logInfo("Step succeeded", s.ID, map[string]any{
			"attempts": attempts,
		})
		return idx + 1, nil
	}

	return e.exhausted(ctx, s, idx, started, res, attempts)
}

// invoke calls the step's action until it succeeds or its attempts run out.
// Inputs are re-resolved before every attempt. The returned error is only
// set for failures no retry can fix
func (e *execution) invoke(
	ctx context.Context, s *api.Step,
) (attempt, int, error) {
	policy := s.Policy()
	limit := policy.Attempts()
	delay := time.Duration(policy.RetryDelayMs) * time.Millisecond
	md := api.CapabilityMetadata{
		PlanID:      e.plan.ID,
		ExecutionID: e.ex.ID,
		StepID:      s.ID,
	}

	var last attempt
	for n := 1; ; n++ {
		last = e.try(client.WithMetadata(ctx, md), s)
		if errors.Is(last.err, client.ErrUnsupportedInput) {
			return last, n, last.err
		}
		e.metrics.Attempt(s.Action, last.err == nil)
		if last.err == nil || n >= limit {
			return last, n, nil
		}

		e.logWarn("Step attempt failed", s.ID, map[string]any{
			"attempt":  n,
			"attempts": limit,
			"error":    last.err.Error(),
			"retry_ms": policy.RetryDelayMs,
		})
		if err := sleep(ctx, delay); err != nil {
			last.err = fmt.Errorf("retry abandoned: %w", err)
			return last, n, nil
		}
	}
}

func (e *execution) try(ctx context.Context, s *api.Step) attempt {
	in, unresolved, err := resolve.ResolveInputs(s.Inputs, e.ctx)
	for _, ref := range unresolved {
		e.logWarn("Unresolved reference", s.ID, map[string]any{
			"reference": ref,
		})
	}
	if err != nil {
		return attempt{err: err}
	}

	res, err := client.Invoke(ctx, e.caps, in)
	switch {
	case err != nil:
		return attempt{err: err}
	case res == nil:
		return attempt{err: ErrNoResult}
	case !res.Success:
		msg := res.Error
		if msg == "" {
			msg = "action reported failure"
		}
		return attempt{result: res, err: errors.New(msg)}
	default:
		return attempt{result: res}
	}
}

// exhausted applies the step's error policy once every attempt has failed
func (e *execution) exhausted(
	ctx context.Context, s *api.Step, idx int, started time.Time,
	res attempt, attempts int,
) (int, error) {
	policy := s.Policy()
	msg := res.err.Error()

	e.notify(ctx, s, policy, msg, attempts)

	e.record(s, started, api.StepFailed, nil, msg, attempts)
	e.logError("Step failed", s.ID, map[string]any{
		"attempts": attempts,
		"error":    msg,
		"policy":   string(policy.Type),
	})

	switch policy.Type {
	case api.PolicyContinue, api.PolicyRetry:
		return idx + 1, nil
	case api.PolicyFallback:
		return e.fallback(s, idx, policy.FallbackStepID)
	default:
		return 0, fmt.Errorf("step %s failed: %s", s.ID, msg)
	}
}

// fallback skips every step between the failed step and its fallback
func (e *execution) fallback(
	s *api.Step, idx int, target api.StepID,
) (int, error) {
	next := e.plan.StepIndex(target)
	if next <= idx {
		return 0, fmt.Errorf("%w: %s -> %q", ErrFallbackInvalid, s.ID, target)
	}

	for _, bypassed := range e.plan.Steps[idx+1 : next] {
		if bypassed != nil {
			reason := "bypassed by fallback from " + string(s.ID)
			e.skip(bypassed, e.now(), reason)
		}
	}
	e.logInfo("Jumping to fallback step", s.ID, map[string]any{
		"fallback_step_id": string(target),
	})
	return next, nil
}

func (e *execution) skip(s *api.Step, started time.Time, reason string) {
	e.record(s, started, api.StepSkipped, nil, "", 0)
	e.logInfo("Step skipped", s.ID, map[string]any{
		"reason": reason,
	})
}

func (e *execution) record(
	s *api.Step, started time.Time, status api.StepStatus, output any,
	msg string, attempts int,
) {
	e.ex.Results = append(e.ex.Results, &api.StepResult{
		StepID:      s.ID,
		Status:      status,
		Output:      output,
		Error:       msg,
		Attempts:    attempts,
		StartedAt:   started,
		CompletedAt: e.now(),
	})
	e.metrics.StepFinished(s.Action, status)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
