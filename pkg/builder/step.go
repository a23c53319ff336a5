package builder

import (
	"time"

	"github.com/kode4food/courier/pkg/api"
)

// Step builds a single plan step
type Step struct {
	condition *api.Condition
	policy    *api.ErrorPolicy
	inputs    api.Inputs
	id        api.StepID
	action    api.ActionName
}

// NewStep creates a step builder for any inputs variant. The action is taken
// from the inputs
func NewStep(id api.StepID, inputs api.Inputs) *Step {
	var action api.ActionName
	if inputs != nil {
		action = inputs.Action()
	}
	return &Step{
		id:     id,
		action: action,
		inputs: inputs,
	}
}

// SendEmail creates a send_email step
func SendEmail(id api.StepID, to []string, subject, body string) *Step {
	return NewStep(id, &api.SendEmailInputs{
		To:      to,
		Subject: subject,
		Body:    body,
	})
}

// ScheduleEmail creates a schedule_email step delivered after delay
func ScheduleEmail(
	id api.StepID, to []string, subject, body string, delay time.Duration,
) *Step {
	return NewStep(id, &api.ScheduleEmailInputs{
		To:           to,
		Subject:      subject,
		Body:         body,
		DelayMinutes: int(delay / time.Minute),
	})
}

// RunAnalysis creates a run_analysis step over content
func RunAnalysis(id api.StepID, prompt, content string) *Step {
	return NewStep(id, &api.RunAnalysisInputs{
		Prompt:  prompt,
		Content: content,
	})
}

// AddLabels creates an add_labels step
func AddLabels(id api.StepID, emailID string, labels ...string) *Step {
	return NewStep(id, &api.AddLabelsInputs{LabelInputs: api.LabelInputs{
		EmailID: emailID,
		Labels:  labels,
	}})
}

// RemoveLabels creates a remove_labels step
func RemoveLabels(id api.StepID, emailID string, labels ...string) *Step {
	return NewStep(id, &api.RemoveLabelsInputs{LabelInputs: api.LabelInputs{
		EmailID: emailID,
		Labels:  labels,
	}})
}

// ListenForSenders creates a listen_for_senders step
func ListenForSenders(
	id api.StepID, duration time.Duration, senders ...string,
) *Step {
	return NewStep(id, &api.ListenForSendersInputs{
		Senders:         senders,
		DurationMinutes: int(duration / time.Minute),
	})
}

// WithAction overrides the action name, for steps whose inputs are supplied
// separately or deliberately mismatched
func (s *Step) WithAction(action api.ActionName) *Step {
	res := *s
	res.action = action
	return &res
}

// When guards the step on a previous output or trigger value
func (s *Step) When(field string, op api.Operator, value any) *Step {
	res := *s
	res.condition = &api.Condition{
		Type:     api.ConditionPreviousOutput,
		Field:    field,
		Operator: op,
		Value:    value,
	}
	return &res
}

// Never disables the step without removing it
func (s *Step) Never() *Step {
	res := *s
	res.condition = &api.Condition{Type: api.ConditionNever}
	return &res
}

// Retry allows count attempts with delay between them, stopping the
// execution once they are exhausted
func (s *Step) Retry(count int, delay time.Duration) *Step {
	return s.withPolicy(func(p *api.ErrorPolicy) {
		p.Type = api.PolicyRetry
		p.RetryCount = count
		p.RetryDelayMs = delay.Milliseconds()
	})
}

// ContinueOnError lets the execution proceed after the step fails
func (s *Step) ContinueOnError() *Step {
	return s.withPolicy(func(p *api.ErrorPolicy) {
		p.Type = api.PolicyContinue
	})
}

// StopOnError fails the execution when the step fails
func (s *Step) StopOnError() *Step {
	return s.withPolicy(func(p *api.ErrorPolicy) {
		p.Type = api.PolicyStop
	})
}

// FallbackTo jumps to another step when the step fails
func (s *Step) FallbackTo(id api.StepID) *Step {
	return s.withPolicy(func(p *api.ErrorPolicy) {
		p.Type = api.PolicyFallback
		p.FallbackStepID = id
	})
}

// NotifyOnError sends a failure alert to addr once attempts are exhausted
func (s *Step) NotifyOnError(addr string) *Step {
	return s.withPolicy(func(p *api.ErrorPolicy) {
		p.NotifyEmail = addr
	})
}

// Build returns the configured step after checking its own structure
func (s *Step) Build() (*api.Step, error) {
	step := s.build()
	if err := step.Validate(); err != nil {
		return nil, err
	}
	return step, nil
}

func (s *Step) build() *api.Step {
	step := &api.Step{
		ID:     s.id,
		Action: s.action,
		Inputs: s.inputs,
	}
	if s.condition != nil {
		cond := *s.condition
		step.Condition = &cond
	}
	if s.policy != nil {
		policy := *s.policy
		step.ErrorPolicy = &policy
	}
	return step
}

func (s *Step) withPolicy(fn func(*api.ErrorPolicy)) *Step {
	res := *s
	policy := api.ErrorPolicy{Type: api.PolicyStop}
	if s.policy != nil {
		policy = *s.policy
	}
	fn(&policy)
	res.policy = &policy
	return &res
}
