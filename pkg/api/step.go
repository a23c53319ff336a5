package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kode4food/courier/pkg/util"
)

type (
	// ActionName names the capability a step invokes
	ActionName string

	// Step is one unit of work within a plan, bound to a single action
	Step struct {
		Condition   *Condition   `json:"condition,omitempty"`
		ErrorPolicy *ErrorPolicy `json:"error_policy,omitempty"`
		Inputs      Inputs       `json:"inputs"`
		ID          StepID       `json:"id"`
		Action      ActionName   `json:"action"`
	}

	// ConditionType selects how a step's execution guard is evaluated
	ConditionType string

	// Operator compares a referenced value against a condition's value
	Operator string

	// Condition guards a step. A nil condition always executes
	Condition struct {
		Value    any           `json:"value,omitempty"`
		Type     ConditionType `json:"type"`
		Field    string        `json:"field,omitempty"`
		Operator Operator      `json:"operator,omitempty"`
	}

	// PolicyType selects what happens once a step's attempts are exhausted
	PolicyType string

	// ErrorPolicy describes retries and failure handling for a step
	ErrorPolicy struct {
		Type           PolicyType `json:"type"`
		RetryCount     int        `json:"retry_count,omitempty"`
		RetryDelayMs   int64      `json:"retry_delay_ms,omitempty"`
		NotifyEmail    string     `json:"notify_email,omitempty"`
		FallbackStepID StepID     `json:"fallback_step_id,omitempty"`
	}

	stepJSON struct {
		Condition   *Condition      `json:"condition,omitempty"`
		ErrorPolicy *ErrorPolicy    `json:"error_policy,omitempty"`
		Inputs      json.RawMessage `json:"inputs"`
		ID          StepID          `json:"id"`
		Action      ActionName      `json:"action"`
	}
)

const (
	ActionSendEmail        ActionName = "send_email"
	ActionScheduleEmail    ActionName = "schedule_email"
	ActionRunAnalysis      ActionName = "run_analysis"
	ActionAddLabels        ActionName = "add_labels"
	ActionRemoveLabels     ActionName = "remove_labels"
	ActionListenForSenders ActionName = "listen_for_senders"
)

const (
	ConditionAlways         ConditionType = "always"
	ConditionNever          ConditionType = "never"
	ConditionPreviousOutput ConditionType = "previous_step_output"

	OperatorEquals    Operator = "equals"
	OperatorContains  Operator = "contains"
	OperatorExists    Operator = "exists"
	OperatorNotExists Operator = "not_exists"
)

const (
	PolicyStop     PolicyType = "stop"
	PolicyContinue PolicyType = "continue"
	PolicyRetry    PolicyType = "retry"
	PolicyFallback PolicyType = "fallback_step"
)

var (
	ErrUnknownAction        = errors.New("unknown action")
	ErrStepIDEmpty          = errors.New("step ID empty")
	ErrInputsRequired       = errors.New("step inputs required")
	ErrInputsMismatch       = errors.New("inputs do not match action")
	ErrInvalidCondition     = errors.New("invalid condition type")
	ErrInvalidOperator      = errors.New("invalid condition operator")
	ErrConditionFieldEmpty  = errors.New("condition field empty")
	ErrConditionValueNeeded = errors.New("condition value required")
	ErrInvalidPolicy        = errors.New("invalid error policy type")
	ErrNegativeRetryCount   = errors.New("retry_count cannot be negative")
	ErrNegativeRetryDelay   = errors.New("retry_delay_ms cannot be negative")
	ErrFallbackStepEmpty    = errors.New("fallback_step_id required")
	ErrInvalidNotifyEmail   = errors.New("invalid notify_email address")
)

var (
	// Actions lists the fixed action vocabulary in declaration order
	Actions = []ActionName{
		ActionSendEmail,
		ActionScheduleEmail,
		ActionRunAnalysis,
		ActionAddLabels,
		ActionRemoveLabels,
		ActionListenForSenders,
	}

	validActions    = util.SetOf(Actions...)
	validConditions = util.SetOf(
		ConditionAlways, ConditionNever, ConditionPreviousOutput,
	)
	validOperators = util.SetOf(
		OperatorEquals, OperatorContains, OperatorExists, OperatorNotExists,
	)
	validPolicies = util.SetOf(
		PolicyStop, PolicyContinue, PolicyRetry, PolicyFallback,
	)
)

// IsValid reports whether the action belongs to the fixed vocabulary
func (a ActionName) IsValid() bool {
	return validActions.Contains(a)
}

// Validate checks the step's own structure. Cross-step concerns (reference
// availability, fallback targets, duplicate IDs) belong to the validator
func (s *Step) Validate() error {
	if s.ID == "" {
		return ErrStepIDEmpty
	}
	if !s.Action.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, s.Action)
	}
	if s.Inputs == nil {
		return ErrInputsRequired
	}
	if s.Inputs.Action() != s.Action {
		return fmt.Errorf("%w: %s has %s inputs",
			ErrInputsMismatch, s.Action, s.Inputs.Action())
	}
	return nil
}

// Guard returns the step's condition, defaulting to always
func (s *Step) Guard() *Condition {
	if s.Condition == nil {
		return &Condition{Type: ConditionAlways}
	}
	return s.Condition
}

// Policy returns the step's error policy, defaulting to stop with a single
// attempt
func (s *Step) Policy() *ErrorPolicy {
	if s.ErrorPolicy == nil {
		return &ErrorPolicy{Type: PolicyStop}
	}
	return s.ErrorPolicy
}

// MarshalJSON encodes the step with its inputs variant inline
func (s Step) MarshalJSON() ([]byte, error) {
	var inputs json.RawMessage
	if s.Inputs != nil {
		data, err := json.Marshal(s.Inputs)
		if err != nil {
			return nil, err
		}
		inputs = data
	}
	return json.Marshal(stepJSON{
		Condition:   s.Condition,
		ErrorPolicy: s.ErrorPolicy,
		Inputs:      inputs,
		ID:          s.ID,
		Action:      s.Action,
	})
}

// UnmarshalJSON decodes the step, selecting the inputs variant by action
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw stepJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	// An unknown action keeps nil inputs so the validator can report it
	inputs, err := NewInputs(raw.Action)
	if err != nil {
		inputs = nil
	}
	if inputs != nil && len(raw.Inputs) != 0 && string(raw.Inputs) != "null" {
		if err := json.Unmarshal(raw.Inputs, inputs); err != nil {
			return fmt.Errorf("step %s inputs: %w", raw.ID, err)
		}
	}
	*s = Step{
		Condition:   raw.Condition,
		ErrorPolicy: raw.ErrorPolicy,
		Inputs:      inputs,
		ID:          raw.ID,
		Action:      raw.Action,
	}
	return nil
}

// Validate checks the condition's own structure
func (c *Condition) Validate() error {
	if !validConditions.Contains(c.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidCondition, c.Type)
	}
	if c.Type != ConditionPreviousOutput {
		return nil
	}
	if c.Field == "" {
		return ErrConditionFieldEmpty
	}
	if !validOperators.Contains(c.Operator) {
		return fmt.Errorf("%w: %q", ErrInvalidOperator, c.Operator)
	}
	if c.Operator.NeedsValue() && c.Value == nil {
		return fmt.Errorf("%w: %s", ErrConditionValueNeeded, c.Operator)
	}
	return nil
}

// NeedsValue reports whether the operator compares against a value
func (o Operator) NeedsValue() bool {
	return o == OperatorEquals || o == OperatorContains
}

// Validate checks the policy's own structure
func (p *ErrorPolicy) Validate() error {
	if !validPolicies.Contains(p.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidPolicy, p.Type)
	}
	if p.RetryCount < 0 {
		return ErrNegativeRetryCount
	}
	if p.RetryDelayMs < 0 {
		return ErrNegativeRetryDelay
	}
	if p.Type == PolicyFallback && p.FallbackStepID == "" {
		return ErrFallbackStepEmpty
	}
	if p.NotifyEmail != "" && !LooksLikeAddress(p.NotifyEmail) {
		return fmt.Errorf("%w: %q", ErrInvalidNotifyEmail, p.NotifyEmail)
	}
	return nil
}

// Attempts returns how many times the action is invoked before the step is
// considered failed. A retry count of zero still allows one attempt
func (p *ErrorPolicy) Attempts() int {
	return max(p.RetryCount, 1)
}

// LooksLikeAddress performs a shallow check for local@domain
func LooksLikeAddress(addr string) bool {
	local, domain, ok := strings.Cut(strings.TrimSpace(addr), "@")
	return ok && local != "" && domain != "" && !strings.Contains(domain, "@")
}
