package api

import "time"

type (
	// ExecutionStatus represents the lifecycle state of one plan run
	ExecutionStatus string

	// StepStatus represents the outcome recorded for one step
	StepStatus string

	// Execution is the in-memory record of one run of a plan
	Execution struct {
		StartedAt   time.Time       `json:"started_at"`
		CompletedAt time.Time       `json:"completed_at,omitzero"`
		TriggerData any             `json:"trigger_data,omitempty"`
		ID          ExecutionID     `json:"id"`
		PlanID      PlanID          `json:"plan_id"`
		Trigger     string          `json:"trigger"`
		Status      ExecutionStatus `json:"status"`
		Error       string          `json:"error,omitempty"`
		Results     []*StepResult   `json:"results"`
	}

	// StepResult records what happened to a step during an execution
	StepResult struct {
		StartedAt   time.Time  `json:"started_at"`
		CompletedAt time.Time  `json:"completed_at"`
		Output      any        `json:"output,omitempty"`
		StepID      StepID     `json:"step_id"`
		Status      StepStatus `json:"status"`
		Error       string     `json:"error,omitempty"`
		Attempts    int        `json:"attempts,omitempty"`
	}

	// ActionResult is what the capability port returns for one invocation.
	// It is also the envelope stored in the execution context, so references
	// address it as step.success, step.data..., step.error
	ActionResult struct {
		Data    any    `json:"data,omitempty"`
		Error   string `json:"error,omitempty"`
		Success bool   `json:"success"`
	}
)

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// IsTerminal reports whether no further transitions are possible
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

// Result returns the recorded result for a step, or nil
func (e *Execution) Result(id StepID) *StepResult {
	for _, r := range e.Results {
		if r.StepID == id {
			return r
		}
	}
	return nil
}

// CountStatus returns how many results carry the given status
func (e *Execution) CountStatus(status StepStatus) int {
	n := 0
	for _, r := range e.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Succeeded builds a successful result carrying data
func Succeeded(data any) *ActionResult {
	return &ActionResult{Success: true, Data: data}
}

// Failed builds an unsuccessful result carrying an error message
func Failed(msg string) *ActionResult {
	return &ActionResult{Success: false, Error: msg}
}
