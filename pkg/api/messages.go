package api

type (
	// PlansListResponse contains every stored plan
	PlansListResponse struct {
		Plans []*Plan `json:"plans"`
		Count int     `json:"count"`
	}

	// PlanSavedResponse is returned when a plan is created or updated
	PlanSavedResponse struct {
		Plan       *Plan             `json:"plan"`
		Validation *ValidationResult `json:"validation"`
	}

	// ExecuteRequest carries optional trigger data for a manual run
	ExecuteRequest struct {
		TriggerData any `json:"trigger_data,omitempty"`
	}

	// EnabledRequest toggles whether a plan is registered for triggering
	EnabledRequest struct {
		Enabled bool `json:"enabled"`
	}

	// DispatchResponse lists the plans started for an incoming email
	DispatchResponse struct {
		Matched []PlanID `json:"matched"`
		Count   int      `json:"count"`
	}

	// LogsResponse contains execution log entries in sequence order
	LogsResponse struct {
		Entries []*LogEntry `json:"entries"`
		Count   int         `json:"count"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service    string `json:"service"`
		Version    string `json:"version"`
		Status     string `json:"status"`
		Plans      int    `json:"plans"`
		Registered int    `json:"registered"`
	}

	// MessageResponse contains a simple message string
	MessageResponse struct {
		Message string `json:"message"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Validation *ValidationResult `json:"validation,omitempty"`
		Error      string            `json:"error"`
		Status     int               `json:"status,omitempty"`
	}

	// LogFilter narrows a live log subscription. Empty fields match all
	LogFilter struct {
		PlanID      PlanID      `json:"plan_id,omitempty"`
		ExecutionID ExecutionID `json:"execution_id,omitempty"`
	}

	// CapabilityRequest is the body posted to a capability endpoint
	CapabilityRequest struct {
		Inputs   Inputs             `json:"inputs"`
		Metadata CapabilityMetadata `json:"metadata"`
		Action   ActionName         `json:"action"`
	}

	// CapabilityMetadata identifies the step invoking a capability
	CapabilityMetadata struct {
		PlanID      PlanID      `json:"plan_id,omitempty"`
		ExecutionID ExecutionID `json:"execution_id,omitempty"`
		StepID      StepID      `json:"step_id,omitempty"`
	}

	// SubscribeRequest is sent by websocket clients to set their filter
	SubscribeRequest struct {
		Data LogFilter `json:"data"`
		Type string    `json:"type"`
	}
)

// Matches reports whether the entry passes the filter
func (f *LogFilter) Matches(e *LogEntry) bool {
	if f.PlanID != "" && e.PlanID != f.PlanID {
		return false
	}
	if f.ExecutionID != "" && e.ExecutionID != f.ExecutionID {
		return false
	}
	return true
}
