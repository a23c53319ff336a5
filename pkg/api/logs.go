package api

import "time"

type (
	// LogLevel orders execution log entries by severity
	LogLevel string

	// LogEntry is one structured event emitted while running plans
	LogEntry struct {
		Timestamp   time.Time      `json:"timestamp"`
		Data        map[string]any `json:"data,omitempty"`
		Level       LogLevel       `json:"level"`
		Message     string         `json:"message"`
		PlanID      PlanID         `json:"plan_id,omitempty"`
		ExecutionID ExecutionID    `json:"execution_id,omitempty"`
		StepID      StepID         `json:"step_id,omitempty"`
		Seq         int64          `json:"seq"`
	}
)

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)
