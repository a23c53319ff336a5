package api

import (
	"fmt"
	"strings"
)

type (
	// ValidationIssue describes one problem found in a plan
	ValidationIssue struct {
		StepID     StepID `json:"step_id,omitempty"`
		Field      string `json:"field,omitempty"`
		Message    string `json:"message"`
		Suggestion string `json:"suggestion,omitempty"`
	}

	// ValidationResult collects every error and warning found in a plan
	ValidationResult struct {
		Errors   []ValidationIssue `json:"errors"`
		Warnings []ValidationIssue `json:"warnings"`
		Valid    bool              `json:"valid"`
	}
)

// NewValidationResult returns an empty, valid result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Errors:   []ValidationIssue{},
		Warnings: []ValidationIssue{},
		Valid:    true,
	}
}

// AddError records an error and marks the result invalid
func (r *ValidationResult) AddError(issue ValidationIssue) {
	r.Errors = append(r.Errors, issue)
	r.Valid = false
}

// AddWarning records a warning without affecting validity
func (r *ValidationResult) AddWarning(issue ValidationIssue) {
	r.Warnings = append(r.Warnings, issue)
}

// Error implements the error interface over the collected errors
func (r *ValidationResult) Error() string {
	if len(r.Errors) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.String())
	}
	return fmt.Sprintf("validation failed with %d error(s): %s",
		len(r.Errors), strings.Join(msgs, "; "))
}

func (i ValidationIssue) String() string {
	var parts []string
	if i.StepID != "" {
		parts = append(parts, fmt.Sprintf("step %q", i.StepID))
	}
	if i.Field != "" {
		parts = append(parts, fmt.Sprintf("field %q", i.Field))
	}
	msg := i.Message
	if i.Suggestion != "" {
		msg += fmt.Sprintf(" (%s)", i.Suggestion)
	}
	if len(parts) == 0 {
		return msg
	}
	return strings.Join(parts, ", ") + ": " + msg
}
